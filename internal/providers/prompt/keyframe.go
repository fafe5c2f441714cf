// Package prompt derives the per-keyframe prompt text handed to the image
// provider. The two keyframes of a clip share the character description but
// carry different phase hints so the interpolated motion has somewhere to go.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"keyframe/server/internal/domain"
)

const (
	firstFrameHint = "establishing shot"
	lastFrameHint  = "conclusive scene"
)

// FirstFrame builds the prompt for the opening keyframe.
func FirstFrame(req domain.GenerationRequest) string {
	return build(req, firstFrameHint)
}

// LastFrame builds the prompt for the closing keyframe.
func LastFrame(req domain.GenerationRequest) string {
	return build(req, lastFrameHint)
}

func build(req domain.GenerationRequest, hint string) string {
	parts := []string{strings.TrimSpace(req.Prompt)}
	if style := strings.TrimSpace(req.Style); style != "" {
		c := cases.Title(language.Und)
		parts = append(parts, fmt.Sprintf("%s style", c.String(style)))
	}
	if camera := strings.TrimSpace(req.Camera); camera != "" {
		parts = append(parts, camera)
	}
	parts = append(parts, hint)
	return strings.Join(parts, ", ")
}
