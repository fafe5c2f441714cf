package domain

import (
	"fmt"
	"strings"
)

// Request bounds and pricing knobs. Costs are fixed at admission time; the
// same number is handed to the ledger's commit or release call so the two can
// never disagree.
const (
	MinDurationSeconds = 3
	MaxDurationSeconds = 15
	MaxPromptLength    = 2000

	creditsPerSecond   = 10
	hdQualityCredits   = 20
	defaultDuration    = 5
	defaultAspectRatio = "16:9"
	defaultQuality     = "standard"
)

var supportedAspectRatios = map[string]bool{
	"16:9": true,
	"9:16": true,
	"1:1":  true,
	"4:3":  true,
}

// Normalize fills defaults and clamps the request in place.
func (r *GenerationRequest) Normalize() {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Style = strings.TrimSpace(r.Style)
	if r.DurationSeconds == 0 {
		r.DurationSeconds = defaultDuration
	}
	if r.AspectRatio == "" {
		r.AspectRatio = defaultAspectRatio
	}
	if r.Quality == "" {
		r.Quality = defaultQuality
	}
}

// Validate reports whether the request is admissible. Errors wrap
// ErrInvalidRequest so callers can classify them as admission failures.
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if len(r.Prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidRequest, MaxPromptLength)
	}
	if r.DurationSeconds < MinDurationSeconds || r.DurationSeconds > MaxDurationSeconds {
		return fmt.Errorf("%w: duration must be between %d and %d seconds", ErrInvalidRequest, MinDurationSeconds, MaxDurationSeconds)
	}
	if !supportedAspectRatios[r.AspectRatio] {
		return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidRequest, r.AspectRatio)
	}
	return nil
}

// CreditCost prices a normalized request.
func CreditCost(r GenerationRequest) int {
	cost := r.DurationSeconds * creditsPerSecond
	if strings.EqualFold(r.Quality, "hd") {
		cost += hdQualityCredits
	}
	return cost
}
