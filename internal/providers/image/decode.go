package image

import (
	"encoding/base64"
	"strings"
)

// decodeBase64 accepts both bare base64 payloads and data URLs.
func decodeBase64(payload string) ([]byte, error) {
	if idx := strings.Index(payload, ","); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(payload)
	}
	return data, nil
}
