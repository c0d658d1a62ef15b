package reviews

import (
	"encoding/base64"
	"strings"
)

const (
	maxImages           = 10
	maxDataImageBytes   = 2 << 20
	maxRemoteURLLength  = 500 * 1024
	dataURLBase64Marker = ";base64,"
)

// SanitizeImages keeps base64 image data URLs up to 2 MB decoded and http(s)
// URLs up to 500 KB long, in order, at most ten. Everything else is dropped.
func SanitizeImages(images []string) []string {
	kept := make([]string, 0, len(images))
	for _, raw := range images {
		if len(kept) == maxImages {
			break
		}
		value := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(value, "data:image/"):
			if validDataImage(value) {
				kept = append(kept, value)
			}
		case strings.HasPrefix(value, "https://"), strings.HasPrefix(value, "http://"):
			if len(value) <= maxRemoteURLLength {
				kept = append(kept, value)
			}
		}
	}
	return kept
}

func validDataImage(value string) bool {
	idx := strings.Index(value, dataURLBase64Marker)
	if idx < 0 {
		return false
	}
	payload := value[idx+len(dataURLBase64Marker):]
	if base64.StdEncoding.DecodedLen(len(payload)) > maxDataImageBytes+3 {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return false
	}
	return len(decoded) > 0 && len(decoded) <= maxDataImageBytes
}
