package ocr

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pavelanni/icapexam/internal/model"
)

// DecodeDataURL decodes a base64 "data:image/...;base64,..." URL and returns
// the media type and the raw image bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:image") {
		return "", nil, fmt.Errorf("%w: image must be a data:image URL", model.ErrBadRequest)
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed data URL", model.ErrBadRequest)
	}
	mediaType, enc, _ := strings.Cut(header, ";")
	if enc != "base64" {
		return "", nil, fmt.Errorf("%w: data URL must be base64 encoded", model.ErrBadRequest)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: decode image: %v", model.ErrBadRequest, err)
		}
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty image", model.ErrBadRequest)
	}
	return mediaType, data, nil
}
