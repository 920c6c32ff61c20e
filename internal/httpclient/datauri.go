package httpclient

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var ErrBadDataURI = errors.New("malformed data uri")

// openDataURI decodes data:[<mediatype>][;base64],<payload>.
func openDataURI(uri string) (*Body, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrBadDataURI
	}

	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		isBase64 = true
		meta = strings.TrimSuffix(meta, ";base64")
	}

	mediaType := meta
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDataURI, err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDataURI, err)
		}
		data = []byte(unescaped)
	}

	return &Body{
		ReadCloser:  io.NopCloser(bytes.NewReader(data)),
		ContentType: mediaType,
		Location:    "data:" + mediaType,
	}, nil
}
