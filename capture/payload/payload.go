package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/marcelsud/webhook-sink/capture"
)

// ErrDecode marks a body that could not be decoded for its declared content type.
// It is never fatal: the capture is stored with a null body instead.
var ErrDecode = errors.New("decoding body")

// maxMultipartMemory bounds the in-memory part buffer; larger parts spill to disk
const maxMultipartMemory = 32 << 20

/* Decode turns a raw inbound body into the tagged capture.Body variant.
 * JSON is kept verbatim when valid, urlencoded and multipart forms become
 * field maps, everything else is text when it is UTF-8 and binary otherwise.
 * On failure it returns capture.NullBody() together with an ErrDecode error.
 */
func Decode(contentType string, raw []byte) (capture.Body, error) {
	if len(raw) == 0 {
		return capture.NullBody(), nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}

	switch {
	case isJSON(mediaType):
		if !json.Valid(raw) {
			return capture.NullBody(), fmt.Errorf("%w: invalid JSON", ErrDecode)
		}
		return capture.JSONBody(bytes.TrimSpace(raw)), nil
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return capture.NullBody(), fmt.Errorf("%w: parsing form: %v", ErrDecode, err)
		}
		return capture.FormBody(fields(values)), nil
	case mediaType == "multipart/form-data":
		form, err := decodeMultipart(raw, params["boundary"])
		if err != nil {
			return capture.NullBody(), err
		}
		return capture.FormBody(form), nil
	}

	if utf8.Valid(raw) {
		return capture.TextBody(string(raw)), nil
	}
	return capture.BinaryBody(len(raw)), nil
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func decodeMultipart(raw []byte, boundary string) (map[string]any, error) {
	if boundary == "" {
		return nil, fmt.Errorf("%w: multipart body without boundary", ErrDecode)
	}
	reader := multipart.NewReader(bytes.NewReader(raw), boundary)
	form, err := reader.ReadForm(maxMultipartMemory)
	if err != nil {
		return nil, fmt.Errorf("%w: reading multipart form: %v", ErrDecode, err)
	}
	defer form.RemoveAll()

	out := fields(form.Value)
	for name, files := range form.File {
		described := make([]string, 0, len(files))
		for _, fh := range files {
			described = append(described, fmt.Sprintf("[file: %s, %d bytes]", fh.Filename, fh.Size))
		}
		out[name] = collapse(described)
	}
	return out, nil
}

// fields maps single values to strings and repeated names to lists
func fields(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for name, vs := range values {
		out[name] = collapse(vs)
	}
	return out
}

func collapse(vs []string) any {
	if len(vs) == 1 {
		return vs[0]
	}
	return vs
}

// Read drains r, degrading a read error to ErrDecode with whatever was read
func Read(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return raw, fmt.Errorf("%w: reading body: %v", ErrDecode, err)
	}
	return raw, nil
}
