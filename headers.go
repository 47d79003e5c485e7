package rapidpart

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
)

var (
	ErrNoContentDisposition = errors.New("part has no Content-Disposition header")
	ErrNotFormData          = errors.New("Content-Disposition is not form-data")
	ErrNoFormName           = errors.New("Content-Disposition is missing the name parameter")
)

// RawHeaders is the raw, uninterpreted header block of a single part:
// zero or more CRLF-terminated lines, without the blank-line terminator.
// The bytes alias the input the block was decoded from.
type RawHeaders struct {
	block []byte
}

// Bytes returns the raw block.
func (h RawHeaders) Bytes() []byte {
	return h.block
}

// Lines splits the block into individual header lines with their
// terminating CRLF stripped. The returned slices alias the block; no
// continuation-line folding or decoding is applied.
func (h RawHeaders) Lines() [][]byte {
	var lines [][]byte
	rest := h.block
	for len(rest) > 0 {
		line, after, found := bytes.Cut(rest, crlf)
		lines = append(lines, line)
		if !found {
			break
		}
		rest = after
	}
	return lines
}

// Get returns the raw value of the first header line whose name matches
// name case-insensitively, with surrounding whitespace trimmed.
func (h RawHeaders) Get(name string) ([]byte, bool) {
	for _, line := range h.Lines() {
		k, v, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}
		if !bytes.EqualFold(bytes.TrimSpace(k), []byte(name)) {
			continue
		}
		return bytes.TrimSpace(v), true
	}
	return nil, false
}

// Headers are the form-data fields extracted from a part's
// Content-Disposition and Content-Type headers.
type Headers struct {
	// Name is the required name parameter of the Content-Disposition.
	Name string
	// Filename is the optional filename parameter; empty when absent.
	Filename string
	// ContentType is the raw Content-Type value; empty when absent.
	ContentType string
}

// Parse interprets the Content-Disposition and Content-Type headers of
// the block. The Content-Disposition must be present, carry the
// form-data type and a name parameter (RFC 7578 4.2).
func (h RawHeaders) Parse() (Headers, error) {
	cd, ok := h.Get("Content-Disposition")
	if !ok {
		return Headers{}, ErrNoContentDisposition
	}

	disposition, params, err := mime.ParseMediaType(string(cd))
	if err != nil {
		return Headers{}, fmt.Errorf("[rapidpart] Content-Disposition: %w", err)
	}
	if disposition != "form-data" {
		return Headers{}, ErrNotFormData
	}
	name, ok := params["name"]
	if !ok {
		return Headers{}, ErrNoFormName
	}

	headers := Headers{
		Name:     name,
		Filename: params["filename"],
	}
	if ct, ok := h.Get("Content-Type"); ok {
		headers.ContentType = string(ct)
	}
	return headers, nil
}
