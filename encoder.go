package rapidpart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
)

var errWriterClosed = errors.New("write to a closed multipart writer")

// Writer produces a multipart/form-data body on an io.Writer: the
// encoding counterpart of [Decoder].
//
// It is the caller's responsibility to call Close on the Writer when
// done, and to finish writing a part's body before creating the next.
type Writer struct {
	w        io.Writer
	boundary string
	started  bool
	closed   bool
}

// NewWriter returns a Writer emitting parts delimited by boundary.
func NewWriter(w io.Writer, boundary string) (*Writer, error) {
	if err := validateBoundary(boundary); err != nil {
		return nil, err
	}
	return &Writer{w: w, boundary: boundary}, nil
}

// Boundary returns the Writer's boundary.
func (w *Writer) Boundary() string {
	return w.boundary
}

// FormDataContentType returns the Content-Type value for an HTTP
// request carrying this body, with the boundary parameter included.
func (w *Writer) FormDataContentType() string {
	return mime.FormatMediaType("multipart/form-data", map[string]string{"boundary": w.boundary})
}

// CreatePart writes the delimiter and the given raw header lines for a
// new part and returns a writer for its body.
func (w *Writer) CreatePart(lines ...string) (io.Writer, error) {
	if w.closed {
		return nil, errWriterClosed
	}

	var buf bytes.Buffer
	if w.started {
		buf.Write(crlf)
	}
	fmt.Fprintf(&buf, "--%s\r\n", w.boundary)
	for _, line := range lines {
		buf.WriteString(line)
		buf.Write(crlf)
	}
	buf.Write(crlf)
	w.started = true

	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return nil, err
	}
	return w.w, nil
}

// CreateFormField creates a part holding a plain form field.
func (w *Writer) CreateFormField(name string) (io.Writer, error) {
	return w.CreatePart(fmt.Sprintf(`Content-Disposition: form-data; name=%q`, name))
}

// CreateFormFile creates a part holding a file upload.
func (w *Writer) CreateFormFile(field, filename string) (io.Writer, error) {
	return w.CreatePart(
		fmt.Sprintf(`Content-Disposition: form-data; name=%q; filename=%q`, field, filename),
		"Content-Type: application/octet-stream",
	)
}

// Close writes the closing delimiter. It is an error to create parts
// after calling Close.
func (w *Writer) Close() error {
	if w.closed {
		return errWriterClosed
	}
	w.closed = true

	if w.started {
		_, err := fmt.Fprintf(w.w, "\r\n--%s--\r\n", w.boundary)
		return err
	}
	_, err := fmt.Fprintf(w.w, "--%s--\r\n", w.boundary)
	return err
}
