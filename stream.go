package rapidpart

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"golang.org/x/sync/semaphore"
)

var (
	ErrActivePart = errors.New("previous part is still being read")
	ErrClosedPart = errors.New("read from a closed part")
)

const defaultChunkSize = 32 * 1024

// Reader pulls chunks from an io.Reader, drives a [Decoder] and exposes
// the result as a sequence of parts. The outer cursor ([Reader.NextPart])
// and the inner cursor of the live [Part] share a single decoder; an
// advisory lock keeps exactly one of them driving it at a time.
//
// Each source read goes into a freshly allocated chunk so the slices a
// [Part] yields stay valid for as long as the caller keeps them.
type Reader struct {
	src       io.Reader
	dec       *Decoder
	chunkSize int

	// cursor is a non-blocking advisory lock. It is held by the live
	// part from the moment NextPart returns it until it is exhausted or
	// closed.
	cursor *semaphore.Weighted

	part   *Part
	srcEOF bool
	err    error
}

type ReaderOption func(r *Reader)

// WithBufferSize sets the size of the chunks read from the source.
func WithBufferSize(size int) ReaderOption {
	return func(r *Reader) {
		r.chunkSize = size
	}
}

// WithDecoderOptions forwards options to the underlying [Decoder].
func WithDecoderOptions(opts ...DecoderOption) ReaderOption {
	return func(r *Reader) {
		for _, opt := range opts {
			opt(r.dec)
		}
	}
}

// NewReader returns a Reader decoding the multipart body src, delimited
// by boundary.
func NewReader(src io.Reader, boundary string, opts ...ReaderOption) (*Reader, error) {
	dec, err := NewDecoder(boundary)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		src:       src,
		dec:       dec,
		chunkSize: defaultChunkSize,
		cursor:    semaphore.NewWeighted(1),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// NextPart advances to the next part and returns it. It returns io.EOF
// when the stream has ended and [ErrActivePart] while a previous part
// is still live: a part must be exhausted or closed before the outer
// sequence moves on. A part that was closed early is skipped here by
// draining the decoder to the next delimiter.
//
// Any decode or source error is latched and returned by every
// subsequent call.
func (r *Reader) NextPart() (*Part, error) {
	if r.err != nil {
		return nil, r.err
	}
	if !r.cursor.TryAcquire(1) {
		return nil, ErrActivePart
	}

	if p := r.part; p != nil && !p.done {
		// The part was abandoned: resynchronize to its end.
		if err := r.drainPart(); err != nil {
			r.cursor.Release(1)
			return nil, err
		}
		p.done = true
	}
	r.part = nil

	for {
		ev, err := r.next()
		if err != nil {
			r.cursor.Release(1)
			return nil, err
		}
		switch ev.Kind {
		case EventHeaderBlock:
			// The new part inherits the cursor acquired above.
			p := &Part{r: r, headers: RawHeaders{block: ev.Data}}
			r.part = p
			return p, nil
		case EventStreamEnd:
			r.cursor.Release(1)
			r.err = io.EOF
			return nil, io.EOF
		}
	}
}

// Parts returns the parts as an iterator. Advancing the iterator closes
// the previous part if the loop body left it unread, so an early break
// inside a part's body is safe. The sequence yields at most one error
// and then ends.
func (r *Reader) Parts() iter.Seq2[*Part, error] {
	return func(yield func(*Part, error) bool) {
		for {
			if p := r.part; p != nil {
				p.Close()
			}
			p, err := r.NextPart()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// next pumps the decoder, reading source chunks whenever it asks for
// more input, until a caller-visible event is produced.
func (r *Reader) next() (Event, error) {
	if r.err != nil {
		return Event{}, r.err
	}

	var chunk []byte
	for {
		ev, err := r.dec.Advance(chunk)
		chunk = nil
		if err != nil {
			r.err = err
			return Event{}, err
		}
		if ev.Kind != EventNeedMoreInput {
			return ev, nil
		}

		if r.srcEOF {
			r.dec.Finish()
			continue
		}

		buf := make([]byte, r.chunkSize)
		n, rerr := r.src.Read(buf)
		if n > 0 {
			chunk = buf[:n]
		}
		if rerr == io.EOF {
			r.srcEOF = true
		} else if rerr != nil {
			r.err = fmt.Errorf("[rapidpart] source: %w", rerr)
			return Event{}, r.err
		}
	}
}

// drainPart discards body events until the abandoned part's end.
func (r *Reader) drainPart() error {
	for {
		ev, err := r.next()
		if err != nil {
			return err
		}
		if ev.Kind == EventPartEnd {
			return nil
		}
	}
}

// Part is one segment of the multipart stream: its raw header block and
// a cursor over its body bytes.
type Part struct {
	r       *Reader
	headers RawHeaders

	rest   []byte // unread remainder of the last slice, for Read
	done   bool
	closed bool
}

// RawHeaders returns the part's raw header block.
func (p *Part) RawHeaders() RawHeaders {
	return p.headers
}

// Headers parses the part's Content-Disposition and Content-Type.
func (p *Part) Headers() (Headers, error) {
	return p.headers.Parse()
}

// Next returns the next slice of the part's body, valid indefinitely.
// It returns io.EOF once the body is exhausted; that also hands the
// decoder back to the outer sequence.
func (p *Part) Next() ([]byte, error) {
	if p.done {
		return nil, io.EOF
	}
	if p.closed {
		return nil, ErrClosedPart
	}

	for {
		ev, err := p.r.next()
		if err != nil {
			p.done = true
			p.r.cursor.Release(1)
			return nil, err
		}
		switch ev.Kind {
		case EventBodyData:
			if len(ev.Data) == 0 {
				continue
			}
			return ev.Data, nil
		case EventPartEnd:
			p.done = true
			p.r.cursor.Release(1)
			return nil, io.EOF
		}
	}
}

// Read implements io.Reader over the part's body. Unlike [Part.Next] it
// copies into b.
func (p *Part) Read(b []byte) (int, error) {
	for len(p.rest) == 0 {
		data, err := p.Next()
		if err != nil {
			return 0, err
		}
		p.rest = data
	}
	n := copy(b, p.rest)
	p.rest = p.rest[n:]
	return n, nil
}

// Close abandons the part. The remaining body bytes are skipped when
// the outer sequence is next advanced. Closing an exhausted or already
// closed part is a no-op.
func (p *Part) Close() error {
	if p.done || p.closed {
		return nil
	}
	p.closed = true
	p.r.cursor.Release(1)
	return nil
}
