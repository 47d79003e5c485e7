// Package rapidpart decodes the multipart/form-data wire format
// (RFC 2046 / RFC 7578) from a stream of byte chunks without copying
// body bytes, no matter how the transport splits the stream.
//
// The core is the transport-independent [Decoder]: the caller feeds it
// chunks and pulls [Event] values one at a time. [Reader] layers an
// io.Reader-driven sequence of parts on top of it, and [DecodeAll] is
// the fast path for bodies that are already in memory.
package rapidpart

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrInvalidBoundary     = errors.New("invalid multipart boundary")
	ErrNoBoundary          = errors.New("input ended before the first delimiter")
	ErrUnterminatedHeaders = errors.New("input ended inside a header block")
	ErrHeaderTooLarge      = errors.New("header block exceeds the configured limit")
	ErrMalformedDelimiter  = errors.New("malformed delimiter")
	ErrUnexpectedEnd       = errors.New("input ended inside a part body")
	ErrUnexpectedChunk     = errors.New("chunk supplied while the decoder was not waiting for input")
)

const (
	defaultMaxHeaderBytes = 8 * 1024

	// A delimiter-shaped sequence with an invalid suffix is body data
	// and scanning resumes past it, but a stream producing them without
	// end is broken. The budget resets on every confirmed delimiter.
	maxDelimiterRetries = 4096
)

// Decoder is the sans-IO multipart decoder. It performs no I/O: bytes
// go in through [Decoder.Advance] and events come back out, one per
// call. A Decoder is a single-cursor automaton and must not be used
// from multiple goroutines concurrently.
type Decoder struct {
	delim []byte // "\r\n--boundary"
	dash  []byte // "--boundary", the first delimiter carries no leading CRLF

	// The lookback window: b1 is the unconsumed front, b2 holds the
	// following chunk while a candidate match straddles the two. Both
	// usually alias caller chunks; b1 becomes a private copy only after
	// compact.
	b1, b2 []byte

	state          state
	err            error
	inputEOF       bool
	wantInput      bool
	retries        int
	maxHeaderBytes int
}

type DecoderOption func(d *Decoder)

// WithMaxHeaderBytes caps how many bytes a single header block may
// occupy before the blank-line terminator is found. The default is
// 8 KiB.
func WithMaxHeaderBytes(n int) DecoderOption {
	return func(d *Decoder) {
		d.maxHeaderBytes = n
	}
}

// NewDecoder returns a Decoder for a body delimited by boundary, as
// taken from the Content-Type parameter of the surrounding request.
func NewDecoder(boundary string, opts ...DecoderOption) (*Decoder, error) {
	if err := validateBoundary(boundary); err != nil {
		return nil, err
	}

	delim := append([]byte("\r\n--"), boundary...)
	d := &Decoder{
		delim:          delim,
		dash:           delim[2:],
		maxHeaderBytes: defaultMaxHeaderBytes,
		wantInput:      true, // a fresh decoder has nothing buffered
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// validateBoundary enforces RFC 2046 5.1: 1 to 70 characters from the
// bchars set, not ending with a space.
func validateBoundary(boundary string) error {
	if len(boundary) == 0 || len(boundary) > 70 {
		return fmt.Errorf("[rapidpart] boundary must be 1-70 characters: %w", ErrInvalidBoundary)
	}
	if boundary[len(boundary)-1] == ' ' {
		return fmt.Errorf("[rapidpart] boundary must not end with a space: %w", ErrInvalidBoundary)
	}
	for i := 0; i < len(boundary); i++ {
		c := boundary[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case bytes.IndexByte([]byte("'()+_,-./:=? "), c) >= 0:
		default:
			return fmt.Errorf("[rapidpart] boundary contains %q: %w", c, ErrInvalidBoundary)
		}
	}
	return nil
}

// Advance feeds the decoder at most one chunk and returns the next
// event. chunk must be nil (or empty) unless the previous call returned
// [EventNeedMoreInput]; supplying one at any other time returns
// [ErrUnexpectedChunk] without disturbing the decoder.
//
// Decode errors latch: once Advance has returned one, every later call
// returns the same error.
func (d *Decoder) Advance(chunk []byte) (Event, error) {
	if d.state == stateFailed {
		return Event{}, d.err
	}

	if len(chunk) > 0 {
		if !d.wantInput || d.inputEOF {
			return Event{}, ErrUnexpectedChunk
		}
		if len(d.b1) == 0 {
			d.b1 = chunk
		} else if len(d.b2) == 0 {
			d.b2 = chunk
		} else {
			return Event{}, ErrUnexpectedChunk
		}
		d.wantInput = false
	}

	for {
		ev, emitted, err := d.read()
		if err != nil {
			d.state = stateFailed
			d.err = err
			return Event{}, err
		}
		if !emitted {
			continue
		}
		if ev.Kind == EventNeedMoreInput {
			d.wantInput = true
		}
		return ev, nil
	}
}

// Finish tells the decoder that the byte source is exhausted. It is
// idempotent. After Finish, Advance resolves the remaining buffered
// bytes into final events or a decode error.
func (d *Decoder) Finish() {
	d.inputEOF = true
	d.wantInput = false
}

// Terminal reports whether the decoder has reached Done or a latched
// failure. Once terminal, Advance keeps returning the same signal.
func (d *Decoder) Terminal() bool {
	return d.state == stateDone || d.state == stateFailed
}

// read makes one step of progress and reports whether it produced a
// caller-visible event. Steps that only move the state machine (for
// example skipping a delimiter) return emitted == false and are looped
// over by Advance.
func (d *Decoder) read() (ev Event, emitted bool, err error) {
	switch d.state {
	case statePreamble:
		return d.readPreamble()
	case stateHeaders:
		return d.readHeaders()
	case stateBody:
		return d.readBody()
	case stateEpilogue:
		// Trailing epilogue bytes are discarded unread.
		d.b1, d.b2 = nil, nil
		d.state = stateDone
		return Event{Kind: EventStreamEnd}, true, nil
	default: // stateDone
		return Event{Kind: EventStreamEnd}, true, nil
	}
}

// readPreamble discards bytes up to and including the first delimiter.
// The first delimiter is bare "--boundary": the leading CRLF only
// becomes part of the pattern once body bytes can precede it.
func (d *Decoder) readPreamble() (Event, bool, error) {
	if len(d.b1) == 0 {
		if d.inputEOF {
			return Event{}, false, ErrNoBoundary
		}
		return Event{Kind: EventNeedMoreInput}, true, nil
	}

	idx, kind := d.scanDelimiter(d.dash)
	switch kind {
	case matchRegular, matchClose:
		d.skip(idx + len(d.dash) + 2)
		d.retries = 0
		if kind == matchRegular {
			d.state = stateHeaders
		} else {
			d.state = stateEpilogue
		}
		return Event{}, false, nil

	case matchFalse:
		d.skip(idx + 1)
		if err := d.retry(); err != nil {
			return Event{}, false, err
		}
		return Event{}, false, nil

	case matchPartial:
		d.skip(idx)
		if d.inputEOF {
			if len(d.b1)+len(d.b2) >= len(d.dash) {
				return Event{}, false, ErrMalformedDelimiter
			}
			return Event{}, false, ErrNoBoundary
		}
		d.compact()
		return Event{Kind: EventNeedMoreInput}, true, nil

	default: // matchNone
		d.b1, d.b2 = d.b2, nil
		return Event{}, false, nil
	}
}

// readHeaders accumulates bytes until the blank line terminating the
// header block and emits the block without that terminator.
func (d *Decoder) readHeaders() (Event, bool, error) {
	// A blank line right away means a part with no headers.
	if len(d.b1)+len(d.b2) >= 2 && startsWithSplit(d.b1, d.b2, crlf) {
		d.skip(2)
		d.state = stateBody
		return Event{Kind: EventHeaderBlock}, true, nil
	}

	if t := bytes.Index(d.b1, crlfcrlf); t >= 0 {
		if t+4 > d.maxHeaderBytes {
			return Event{}, false, ErrHeaderTooLarge
		}
		block := d.b1[:t+2]
		d.skip(t + 4)
		d.state = stateBody
		return Event{Kind: EventHeaderBlock, Data: block}, true, nil
	}

	if len(d.b2) > 0 {
		// The terminator may straddle the two slots; fold and rescan.
		d.compact()
		return Event{}, false, nil
	}
	if len(d.b1) > d.maxHeaderBytes {
		return Event{}, false, ErrHeaderTooLarge
	}
	if d.inputEOF {
		return Event{}, false, ErrUnterminatedHeaders
	}
	return Event{Kind: EventNeedMoreInput}, true, nil
}

// readBody emits body slices up to the byte preceding the next
// delimiter's leading CRLF. Bytes that might begin a delimiter are held
// back until the scanner can confirm or reject the candidate.
func (d *Decoder) readBody() (Event, bool, error) {
	if len(d.b1) == 0 {
		if d.inputEOF {
			return Event{}, false, ErrUnexpectedEnd
		}
		return Event{Kind: EventNeedMoreInput}, true, nil
	}

	idx, kind := d.scanDelimiter(d.delim)
	switch kind {
	case matchRegular, matchClose:
		if idx > 0 {
			data := d.b1[:idx]
			d.skip(idx)
			return Event{Kind: EventBodyData, Data: data}, true, nil
		}
		d.skip(len(d.delim) + 2)
		d.retries = 0
		if kind == matchRegular {
			d.state = stateHeaders
		} else {
			d.state = stateEpilogue
		}
		return Event{Kind: EventPartEnd}, true, nil

	case matchFalse:
		// Body content that merely looks like a delimiter. Resume one
		// byte past the candidate start so the scan terminates.
		data := d.b1[:idx+1]
		d.skip(idx + 1)
		if err := d.retry(); err != nil {
			return Event{}, false, err
		}
		return Event{Kind: EventBodyData, Data: data}, true, nil

	case matchPartial:
		if idx > 0 {
			data := d.b1[:idx]
			d.skip(idx)
			return Event{Kind: EventBodyData, Data: data}, true, nil
		}
		if d.inputEOF {
			if len(d.b1)+len(d.b2) >= len(d.delim) {
				return Event{}, false, ErrMalformedDelimiter
			}
			return Event{}, false, ErrUnexpectedEnd
		}
		d.compact()
		return Event{Kind: EventNeedMoreInput}, true, nil

	default: // matchNone: everything buffered is confirmed body
		data := d.b1
		d.b1, d.b2 = d.b2, nil
		return Event{Kind: EventBodyData, Data: data}, true, nil
	}
}

func (d *Decoder) retry() error {
	d.retries++
	if d.retries > maxDelimiterRetries {
		return fmt.Errorf("[rapidpart] %d delimiter candidates with invalid suffixes: %w",
			d.retries, ErrMalformedDelimiter)
	}
	return nil
}
