package rapidpart

// state is the current Decoder state. Transitions are one-directional
// except stateBody -> stateHeaders, which repeats once per part.
// stateDone and stateFailed are terminal.
type state int

const (
	statePreamble state = iota // discarding bytes before the first delimiter
	stateHeaders               // accumulating a header block up to CRLF CRLF
	stateBody                  // emitting body bytes up to the next delimiter
	stateEpilogue              // final delimiter seen, StreamEnd pending
	stateDone
	stateFailed
)

// EventKind identifies what a single Decoder advance produced.
type EventKind int

const (
	// EventNeedMoreInput means no progress can be made until the caller
	// supplies the next chunk (or calls Finish).
	EventNeedMoreInput EventKind = iota
	// EventHeaderBlock carries the raw header block of a new part,
	// without the blank-line terminator.
	EventHeaderBlock
	// EventBodyData carries a slice of the current part's body.
	EventBodyData
	// EventPartEnd marks the end of the current part's body.
	EventPartEnd
	// EventStreamEnd marks the end of the multipart stream. It is
	// returned again on every subsequent advance.
	EventStreamEnd
)

// Event is a single item produced by [Decoder.Advance].
//
// Data is only set for EventHeaderBlock and EventBodyData. It is either
// a sub-slice of a chunk previously passed to Advance, or a sub-slice
// of a private buffer the Decoder had to materialize when a delimiter
// straddled chunks smaller than itself. The backing bytes are never
// modified afterwards.
type Event struct {
	Kind EventKind
	Data []byte
}

// matchKind classifies a candidate delimiter found by the boundary
// scanner.
type matchKind int

const (
	matchNone    matchKind = iota // no candidate starts inside the buffered window
	matchPartial                  // candidate runs past the buffered bytes
	matchFalse                    // full pattern present but the two-byte suffix is neither CRLF nor "--"
	matchRegular                  // delimiter followed by CRLF: another part follows
	matchClose                    // delimiter followed by "--": final delimiter
)
