package rapidpart

// FormPart is one decoded part of a fully buffered message.
type FormPart struct {
	Headers RawHeaders
	Body    []byte
}

// DecodeAll decodes an entire multipart body that is already in memory.
// This is faster than driving a [Reader] because the decoder sees one
// chunk and every emitted slice stays a view into data; bodies only get
// copied when delimiter lookalikes force them to be stitched together.
func DecodeAll(data []byte, boundary string, opts ...DecoderOption) ([]FormPart, error) {
	dec, err := NewDecoder(boundary, opts...)
	if err != nil {
		return nil, err
	}

	var parts []FormPart
	chunk := data
	for {
		ev, err := dec.Advance(chunk)
		chunk = nil
		if err != nil {
			return nil, err
		}

		switch ev.Kind {
		case EventNeedMoreInput:
			dec.Finish()
		case EventHeaderBlock:
			parts = append(parts, FormPart{Headers: RawHeaders{block: ev.Data}})
		case EventBodyData:
			cur := &parts[len(parts)-1]
			cur.Body = joinBytes(cur.Body, ev.Data)
		case EventStreamEnd:
			return parts, nil
		}
	}
}
