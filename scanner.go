package rapidpart

import "bytes"

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")
)

// scanDelimiter locates the earliest candidate occurrence of pat inside
// the buffered window (b1 followed by b2) and classifies its two-byte
// suffix. Candidates always start inside b1; a candidate beginning in b2
// is found on a later pass once b2 has been promoted.
//
// The scan is a single-byte pre-filter on the first pattern byte
// followed by full verification, so a window with no pattern bytes is
// skipped at memchr speed.
func (d *Decoder) scanDelimiter(pat []byte) (int, matchKind) {
	total := len(d.b1) + len(d.b2)

	for i := 0; i < len(d.b1); {
		j := bytes.IndexByte(d.b1[i:], pat[0])
		if j < 0 {
			return -1, matchNone
		}
		i += j

		if total-i < len(pat) {
			// The window is too short to hold the full pattern here. It
			// may still be the start of one arriving in a later chunk.
			if isPrefixSplit(d.b1[i:], d.b2, pat) {
				return i, matchPartial
			}
			i++
			continue
		}
		if !startsWithSplit(d.b1[i:], d.b2, pat) {
			i++
			continue
		}
		if total-i < len(pat)+2 {
			// Pattern matched but the classifying suffix is not here yet.
			return i, matchPartial
		}
		c0, c1 := d.at(i+len(pat)), d.at(i+len(pat)+1)
		switch {
		case c0 == '\r' && c1 == '\n':
			return i, matchRegular
		case c0 == '-' && c1 == '-':
			return i, matchClose
		default:
			return i, matchFalse
		}
	}
	return -1, matchNone
}

// at returns the byte at offset i of the logical window b1+b2.
func (d *Decoder) at(i int) byte {
	if i < len(d.b1) {
		return d.b1[i]
	}
	return d.b2[i-len(d.b1)]
}

// skip consumes n bytes from the front of the window, promoting b2 when
// b1 is exhausted.
func (d *Decoder) skip(n int) {
	if n < len(d.b1) {
		d.b1 = d.b1[n:]
		return
	}
	n -= len(d.b1)
	d.b1 = d.b2[n:]
	d.b2 = nil
	if len(d.b1) == 0 {
		d.b1 = nil
	}
}

// compact folds b2 into b1 so the next chunk can be accepted. This is
// the copy fallback: it only runs when a candidate delimiter or header
// terminator straddles the two slots.
func (d *Decoder) compact() {
	d.b1 = joinBytes(d.b1, d.b2)
	d.b2 = nil
}

// startsWithSplit reports whether the byte sequence b1+b2 starts with
// needle. b1+b2 must be at least len(needle) bytes.
func startsWithSplit(b1, b2, needle []byte) bool {
	n := min(len(b1), len(needle))
	return bytes.Equal(b1[:n], needle[:n]) && bytes.HasPrefix(b2, needle[n:])
}

// isPrefixSplit reports whether the whole window b1+b2, known to be
// shorter than needle, is a prefix of needle.
func isPrefixSplit(b1, b2, needle []byte) bool {
	if !bytes.HasPrefix(needle, b1) {
		return false
	}
	return bytes.HasPrefix(needle[len(b1):], b2)
}

// joinBytes concatenates two slices into a single allocation, avoiding
// the copy when either side is empty.
func joinBytes(b1, b2 []byte) []byte {
	if len(b1) == 0 {
		return b2
	}
	if len(b2) == 0 {
		return b1
	}
	joined := make([]byte, 0, len(b1)+len(b2))
	joined = append(joined, b1...)
	return append(joined, b2...)
}
