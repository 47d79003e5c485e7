package rapidpart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rawHeaders(lines ...string) RawHeaders {
	var block []byte
	for _, line := range lines {
		block = append(block, line...)
		block = append(block, '\r', '\n')
	}
	return RawHeaders{block: block}
}

func TestRawHeadersLines(t *testing.T) {
	h := rawHeaders(
		"Content-Disposition: form-data; name=\"a\"",
		"Content-Type: text/plain",
	)

	lines := h.Lines()
	require.Len(t, lines, 2)
	require.Equal(t, "Content-Disposition: form-data; name=\"a\"", string(lines[0]))
	require.Equal(t, "Content-Type: text/plain", string(lines[1]))

	require.Empty(t, RawHeaders{}.Lines())
}

func TestRawHeadersLinesZeroCopy(t *testing.T) {
	h := rawHeaders("A: b", "C: d")
	for _, line := range h.Lines() {
		require.True(t, aliases(h.Bytes(), line))
	}
}

func TestRawHeadersGet(t *testing.T) {
	h := rawHeaders(
		"Content-Disposition: form-data; name=\"a\"",
		"Content-Type:   text/plain  ",
	)

	v, ok := h.Get("content-type")
	require.True(t, ok)
	require.Equal(t, "text/plain", string(v))

	v, ok = h.Get("CONTENT-DISPOSITION")
	require.True(t, ok)
	require.Equal(t, "form-data; name=\"a\"", string(v))

	_, ok = h.Get("X-Missing")
	require.False(t, ok)
}

func TestParseHeaders(t *testing.T) {
	cases := []struct {
		name     string
		headers  RawHeaders
		expected Headers
		err      error
	}{
		{
			name: "full",
			headers: rawHeaders(
				"Content-Disposition: form-data; name=\"abcd\"; filename=\"test.txt\"",
				"Content-Type: text/plain",
			),
			expected: Headers{Name: "abcd", Filename: "test.txt", ContentType: "text/plain"},
		},
		{
			name: "no_content_type",
			headers: rawHeaders(
				"Content-Disposition: form-data; name=\"abcd\"; filename=\"test.txt\"",
			),
			expected: Headers{Name: "abcd", Filename: "test.txt"},
		},
		{
			name:     "no_filename",
			headers:  rawHeaders("Content-Disposition: form-data; name=\"abcd\""),
			expected: Headers{Name: "abcd"},
		},
		{
			name:     "unquoted_name",
			headers:  rawHeaders("Content-Disposition: form-data; name=abcd"),
			expected: Headers{Name: "abcd"},
		},
		{
			name:    "missing_disposition",
			headers: rawHeaders("Content-Type: text/plain"),
			err:     ErrNoContentDisposition,
		},
		{
			name:    "not_form_data",
			headers: rawHeaders("Content-Disposition: attachment; name=\"abcd\""),
			err:     ErrNotFormData,
		},
		{
			name:    "missing_name",
			headers: rawHeaders("Content-Disposition: form-data; filename=\"test.txt\""),
			err:     ErrNoFormName,
		},
		{
			name:    "empty_block",
			headers: RawHeaders{},
			err:     ErrNoContentDisposition,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := tc.headers.Parse()
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, parsed)
		})
	}
}
