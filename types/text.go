package types

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

/*
ParseFixedUTF8 reads a fixed width text field of "width" bytes and returns
best effort human readable string: zero padding bytes are dropped and invalid
UTF-8 sequences are omitted. Returns false only when data is shorter than
width, malformed text never fails.

Use for any text sent over the wire which is meant to be rendered (token
names, symbols, governance module names).
*/
func ParseFixedUTF8(data []byte, width int) (string, bool) {
	if width < 0 || len(data) < width {
		return "", false
	}
	field := bytes.ReplaceAll(data[:width], []byte{0}, nil)

	var sb strings.Builder
	sb.Grow(len(field))
	for len(field) > 0 {
		r, size := utf8.DecodeRune(field)
		if r != utf8.RuneError {
			sb.WriteRune(r)
		}
		field = field[size:]
	}
	return sb.String(), true
}
