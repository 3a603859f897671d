// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// CHUNK DECODER
// =============================================================================

// Decoder turns raw chunks into UTF-8 text. A multi-byte sequence split
// across chunks is held back until the rest arrives, so Decode never emits
// half a character. Invalid bytes become U+FFFD.
type Decoder struct {
	t     transform.Transformer
	carry []byte
	dst   []byte
}

// NewDecoder creates a decoder for one stream.
func NewDecoder() *Decoder {
	return &Decoder{
		t:   unicode.UTF8.NewDecoder(),
		dst: make([]byte, 4096),
	}
}

// Decode consumes the next chunk and returns the text it completes.
func (d *Decoder) Decode(chunk []byte) string {
	src := chunk
	if len(d.carry) > 0 {
		src = append(d.carry, chunk...)
	}
	text, rest := d.transform(src, false)
	d.carry = append(d.carry[:0:0], rest...)
	return text
}

// Flush signals end of stream. Bytes still held back are an incomplete
// sequence and come out as replacement characters.
func (d *Decoder) Flush() string {
	if len(d.carry) == 0 {
		d.t.Reset()
		return ""
	}
	text, _ := d.transform(d.carry, true)
	d.carry = nil
	d.t.Reset()
	return text
}

// Pending returns the number of bytes held back for the next chunk.
func (d *Decoder) Pending() int {
	return len(d.carry)
}

func (d *Decoder) transform(src []byte, atEOF bool) (string, []byte) {
	var b strings.Builder
	for len(src) > 0 {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		b.Write(d.dst[:nDst])
		src = src[nSrc:]

		switch err {
		case nil:
			// Transform consumed everything it was given.
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
		case transform.ErrShortSrc:
			return b.String(), src
		default:
			// The UTF-8 decoder replaces bad input instead of failing.
			b.WriteString(strings.Repeat("\uFFFD", len(src)))
			return b.String(), nil
		}
	}
	return b.String(), nil
}
