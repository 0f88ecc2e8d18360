// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Reading of PDF tokens and objects from a raw byte stream.

package zpdf

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sassoftware/viya-zpdf/logger"
)

// A token is a PDF token in the input stream. It is one of:
//
//	bool, int64, float64, string, keyword, name, or io.EOF.
//
// Tokens are produced by buffer.readToken and assembled into objects
// by buffer.readObject.
type token interface{}

// A name is a PDF name object, without the leading slash.
type name string

// A keyword is a bare identifier token: an operator, obj/endobj,
// stream/endstream, null, and the structural tokens
// "[", "]", "<<", ">>", "{", "}". The words true and false are
// read as bool tokens, not keywords.
type keyword string

// An object is a decoded PDF object:
// nil, bool, int64, float64, string, name, dict, array, stream,
// objptr, or objdef.
type object interface{}

type dict map[name]object

type array []object

// A stream is a stream object: its header dictionary and the absolute
// file offset of the first payload byte. The payload itself is read
// lazily through Value.Reader.
type stream struct {
	hdr    dict
	ptr    objptr
	offset int64
}

// An objptr is an indirect reference "id gen R".
type objptr struct {
	id  uint32
	gen uint16
}

// An objdef is a top-level object definition "id gen obj ... endobj".
type objdef struct {
	ptr objptr
	obj object
}

// A buffer is a lexer over a section of the file. pos indexes into
// buf; offset is the file offset just past the end of buf.
type buffer struct {
	r           io.Reader
	buf         []byte
	pos         int
	offset      int64
	unread      []token
	allowEOF    bool
	allowObjptr bool
	allowStream bool
	eof         bool
}

func newBuffer(r io.Reader, offset int64) *buffer {
	return &buffer{
		r:           r,
		offset:      offset,
		buf:         make([]byte, 0, 4096),
		allowObjptr: true,
		allowStream: true,
	}
}

func (b *buffer) readByte() byte {
	if b.pos >= len(b.buf) {
		b.reload()
		if b.pos >= len(b.buf) {
			return '\n'
		}
	}
	c := b.buf[b.pos]
	b.pos++
	return c
}

func (b *buffer) errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
	panic(fmt.Errorf(format, args...))
}

func (b *buffer) reload() bool {
	n := cap(b.buf) - int(b.offset%int64(cap(b.buf)))
	n, err := b.r.Read(b.buf[:n])
	if n == 0 && err != nil {
		b.buf = b.buf[:0]
		b.pos = 0
		if b.allowEOF && err == io.EOF {
			b.eof = true
			return false
		}
		b.errorf("malformed PDF: reading at offset %d: %v", b.offset, err)
		return false
	}
	// offset stays one past the end of buf: the n bytes just read
	// extend the covered region.
	b.offset += int64(n)
	b.buf = b.buf[:n]
	b.pos = 0
	return true
}

func (b *buffer) seekForward(offset int64) {
	for b.offset < offset {
		if !b.reload() {
			return
		}
	}
	b.pos = len(b.buf) - int(b.offset-offset)
}

func (b *buffer) readOffset() int64 {
	return b.offset - int64(len(b.buf)) + int64(b.pos)
}

func (b *buffer) unreadByte() {
	if b.pos > 0 {
		b.pos--
	}
}

func (b *buffer) unreadToken(t token) {
	b.unread = append(b.unread, t)
}

func (b *buffer) readToken() token {
	if n := len(b.unread); n > 0 {
		t := b.unread[n-1]
		b.unread = b.unread[:n-1]
		return t
	}

	// Find first non-space, non-comment byte.
	c := b.readByte()
	for isSpace(c) || c == '%' {
		if c == '%' {
			for c != '\r' && c != '\n' {
				c = b.readByte()
				if b.eof {
					return io.EOF
				}
			}
		}
		c = b.readByte()
		if b.eof {
			return io.EOF
		}
	}

	switch c {
	case '<':
		if b.readByte() == '<' {
			return keyword("<<")
		}
		b.unreadByte()
		return b.readHexString()

	case '(':
		return b.readLiteralString()

	case '[', ']', '{', '}':
		return keyword(string(c))

	case '/':
		return b.readName()

	case '>':
		if b.readByte() == '>' {
			return keyword(">>")
		}
		b.unreadByte()
		b.errorf("malformed PDF: unexpected '>'")

	default:
		if isDelim(c) {
			b.errorf("malformed PDF: unexpected delimiter %#q", rune(c))
			return nil
		}
		b.unreadByte()
		return b.readKeyword()
	}
	return nil
}

func (b *buffer) readHexString() token {
	tmp := []byte{}
	for !b.eof {
		c1 := b.readByte()
		for isSpace(c1) && !b.eof {
			c1 = b.readByte()
		}
		if c1 == '>' {
			break
		}
		c2 := b.readByte()
		for isSpace(c2) && !b.eof {
			c2 = b.readByte()
		}
		if c2 == '>' {
			// Odd digit count: final digit is the high nibble.
			tmp = append(tmp, unhex(c1)<<4)
			break
		}
		h1, h2 := unhex(c1), unhex(c2)
		if h1 == 255 || h2 == 255 {
			b.errorf("malformed PDF: bad character in hex string")
			break
		}
		tmp = append(tmp, h1<<4|h2)
	}
	return string(tmp)
}

func unhex(b byte) byte {
	switch {
	case '0' <= b && b <= '9':
		return b - '0'
	case 'a' <= b && b <= 'f':
		return b - 'a' + 10
	case 'A' <= b && b <= 'F':
		return b - 'A' + 10
	}
	return 255
}

func (b *buffer) readLiteralString() token {
	tmp := []byte{}
	depth := 1
Loop:
	for !b.eof {
		c := b.readByte()
		switch c {
		default:
			tmp = append(tmp, c)
		case '(':
			depth++
			tmp = append(tmp, c)
		case ')':
			if depth--; depth == 0 {
				break Loop
			}
			tmp = append(tmp, c)
		case '\\':
			switch c = b.readByte(); c {
			default:
				b.errorf("malformed PDF: invalid escape sequence \\%c", c)
				tmp = append(tmp, c)
			case 'n':
				tmp = append(tmp, '\n')
			case 'r':
				tmp = append(tmp, '\r')
			case 'b':
				tmp = append(tmp, '\b')
			case 't':
				tmp = append(tmp, '\t')
			case 'f':
				tmp = append(tmp, '\f')
			case '(', ')', '\\':
				tmp = append(tmp, c)
			case '\r':
				if b.readByte() != '\n' {
					b.unreadByte()
				}
				fallthrough
			case '\n':
				// line continuation: no output
			case '0', '1', '2', '3', '4', '5', '6', '7':
				x := int(c - '0')
				for i := 0; i < 2; i++ {
					c = b.readByte()
					if c < '0' || c > '7' {
						b.unreadByte()
						break
					}
					x = x*8 + int(c-'0')
				}
				if x > 255 {
					b.errorf("malformed PDF: octal escape out of range")
				}
				tmp = append(tmp, byte(x))
			}
		}
	}
	return string(tmp)
}

func (b *buffer) readName() token {
	tmp := []byte{}
	for {
		c := b.readByte()
		if isDelim(c) || isSpace(c) {
			b.unreadByte()
			break
		}
		if c == '#' {
			h1, h2 := unhex(b.readByte()), unhex(b.readByte())
			if h1 == 255 || h2 == 255 {
				b.errorf("malformed PDF: bad #-escape in name")
				continue
			}
			c = h1<<4 | h2
		}
		tmp = append(tmp, c)
	}
	return name(string(tmp))
}

func (b *buffer) readKeyword() token {
	tmp := []byte{}
	for {
		c := b.readByte()
		if isDelim(c) || isSpace(c) {
			b.unreadByte()
			break
		}
		tmp = append(tmp, c)
	}
	s := string(tmp)
	switch {
	case s == "true":
		return true
	case s == "false":
		return false
	case isInteger(s):
		x, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			b.errorf("malformed PDF: invalid integer %q", s)
		}
		return x
	case isReal(s):
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			b.errorf("malformed PDF: invalid real %q", s)
		}
		return x
	}
	return keyword(s)
}

func isInteger(s string) bool {
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if c < '0' || '9' < c {
			return false
		}
	}
	return true
}

func isReal(s string) bool {
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if len(s) == 0 {
		return false
	}
	ndot := 0
	for _, c := range s {
		if c == '.' {
			ndot++
			continue
		}
		if c < '0' || '9' < c {
			return false
		}
	}
	return ndot == 1
}

// readObject reads the next complete object: a composite built from
// the token stream, with "id gen R" collapsed to objptr and
// "id gen obj ... endobj" to objdef.
func (b *buffer) readObject() object {
	tok := b.readToken()
	return b.readObjectAfter(tok)
}

func (b *buffer) readObjectAfter(tok token) object {
	switch tok := tok.(type) {
	case keyword:
		switch tok {
		case "<<":
			return b.readDict()
		case "[":
			return b.readArray()
		case "null":
			return nil
		}
		b.errorf("malformed PDF: unexpected keyword %q parsing object", string(tok))
		return nil
	case string, bool, float64, name:
		return tok
	case int64:
		if !b.allowObjptr {
			return tok
		}
		// Could be "id gen R" or "id gen obj".
		tok2 := b.readToken()
		gen, ok := tok2.(int64)
		if !ok {
			b.unreadToken(tok2)
			return tok
		}
		tok3 := b.readToken()
		switch tok3 {
		case keyword("R"):
			return objptr{uint32(tok), uint16(gen)}
		case keyword("obj"):
			obj := b.readObject()
			ptr := objptr{uint32(tok), uint16(gen)}
			if strm, ok := obj.(stream); ok {
				strm.ptr = ptr
				return objdef{ptr, strm}
			}
			if tok4 := b.readToken(); tok4 != keyword("endobj") {
				b.errorf("malformed PDF: missing endobj after object definition, found %v", tok4)
				b.unreadToken(tok4)
			}
			return objdef{ptr, obj}
		}
		b.unreadToken(tok3)
		b.unreadToken(tok2)
		return tok
	}
	b.errorf("malformed PDF: unexpected token %v parsing object", tok)
	return nil
}

func (b *buffer) readDict() object {
	d := make(dict)
	for {
		tok := b.readToken()
		if tok == keyword(">>") {
			break
		}
		key, ok := tok.(name)
		if !ok {
			b.errorf("malformed PDF: dictionary key is %v, not a name", tok)
			continue
		}
		d[key] = b.readObject()
	}

	if !b.allowStream {
		return d
	}
	tok := b.readToken()
	if tok != keyword("stream") {
		b.unreadToken(tok)
		return d
	}

	// The stream payload begins after an optional CR and a mandatory LF.
	switch b.readByte() {
	case '\r':
		if b.readByte() != '\n' {
			b.unreadByte()
		}
	case '\n':
		// ok
	default:
		b.unreadByte()
	}
	return stream{hdr: d, offset: b.readOffset()}
}

func (b *buffer) readArray() object {
	var a array
	for {
		tok := b.readToken()
		if tok == keyword("]") || tok == io.EOF {
			break
		}
		a = append(a, b.readObjectAfter(tok))
	}
	return a
}

func isSpace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelim(b byte) bool {
	switch b {
	case '<', '>', '(', ')', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
