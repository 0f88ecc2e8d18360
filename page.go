// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package zpdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sassoftware/viya-zpdf/logger"
)

// A Page represent a single page in a PDF file.
// The methods interpret a Page dictionary stored in V.
type Page struct {
	V Value
}

// Page returns the page for the given page number.
// Page numbers are indexed starting at 1, not 0.
// If the page is not found, Page returns a Page with p.V.IsNull().
func (r *Reader) Page(num int) Page {
	logger.Debug(fmt.Sprintf("Reading Page %d", num), true)
	num-- // now 0-indexed
	page := r.Trailer().Key("Root").Key("Pages")
Search:
	for page.Key("Type").Name() == "Pages" {
		count := int(page.Key("Count").Int64())
		if count < num {
			return Page{}
		}
		kids := page.Key("Kids")
		for i := 0; i < kids.Len(); i++ {
			kid := kids.Index(i)
			if kid.Key("Type").Name() == "Pages" {
				c := int(kid.Key("Count").Int64())
				if num < c {
					page = kid
					continue Search
				}
				num -= c
				continue
			}
			if kid.Key("Type").Name() == "Page" {
				if num == 0 {
					return Page{kid}
				}
				num--
			}
		}
		break
	}
	return Page{}
}

// NumPage returns the number of pages in the PDF file.
func (r *Reader) NumPage() int {
	return int(r.Trailer().Key("Root").Key("Pages").Key("Count").Int64())
}

func (p Page) findInherited(key string) Value {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
	}
	return Value{}
}

// MediaBox returns the page's media box, inherited from the page tree
// when absent on the page itself.
func (p Page) MediaBox() Value {
	return p.findInherited("MediaBox")
}

// Rotate returns the page's clockwise rotation, normalised to a
// multiple of 90 in [0, 270].
func (p Page) Rotate() int {
	rot := int(p.findInherited("Rotate").Int64())
	rot %= 360
	if rot < 0 {
		rot += 360
	}
	return rot - rot%90
}

// Resources returns the resources dictionary associated with the page.
func (p Page) Resources() Value {
	return p.findInherited("Resources")
}

// Fonts returns a list of the fonts associated with the page.
func (p Page) Fonts() []string {
	return p.Resources().Key("Font").Keys()
}

// Font returns the font with the given name associated with the page.
func (p Page) Font(name string) Font {
	return Font{p.Resources().Key("Font").Key(name), nil}
}

// contentReader returns a reader over the page's content, logically
// concatenating the streams when /Contents is an array. A space joins
// adjacent streams so tokens cannot run together across the seam.
func (p Page) contentReader() io.Reader {
	contents := p.V.Key("Contents")
	switch contents.Kind() {
	case Stream:
		return contents.Reader()
	case Array:
		var readers []io.Reader
		for i := 0; i < contents.Len(); i++ {
			if s := contents.Index(i); s.Kind() == Stream {
				readers = append(readers, s.Reader(), bytes.NewReader([]byte(" ")))
			}
		}
		return io.MultiReader(readers...)
	}
	return bytes.NewReader(nil)
}

// A Font represent a font in a PDF file.
// The methods interpret a Font dictionary stored in V.
type Font struct {
	V   Value
	enc TextEncoding
}

// BaseFont returns the font's name (BaseFont property).
func (f Font) BaseFont() string {
	return f.V.Key("BaseFont").Name()
}

// FirstChar returns the code point of the first character in the font.
func (f Font) FirstChar() int {
	return int(f.V.Key("FirstChar").Int64())
}

// LastChar returns the code point of the last character in the font.
func (f Font) LastChar() int {
	return int(f.V.Key("LastChar").Int64())
}

// Widths returns the widths of the glyphs in the font.
// In a well-formed PDF, len(f.Widths()) == f.LastChar()+1 - f.FirstChar().
func (f Font) Widths() []float64 {
	x := f.V.Key("Widths")
	var out []float64
	for i := 0; i < x.Len(); i++ {
		out = append(out, x.Index(i).Float64())
	}
	return out
}

// IsType0 reports whether f is a composite (CID-keyed) font.
// Type0 fonts consume two bytes per glyph code.
func (f Font) IsType0() bool {
	return f.V.Key("Subtype").Name() == "Type0"
}

// BytesPerCode returns the number of content-stream bytes per glyph
// code for this font.
func (f Font) BytesPerCode() int {
	if f.IsType0() {
		return 2
	}
	return 1
}

// descendant returns the single descendant font of a Type0 font.
func (f Font) descendant() Value {
	return f.V.Key("DescendantFonts").Index(0)
}

// MissingWidth returns the width substituted for codes outside the
// /Widths range, from the font descriptor.
func (f Font) MissingWidth() float64 {
	return f.V.Key("FontDescriptor").Key("MissingWidth").Float64()
}

// Width returns the width of the given code point, in glyph-space
// units (thousandths of an em).
func (f Font) Width(code int) float64 {
	if f.IsType0() {
		return f.cidWidth(code)
	}
	first := f.FirstChar()
	last := f.LastChar()
	if code < first || last < code {
		return f.MissingWidth()
	}
	w := f.V.Key("Widths").Index(code - first)
	if w.IsNull() {
		return f.MissingWidth()
	}
	return w.Float64()
}

// cidWidth looks the CID up in the descendant font's /W array.
// The array interleaves two forms: "c [w1 w2 ...]" assigning
// consecutive widths starting at c, and "cFirst cLast w" assigning w
// to a whole range. Codes not covered default to /DW, itself
// defaulting to 1000.
func (f Font) cidWidth(code int) float64 {
	desc := f.descendant()
	w := desc.Key("W")
	for i := 0; i < w.Len(); {
		first := w.Index(i)
		next := w.Index(i + 1)
		if next.Kind() == Array {
			c := int(first.Int64())
			if code >= c && code < c+next.Len() {
				return next.Index(code - c).Float64()
			}
			i += 2
			continue
		}
		if i+2 < w.Len() || w.Len()%3 == 0 {
			lo, hi := int(first.Int64()), int(next.Int64())
			if code >= lo && code <= hi {
				return w.Index(i + 2).Float64()
			}
		}
		i += 3
	}
	if dw := desc.Key("DW"); !dw.IsNull() {
		return dw.Float64()
	}
	return 1000
}

// Encoder returns the encoding between font code point sequences and UTF-8.
func (f *Font) Encoder() TextEncoding {
	if f.enc == nil { // caching the Encoder so we don't have to continually parse charmap
		f.enc = f.getEncoder()
	}
	return f.enc
}

// getEncoder determines the glyph-code decoder for the font.
// /ToUnicode wins when present; otherwise the /Encoding entry
// (a named encoding or a dictionary with /BaseEncoding and
// /Differences); otherwise the built-in default for the font type.
func (f *Font) getEncoder() TextEncoding {
	logger.Debug(fmt.Sprintf("getEncoder: determining text encoding for Font %d %d R", f.V.ptr.id, f.V.ptr.gen))

	if toUnicode := f.V.Key("ToUnicode"); toUnicode.Kind() == Stream {
		logger.Debug("getEncoder: found ToUnicode stream — attempting to read CMap", true)
		if m := readCmap(toUnicode); m != nil {
			return m
		}
	}

	enc := f.V.Key("Encoding")
	switch enc.Kind() {
	case Name:
		logger.Debug(fmt.Sprintf("getEncoder: found named encoding = %q", enc.Name()), true)
		switch enc.Name() {
		case "WinAnsiEncoding":
			return &byteEncoder{&winAnsiEncoding}
		case "MacRomanEncoding":
			return &byteEncoder{&macRomanEncoding}
		case "StandardEncoding":
			return &byteEncoder{&standardEncoding}
		case "Identity-H", "Identity-V":
			// Raw CIDs with no ToUnicode: no text mapping exists.
			return &nopEncoder{}
		default:
			logger.Debug(fmt.Sprintf("unknown encoding: %s", enc.Name()))
			return f.builtinEncoder()
		}
	case Dict:
		return newDictEncoder(enc, f.builtinTable())
	case Null:
		return f.builtinEncoder()
	default:
		logger.Debug(fmt.Sprintf("unexpected encoding: %s", enc.String()))
		return &nopEncoder{}
	}
}

// builtinTable returns the default byte table for the font's type.
func (f *Font) builtinTable() *[256]rune {
	switch f.V.Key("Subtype").Name() {
	case "TrueType":
		return &winAnsiEncoding
	default:
		return &standardEncoding
	}
}

func (f *Font) builtinEncoder() TextEncoding {
	if f.IsType0() {
		return &nopEncoder{}
	}
	return &byteEncoder{f.builtinTable()}
}

// newDictEncoder builds an encoder from an /Encoding dictionary:
// the base table overridden by the /Differences array, which
// alternates code integers and glyph names.
func newDictEncoder(enc Value, base *[256]rune) TextEncoding {
	var table [256]rune
	if b := enc.Key("BaseEncoding"); b.Kind() == Name {
		switch b.Name() {
		case "WinAnsiEncoding":
			base = &winAnsiEncoding
		case "MacRomanEncoding":
			base = &macRomanEncoding
		case "StandardEncoding":
			base = &standardEncoding
		}
	}
	table = *base

	diffs := enc.Key("Differences")
	code := 0
	for i := 0; i < diffs.Len(); i++ {
		x := diffs.Index(i)
		switch x.Kind() {
		case Integer:
			code = int(x.Int64())
		case Name:
			if code >= 0 && code < 256 {
				if r := nameToRune[x.Name()]; r != 0 {
					table[code] = r
				} else {
					table[code] = noRune
				}
			}
			code++
		}
	}
	return &byteEncoder{&table}
}

// A TextEncoding represents a mapping between
// font code points and UTF-8 text.
type TextEncoding interface {
	// Decode returns the UTF-8 text corresponding to
	// the sequence of code points in raw.
	Decode(raw string) (text string)
}

type nopEncoder struct {
}

func (e *nopEncoder) Decode(raw string) (text string) {
	return raw
}

type byteEncoder struct {
	table *[256]rune
}

func (e *byteEncoder) Decode(raw string) (text string) {
	r := make([]rune, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		ch := e.table[raw[i]]
		if ch == 0 {
			// Undefined code: decode to U+FFFD rather than dropping.
			ch = noRune
		}
		r = append(r, ch)
	}
	return string(r)
}

type byteRange struct {
	low  string
	high string
}

type bfchar struct {
	orig string
	repl string
}

type bfrange struct {
	lo  string
	hi  string
	dst Value
}

type cmap struct {
	space   [4][]byteRange // codespace range
	bfrange []bfrange
	bfchar  []bfchar
}

// Decode translates raw character codes into Unicode runes using the
// CMap rules: bfchar entries first, then bfrange entries, and for
// unmapped codes the raw bytes are preserved rather than replaced by
// a sentinel, so no input data is silently lost.
func (m *cmap) Decode(raw string) string {
	var runes []rune

	for len(raw) > 0 {
		// find next valid codespace match
		code, width := m.findNextCodespace(raw)
		if width == 0 {
			// no codespace, preserve first byte and continue
			runes = append(runes, DecodeUTF8OrPreserve(raw[:1])...)
			raw = raw[1:]
			continue
		}

		decoded, ok := m.resolveCodeMapping(code, width)
		if ok {
			runes = append(runes, decoded...)
		} else {
			// no explicit mapping then preserve raw bytes safely
			runes = append(runes, DecodeUTF8OrPreserve(code)...)
		}

		raw = raw[width:]
	}

	return string(runes)
}

// findNextCodespace checks raw for a valid codespace sequence of length 1–4.
// Returns the matched bytes and its length, or ("", 0) if no codespace matches.
func (m *cmap) findNextCodespace(raw string) (string, int) {
	for n := 1; n <= 4 && n <= len(raw); n++ {
		for _, space := range m.space[n-1] {
			if space.low <= raw[:n] && raw[:n] <= space.high {
				return raw[:n], n
			}
		}
	}
	return "", 0
}

// resolveCodeMapping tries to map a code using bfchar or bfrange rules.
// Returns decoded runes and true if a mapping was found.
func (m *cmap) resolveCodeMapping(code string, width int) ([]rune, bool) {
	// Exact bfchar match
	for _, bfchar := range m.bfchar {
		if len(bfchar.orig) == width && bfchar.orig == code {
			return []rune(utf16Decode(bfchar.repl)), true
		}
	}
	// bfrange match
	for _, br := range m.bfrange {
		if len(br.lo) == width && br.lo <= code && code <= br.hi {
			switch br.dst.Kind() {
			case String:
				return resolveBfrangeWithString(br, code), true
			case Array:
				return resolveBfrangeWithArray(br, code), true
			}
		}
	}

	return nil, false
}

// resolveBfrangeWithString handles bfrange mappings where dst is a String.
func resolveBfrangeWithString(br bfrange, code string) []rune {
	s := br.dst.RawString()
	if br.lo != code && len(s) > 0 {
		// increment last byte according to offset within range
		b := []byte(s)
		b[len(b)-1] += code[len(code)-1] - br.lo[len(br.lo)-1]
		s = string(b)
	}
	return []rune(utf16Decode(s))
}

// resolveBfrangeWithArray handles bfrange mappings where dst is an Array.
func resolveBfrangeWithArray(br bfrange, code string) []rune {
	idx := code[len(code)-1] - br.lo[len(br.lo)-1]
	v := br.dst.Index(int(idx))
	if v.Kind() == String {
		return []rune(utf16Decode(v.RawString()))
	}
	return nil
}

func readCmap(toUnicode Value) *cmap {
	logger.Debug("reading Cmap")

	n := -1
	var m cmap
	ok := true
	Interpret(toUnicode, func(stk *Stack, op string) {
		if !ok {
			return
		}
		switch op {
		case "findresource":
			stk.Pop() // category
			stk.Pop() // key
			stk.Push(newDict())
		case "begincmap":
			stk.Push(newDict())
		case "endcmap":
			stk.Pop()
		case "begincodespacerange":
			n = int(stk.Pop().Int64())
		case "endcodespacerange":
			if n < 0 {
				logger.Debug("missing begincodespacerange")
				ok = false
				return
			}
			for i := 0; i < n; i++ {
				hi, lo := stk.Pop().RawString(), stk.Pop().RawString()
				if len(lo) == 0 || len(lo) != len(hi) || len(lo) > 4 {
					logger.Debug("bad codespace range")
					ok = false
					return
				}
				m.space[len(lo)-1] = append(m.space[len(lo)-1], byteRange{lo, hi})
			}
			n = -1
		case "beginbfchar":
			n = int(stk.Pop().Int64())
		case "endbfchar":
			if n < 0 {
				logger.Error("missing beginbfchar")
				panic("missing beginbfchar")
			}
			for i := 0; i < n; i++ {
				repl, orig := stk.Pop().RawString(), stk.Pop().RawString()
				m.bfchar = append(m.bfchar, bfchar{orig, repl})
			}
		case "beginbfrange":
			n = int(stk.Pop().Int64())
		case "endbfrange":
			if n < 0 {
				logger.Error("missing beginbfrange")
				panic("missing beginbfrange")
			}
			for i := 0; i < n; i++ {
				dst, srcHi, srcLo := stk.Pop(), stk.Pop().RawString(), stk.Pop().RawString()
				m.bfrange = append(m.bfrange, bfrange{srcLo, srcHi, dst})
			}
		case "defineresource":
			stk.Pop().Name() // category
			value := stk.Pop()
			stk.Pop().Name() // key
			stk.Push(value)
		default:
			if DebugOn {
				println("interp\t", op)
			}
		}
	})
	if !ok {
		return nil
	}
	return &m
}

type matrix [3][3]float64

var ident = matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func (x matrix) mul(y matrix) matrix {
	var z matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				z[i][j] += x[i][k] * y[k][j]
			}
		}
	}
	return z
}

// A Text represents a single piece of text drawn on a page.
type Text struct {
	Font     string  // the font used
	FontSize float64 // the font size, in points (1/72 of an inch)
	X        float64 // the X coordinate, in points, increasing left to right
	Y        float64 // the Y coordinate, in points, increasing bottom to top
	W        float64 // the width of the text, in points
	S        string  // the actual UTF-8 text
}

// A Rect represents a rectangle in default user space.
type Rect struct {
	Min, Max Point
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 {
	w := r.Max.X - r.Min.X
	if w < 0 {
		return -w
	}
	return w
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 {
	h := r.Max.Y - r.Min.Y
	if h < 0 {
		return -h
	}
	return h
}

// A Point represents an X, Y pair.
type Point struct {
	X float64
	Y float64
}

// mediaBoxRect returns the page's media box as a Rect.
func (p Page) mediaBoxRect() Rect {
	mb := p.MediaBox()
	return Rect{
		Min: Point{mb.Index(0).Float64(), mb.Index(1).Float64()},
		Max: Point{mb.Index(2).Float64(), mb.Index(3).Float64()},
	}
}

// GetPlainText returns the page's text in content-stream order.
// fonts can be passed in (to improve parsing performance) or left nil.
func (p Page) GetPlainText(fonts map[string]*Font) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ""
			logger.Error(fmt.Sprint(r))
			err = fmt.Errorf("%w: %v", ErrExtraction, r)
		}
	}()

	// Handle in case the content page is empty
	if p.V.IsNull() || p.V.Key("Contents").Kind() == Null {
		return "", nil
	}
	if fonts == nil {
		fonts = make(map[string]*Font)
		for _, font := range p.Fonts() {
			f := p.Font(font)
			fonts[font] = &f
		}
	}

	var enc TextEncoding = &nopEncoder{}
	var textBuilder bytes.Buffer
	showEncodedText := func(s string) {
		textBuilder.WriteString(enc.Decode(s))
	}
	logger.Debug("Parsing content", true)

	InterpretReader(p.contentReader(), func(stk *Stack, op string) {
		n := stk.Len()
		args := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		default:
			return
		case "BT": // add a break between text objects
			textBuilder.WriteString("\n")
		case "T*", "'", "\"": // move to start of next line
			textBuilder.WriteString("\n")
			if op == "'" && len(args) == 1 || op == "\"" && len(args) == 3 {
				showEncodedText(args[len(args)-1].RawString())
			}
		case "Tf": // set text font and size
			if len(args) != 2 {
				logger.Error("bad Tf")
				panic("bad Tf")
			}
			if font, ok := fonts[args[0].Name()]; ok {
				enc = font.Encoder()
			} else {
				enc = &nopEncoder{}
			}
		case "Td", "TD": // move text position: line break in stream order
			textBuilder.WriteString("\n")
		case "Tj": // show text
			if len(args) != 1 {
				logger.Error("bad Tj operator")
				panic("bad Tj operator")
			}
			showEncodedText(args[0].RawString())
		case "TJ": // show text, allowing individual glyph positioning
			v := args[0]
			for i := 0; i < v.Len(); i++ {
				x := v.Index(i)
				if x.Kind() == String {
					showEncodedText(x.RawString())
				}
			}
		}
	})

	logger.Debug("Completed content parsing", true)

	return textBuilder.String(), nil
}

// GetStyledTexts returns the document's text runs merged into
// sentences that share font, size and baseline.
func (r *Reader) GetStyledTexts() (sentences []Text, err error) {
	totalPage := r.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := r.Page(pageIndex)

		if p.V.IsNull() || p.V.Key("Contents").Kind() == Null {
			continue
		}
		texts, perr := p.Texts(nil)
		if perr != nil {
			return nil, perr
		}
		var lastTextStyle Text
		for _, text := range texts {
			if lastTextStyle == (Text{}) {
				lastTextStyle = text
				continue
			}
			if IsSameSentence(lastTextStyle, text) {
				lastTextStyle.S = lastTextStyle.S + text.S
			} else {
				sentences = append(sentences, lastTextStyle)
				lastTextStyle = text
			}
		}
		if len(lastTextStyle.S) > 0 {
			sentences = append(sentences, lastTextStyle)
		}
	}

	return sentences, err
}

// An Outline is a tree describing the outline (also known as the table of contents)
// of a document.
type Outline struct {
	Title string    // title for this element
	Child []Outline // child elements
}

// Outline returns the document outline.
// The Outline returned is the root of the outline tree and typically has no Title itself.
// That is, the children of the returned root are the top-level entries in the outline.
func (r *Reader) Outline() Outline {
	return buildOutline(r.Trailer().Key("Root").Key("Outlines"), 0)
}

func buildOutline(entry Value, depth int) Outline {
	var x Outline
	if depth > 64 {
		return x
	}
	x.Title = entry.Key("Title").Text()
	for child := entry.Key("First"); child.Kind() == Dict; child = child.Key("Next") {
		x.Child = append(x.Child, buildOutline(child, depth+1))
	}
	return x
}
