// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Content-stream interpretation: the text state machine and the span
// collector feeding the reading-order and bounds layers.

package zpdf

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sassoftware/viya-zpdf/logger"
)

// A Span is a positioned, sized, Unicode-decoded text run in default
// user space. Coordinates satisfy X0 <= X1 and Y0 <= Y1.
type Span struct {
	X0, Y0, X1, Y1 float64
	Text           string
	FontSize       float64

	font     string
	mcid     int // -1 when the run carries no marked-content id
	artifact bool
}

// Bounds returns the span's bounding box as a Rect.
func (s Span) Bounds() Rect {
	return Rect{Min: Point{s.X0, s.Y0}, Max: Point{s.X1, s.Y1}}
}

// gstate is the graphics and text state tracked while executing a
// content stream.
type gstate struct {
	Tc    float64 // character spacing
	Tw    float64 // word spacing
	Th    float64 // horizontal scaling (Tz/100)
	Tl    float64 // leading
	Tf    *Font
	Tfname string
	Tfs   float64 // font size
	Tmode int     // render mode
	Trise float64
	Tm    matrix
	Tlm   matrix
	CTM   matrix
}

// spanBuilder coalesces consecutive glyphs into spans. A new span
// begins on font change, a baseline shift beyond half the font size,
// a backward step of more than a tenth of an em, or a forward gap of
// more than one em.
type spanBuilder struct {
	spans []Span

	active   bool
	text     strings.Builder
	font     string
	size     float64
	baseline float64
	x0, y0   float64
	x1, y1   float64
	mcid     int
	artifact bool
}

func (sb *spanBuilder) glyph(font string, size, x, y, w, h float64, text string, mcid int, artifact bool) {
	if sb.active {
		sameStyle := font == sb.font && math.Abs(size-sb.size) < 0.1 &&
			mcid == sb.mcid && artifact == sb.artifact
		sameLine := math.Abs(y-sb.baseline) <= sb.size/2
		gap := x - sb.x1
		em := sb.size
		if em == 0 {
			em = 1
		}
		if !sameStyle || !sameLine || gap < -0.1*em || gap > em {
			sb.flush()
		}
	}
	if !sb.active {
		sb.active = true
		sb.text.Reset()
		sb.font = font
		sb.size = size
		sb.baseline = y
		sb.x0, sb.y0 = x, y
		sb.x1, sb.y1 = x, y
		sb.mcid = mcid
		sb.artifact = artifact
	}
	sb.text.WriteString(text)
	if x+w > sb.x1 {
		sb.x1 = x + w
	}
	if y+h > sb.y1 {
		sb.y1 = y + h
	}
	if x < sb.x0 {
		sb.x0 = x
	}
	if y < sb.y0 {
		sb.y0 = y
	}
}

// flush normalises and emits the pending span. Spans whose text is
// empty after trimming, or whose box has no area, are dropped.
func (sb *spanBuilder) flush() {
	if !sb.active {
		return
	}
	sb.active = false
	text := sb.text.String()
	if strings.TrimSpace(text) == "" {
		return
	}
	x0, x1 := sb.x0, sb.x1
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	y0, y1 := sb.y0, sb.y1
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if x1-x0 == 0 || y1-y0 == 0 {
		return
	}
	sb.spans = append(sb.spans, Span{
		X0: x0, Y0: y0, X1: x1, Y1: y1,
		Text:     text,
		FontSize: sb.size,
		font:     sb.font,
		mcid:     sb.mcid,
		artifact: sb.artifact,
	})
}

// markedContent is one entry of the BMC/BDC nesting stack.
type markedContent struct {
	tag  string
	mcid int
}

// Spans interprets the page's content streams and returns the
// positioned text runs in stream order. The context is checked at
// marked-content boundaries and at coarse operator intervals.
func (p Page) Spans(ctx context.Context, fonts map[string]*Font) (spans []Span, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ctx.Err() != nil {
				spans, err = nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
				return
			}
			logger.Error(fmt.Sprint(r))
			spans, err = nil, fmt.Errorf("%w: %v", ErrExtraction, r)
		}
	}()

	if p.V.IsNull() || p.V.Key("Contents").Kind() == Null {
		return nil, nil
	}
	if fonts == nil {
		fonts = make(map[string]*Font)
		for _, font := range p.Fonts() {
			f := p.Font(font)
			fonts[font] = &f
		}
	}

	g := gstate{
		Th:  1,
		CTM: ident,
	}
	var gstack []gstate
	var mcStack []markedContent
	var sb spanBuilder
	var enc TextEncoding = &nopEncoder{}
	opCount := 0

	checkCancel := func() {
		if ctx.Err() != nil {
			panic(ctx.Err())
		}
	}

	currentMCID := func() (int, bool) {
		mcid, artifact := -1, false
		for _, mc := range mcStack {
			if mc.tag == "Artifact" {
				artifact = true
			}
			if mc.mcid >= 0 {
				mcid = mc.mcid
			}
		}
		return mcid, artifact
	}

	// showText runs the per-glyph placement of §9.4.4 of the PDF
	// specification: decode, measure, place, advance.
	showText := func(s string) {
		if g.Tf == nil {
			return
		}
		step := g.Tf.BytesPerCode()
		for i := 0; i+step <= len(s); i += step {
			raw := s[i : i+step]
			code := 0
			for j := 0; j < step; j++ {
				code = code<<8 | int(raw[j])
			}
			decoded := enc.Decode(raw)

			w0 := g.Tf.Width(code)
			trm := matrix{{g.Tfs * g.Th, 0, 0}, {0, g.Tfs, 0}, {0, g.Trise, 1}}.mul(g.Tm).mul(g.CTM)
			ox, oy := trm[2][0], trm[2][1]
			gw := w0 / 1000 * trm[0][0]
			gh := math.Abs(trm[1][1])
			size := gh
			if size == 0 {
				size = g.Tfs
			}

			mcid, artifact := currentMCID()
			sb.glyph(g.Tfname, size, ox, oy, gw, gh, decoded, mcid, artifact)

			tx := w0/1000*g.Tfs + g.Tc
			if code == 32 && step == 1 {
				tx += g.Tw
			}
			tx *= g.Th
			g.Tm = matrix{{1, 0, 0}, {0, 1, 0}, {tx, 0, 1}}.mul(g.Tm)
		}
	}

	InterpretReader(p.contentReader(), func(stk *Stack, op string) {
		opCount++
		if opCount%1000 == 0 {
			checkCancel()
		}
		n := stk.Len()
		args := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		switch op {
		default:
			// Unknown operators are ignored.
			return

		case "q": // save graphics state
			gstack = append(gstack, g)

		case "Q": // restore graphics state
			if n := len(gstack); n > 0 {
				g = gstack[n-1]
				gstack = gstack[:n-1]
			}

		case "cm": // concatenate matrix onto CTM
			if len(args) != 6 {
				return
			}
			var m matrix
			for i := 0; i < 6; i++ {
				m[i/2][i%2] = args[i].Float64()
			}
			m[2][2] = 1
			g.CTM = m.mul(g.CTM)

		case "BT": // begin text (reset text matrix and line matrix)
			g.Tm = ident
			g.Tlm = g.Tm

		case "ET": // end text
			sb.flush()

		case "Tc": // set character spacing
			if len(args) == 1 {
				g.Tc = args[0].Float64()
			}

		case "Tw": // set word spacing
			if len(args) == 1 {
				g.Tw = args[0].Float64()
			}

		case "Tz": // set horizontal text scaling
			if len(args) == 1 {
				g.Th = args[0].Float64() / 100
			}

		case "TL": // set text leading
			if len(args) == 1 {
				g.Tl = args[0].Float64()
			}

		case "Ts": // set text rise
			if len(args) == 1 {
				g.Trise = args[0].Float64()
			}

		case "Tr": // set text rendering mode
			if len(args) == 1 {
				g.Tmode = int(args[0].Int64())
			}

		case "Tf": // set text font and size
			if len(args) != 2 {
				logger.Error("bad Tf operand count; skipping")
				return
			}
			g.Tfname = args[0].Name()
			if font, ok := fonts[g.Tfname]; ok {
				g.Tf = font
				enc = font.Encoder()
			} else {
				f := p.Font(g.Tfname)
				g.Tf = &f
				enc = f.Encoder()
			}
			g.Tfs = args[1].Float64()

		case "TD": // move text position and set leading
			if len(args) != 2 {
				return
			}
			g.Tl = -args[1].Float64()
			fallthrough
		case "Td": // move text position
			if len(args) != 2 {
				return
			}
			x := matrix{{1, 0, 0}, {0, 1, 0}, {args[0].Float64(), args[1].Float64(), 1}}
			g.Tlm = x.mul(g.Tlm)
			g.Tm = g.Tlm

		case "Tm": // set text matrix and line matrix
			if len(args) != 6 {
				return
			}
			var m matrix
			for i := 0; i < 6; i++ {
				m[i/2][i%2] = args[i].Float64()
			}
			m[2][2] = 1
			g.Tm = m
			g.Tlm = m

		case "T*": // move to start of next line
			x := matrix{{1, 0, 0}, {0, 1, 0}, {0, -g.Tl, 1}}
			g.Tlm = x.mul(g.Tlm)
			g.Tm = g.Tlm

		case "\"": // set spacing, move to next line, and show text
			if len(args) != 3 {
				return
			}
			g.Tw = args[0].Float64()
			g.Tc = args[1].Float64()
			args = args[2:]
			fallthrough
		case "'": // move to next line and show text
			if len(args) != 1 {
				return
			}
			x := matrix{{1, 0, 0}, {0, 1, 0}, {0, -g.Tl, 1}}
			g.Tlm = x.mul(g.Tlm)
			g.Tm = g.Tlm
			fallthrough
		case "Tj": // show text
			if len(args) != 1 {
				return
			}
			showText(args[0].RawString())

		case "TJ": // show text, allowing individual glyph positioning
			if len(args) != 1 {
				return
			}
			v := args[0]
			for i := 0; i < v.Len(); i++ {
				x := v.Index(i)
				if x.Kind() == String {
					showText(x.RawString())
				} else {
					// Negative numbers move the pen right.
					tx := -x.Float64() / 1000 * g.Tfs * g.Th
					g.Tm = matrix{{1, 0, 0}, {0, 1, 0}, {tx, 0, 1}}.mul(g.Tm)
				}
			}

		case "BMC": // begin marked content, no properties
			checkCancel()
			tag := ""
			if len(args) == 1 {
				tag = args[0].Name()
			}
			mcStack = append(mcStack, markedContent{tag: tag, mcid: -1})

		case "BDC": // begin marked content with properties
			checkCancel()
			mc := markedContent{mcid: -1}
			if len(args) == 2 {
				mc.tag = args[0].Name()
				props := args[1]
				if props.Kind() == Name {
					props = p.Resources().Key("Properties").Key(props.Name())
				}
				if id := props.Key("MCID"); id.Kind() == Integer {
					mc.mcid = int(id.Int64())
				}
			}
			sb.flush()
			mcStack = append(mcStack, mc)

		case "EMC": // end marked content
			checkCancel()
			sb.flush()
			if n := len(mcStack); n > 0 {
				mcStack = mcStack[:n-1]
			}
		}
	})
	sb.flush()

	logger.Debug(fmt.Sprintf("interpreted page content: %d spans", len(sb.spans)), true)
	return sb.spans, nil
}

// Texts returns the page's runs as Text values (stream order), the
// shape used by the styled-text API.
func (p Page) Texts(fonts map[string]*Font) ([]Text, error) {
	spans, err := p.Spans(context.Background(), fonts)
	if err != nil {
		return nil, err
	}
	texts := make([]Text, 0, len(spans))
	for _, s := range spans {
		texts = append(texts, Text{
			Font:     s.font,
			FontSize: s.FontSize,
			X:        s.X0,
			Y:        s.Y0,
			W:        s.X1 - s.X0,
			S:        s.Text,
		})
	}
	return texts, nil
}
