// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Geometric reading-order reconstruction: column detection, line
// grouping and top-down linearisation for pages without a usable
// structure tree.

package zpdf

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sassoftware/viya-zpdf/logger"
)

const (
	// columnGapRatio is the multiple of the median histogram gap that
	// promotes a low-density region to a column boundary.
	columnGapRatio = 1.5
	// paragraphGapRatio is the multiple of the median line height that
	// separates paragraphs.
	paragraphGapRatio = 1.5
	// wordGapRatio is the fraction of the font size beyond which a
	// space is inserted between adjacent spans on a line.
	wordGapRatio = 0.25
)

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// groupLines groups spans into visual lines: spans whose vertical
// intervals overlap by more than half the smaller span's height share
// a line. Lines are ordered top to bottom, spans within a line left
// to right. Coordinates are y-up.
func groupLines(spans []Span) [][]Span {
	if len(spans) == 0 {
		return nil
	}
	sorted := append([]Span(nil), spans...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y1 != sorted[j].Y1 {
			return sorted[i].Y1 > sorted[j].Y1
		}
		return sorted[i].X0 < sorted[j].X0
	})

	var lines [][]Span
	var cur []Span
	var curY0, curY1 float64
	for _, s := range sorted {
		if len(cur) == 0 {
			cur = []Span{s}
			curY0, curY1 = s.Y0, s.Y1
			continue
		}
		overlap := math.Min(curY1, s.Y1) - math.Max(curY0, s.Y0)
		smaller := math.Min(curY1-curY0, s.Y1-s.Y0)
		if overlap > smaller/2 {
			cur = append(cur, s)
			if s.Y0 < curY0 {
				curY0 = s.Y0
			}
			if s.Y1 > curY1 {
				curY1 = s.Y1
			}
			continue
		}
		lines = append(lines, sortLine(cur))
		cur = []Span{s}
		curY0, curY1 = s.Y0, s.Y1
	}
	lines = append(lines, sortLine(cur))
	return lines
}

func sortLine(line []Span) []Span {
	sort.SliceStable(line, func(i, j int) bool { return line[i].X0 < line[j].X0 })
	return line
}

// visualSpans transforms spans into display orientation: the page
// rotation is applied so that the visual top of the page has the
// largest Y (the usual y-up convention is preserved so that
// groupLines applies unchanged).
func visualSpans(p Page, spans []Span) []Span {
	rot := p.Rotate()
	if rot == 0 {
		return spans
	}
	out := make([]Span, len(spans))
	for i, s := range spans {
		v := s
		// Only relative order matters downstream, so the transforms
		// rotate about the origin without re-anchoring to the box.
		switch rot {
		case 90: // user +y reads left-to-right, user +x top-to-bottom
			v.X0, v.X1 = s.Y0, s.Y1
			v.Y0, v.Y1 = -s.X1, -s.X0
		case 180:
			v.X0, v.X1 = -s.X1, -s.X0
			v.Y0, v.Y1 = -s.Y1, -s.Y0
		case 270:
			v.X0, v.X1 = -s.Y1, -s.Y0
			v.Y0, v.Y1 = s.X0, s.X1
		}
		out[i] = v
	}
	return out
}

// detectColumns partitions spans into columns. A histogram of span
// x-centres is built in bins of the median glyph width; contiguous
// empty regions wider than columnGapRatio times the median gap split
// the page into columns, returned left to right.
func detectColumns(spans []Span) [][]Span {
	if len(spans) < 2 {
		return [][]Span{spans}
	}

	var minX, maxX float64 = math.Inf(1), math.Inf(-1)
	var glyphWidths []float64
	for _, s := range spans {
		minX = math.Min(minX, s.X0)
		maxX = math.Max(maxX, s.X1)
		if n := len([]rune(s.Text)); n > 0 {
			glyphWidths = append(glyphWidths, (s.X1-s.X0)/float64(n))
		}
	}
	bin := median(glyphWidths)
	if bin <= 0 {
		return [][]Span{spans}
	}
	nbins := int((maxX-minX)/bin) + 1
	if nbins < 4 || nbins > 1<<16 {
		return [][]Span{spans}
	}

	counts := make([]int, nbins)
	for _, s := range spans {
		c := ((s.X0+s.X1)/2 - minX) / bin
		counts[int(c)]++
	}

	// Collect runs of empty bins. Edge runs count toward the median
	// gap width but only interior runs can split columns.
	type run struct {
		start, end int // [start, end)
		interior   bool
	}
	var runs []run
	i := 0
	for i < nbins {
		if counts[i] != 0 {
			i++
			continue
		}
		j := i
		for j < nbins && counts[j] == 0 {
			j++
		}
		runs = append(runs, run{i, j, i > 0 && j < nbins})
		i = j
	}
	if len(runs) == 0 {
		return [][]Span{spans}
	}
	var widths []float64
	for _, g := range runs {
		widths = append(widths, float64(g.end-g.start))
	}
	medGap := median(widths)

	var boundaries []float64
	for _, g := range runs {
		if g.interior && float64(g.end-g.start) > columnGapRatio*medGap && g.end-g.start >= 3 {
			boundaries = append(boundaries, minX+float64(g.start+g.end)/2*bin)
		}
	}
	if len(boundaries) == 0 {
		return [][]Span{spans}
	}
	logger.Debug(fmt.Sprintf("column detection: %d boundaries", len(boundaries)), true)

	cols := make([][]Span, len(boundaries)+1)
	for _, s := range spans {
		c := sort.SearchFloat64s(boundaries, (s.X0+s.X1)/2)
		cols[c] = append(cols[c], s)
	}
	var out [][]Span
	for _, c := range cols {
		if len(c) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// geometricBlocks linearises spans without structure information:
// columns left to right, lines top to bottom within each column, and
// paragraph splits at vertical gaps above paragraphGapRatio times the
// median line height.
func geometricBlocks(p Page, spans []Span) []block {
	var visible []Span
	for _, s := range spans {
		if !s.artifact {
			visible = append(visible, s)
		}
	}
	if len(visible) == 0 {
		return nil
	}

	var blocks []block
	for _, col := range detectColumns(visualSpans(p, visible)) {
		lines := groupLines(col)

		var heights []float64
		for _, ln := range lines {
			top, bot := lineExtent(ln)
			heights = append(heights, top-bot)
		}
		medHeight := median(heights)

		cur := block{kind: blockParagraph}
		var prevBottom float64
		for i, ln := range lines {
			top, bot := lineExtent(ln)
			if i > 0 && medHeight > 0 && prevBottom-top > paragraphGapRatio*medHeight {
				blocks = append(blocks, cur)
				cur = block{kind: blockParagraph}
			}
			cur.lines = append(cur.lines, ln)
			prevBottom = bot
		}
		blocks = append(blocks, cur)
	}
	return blocks
}

func lineExtent(line []Span) (top, bottom float64) {
	top, bottom = math.Inf(-1), math.Inf(1)
	for _, s := range line {
		b := s.Bounds()
		top = math.Max(top, b.Max.Y)
		bottom = math.Min(bottom, b.Min.Y)
	}
	return top, bottom
}

// readingOrderBlocks produces the page's blocks in reading order:
// the structure tree when present, with unreferenced marked content
// salvaged by the geometric fallback.
func readingOrderBlocks(r *Reader, p Page, spans []Span) []block {
	blocks, used, ok := r.structBlocks(p, spans)
	if !ok {
		return geometricBlocks(p, spans)
	}
	var leftover []Span
	for _, s := range spans {
		if s.artifact {
			continue
		}
		if s.mcid < 0 || !used[s.mcid] {
			leftover = append(leftover, s)
		}
	}
	if len(leftover) > 0 {
		logger.Debug(fmt.Sprintf("salvaging %d untagged spans geometrically", len(leftover)), true)
		blocks = append(blocks, geometricBlocks(p, leftover)...)
	}
	return blocks
}

// lineText serialises one line, inserting a space where the gap
// between adjacent spans exceeds wordGapRatio of the font size.
func lineText(line []Span) string {
	var sb strings.Builder
	for i, s := range line {
		if i > 0 {
			prev := line[i-1]
			size := prev.FontSize
			if size == 0 {
				size = s.FontSize
			}
			if s.X0-prev.X1 > wordGapRatio*size &&
				!strings.HasSuffix(prev.Text, " ") && !strings.HasPrefix(s.Text, " ") {
				sb.WriteString(" ")
			}
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// serializeBlocks renders blocks to plain text: newline between
// lines, blank line between block-role blocks, and at most one blank
// line between any two blocks.
func serializeBlocks(blocks []block) string {
	var sb strings.Builder
	prevBlockRole := false
	for _, b := range blocks {
		if len(b.lines) == 0 {
			continue
		}
		if sb.Len() > 0 {
			if prevBlockRole || b.kind.isBlockRole() {
				sb.WriteString("\n\n")
			} else {
				sb.WriteString("\n")
			}
		}
		for i, ln := range b.lines {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(lineText(ln))
		}
		prevBlockRole = b.kind.isBlockRole()
	}
	return sb.String()
}
