// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Markdown rendering of reading-order output: heading detection by
// font size, bullet and numbered lists, and column-aligned tables.

package zpdf

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/sassoftware/viya-zpdf/logger"
)

const (
	// headingSizeRatio is the minimum multiple of the body median
	// font size for a line to qualify as a heading.
	headingSizeRatio = 1.2
	// maxHeadingLevels caps the number of distinct heading buckets.
	maxHeadingLevels = 6
	// tableMinAnchors is the minimum number of shared column anchors
	// for consecutive lines to form a table.
	tableMinAnchors = 3
)

var (
	numberedItemRe = regexp.MustCompile(`^(\d+)[.)]\s+(.*)$`)
	bulletRe       = regexp.MustCompile(`^[•\-*·◦]\s*(.*)$`)
)

// formatMarkdown converts one page's reading-order blocks to
// Markdown. It is a pure function over the block list.
func formatMarkdown(blocks []block) string {
	f := &mdFormatter{blocks: blocks}
	f.measure()
	var out []string
	for _, b := range blocks {
		if s := f.renderBlock(b); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}

type mdFormatter struct {
	blocks     []block
	bodySize   float64
	levelForSz []float64 // heading sizes, descending; index+1 = level
}

// measure derives the body median font size (weighted by text
// length) and the heading size buckets.
func (f *mdFormatter) measure() {
	var sizes []float64
	for _, b := range f.blocks {
		for _, ln := range b.lines {
			for _, s := range ln {
				for range s.Text {
					sizes = append(sizes, s.FontSize)
				}
			}
		}
	}
	f.bodySize = median(sizes)

	seen := map[float64]bool{}
	for _, b := range f.blocks {
		for _, ln := range b.lines {
			if sz, ok := f.headingSize(ln); ok && !seen[sz] {
				seen[sz] = true
				f.levelForSz = append(f.levelForSz, sz)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(f.levelForSz)))
	if len(f.levelForSz) > maxHeadingLevels {
		f.levelForSz = f.levelForSz[:maxHeadingLevels]
	}
	logger.Debug(fmt.Sprintf("markdown: body size %.1f, %d heading buckets", f.bodySize, len(f.levelForSz)))
}

// headingSize returns the rounded font size of the line when the
// whole line qualifies as a heading candidate.
func (f *mdFormatter) headingSize(line []Span) (float64, bool) {
	if f.bodySize <= 0 || len(line) == 0 {
		return 0, false
	}
	sz := line[0].FontSize
	for _, s := range line {
		if math.Abs(s.FontSize-sz) > 0.5 {
			return 0, false
		}
	}
	sz = math.Round(sz*2) / 2
	if sz < headingSizeRatio*f.bodySize {
		return 0, false
	}
	return sz, true
}

func (f *mdFormatter) levelFor(sz float64) int {
	for i, s := range f.levelForSz {
		if math.Abs(s-sz) < 0.25 {
			return i + 1
		}
	}
	return 0
}

func (f *mdFormatter) renderBlock(b block) string {
	if len(b.lines) == 0 {
		return ""
	}
	switch {
	case b.kind >= blockHeading1 && b.kind <= blockHeading6:
		level := int(b.kind-blockHeading1) + 1
		return heading(level, joinLines(b.lines))

	case b.kind == blockListItem:
		var out []string
		for _, ln := range b.lines {
			out = append(out, listItem(lineText(ln)))
		}
		return strings.Join(out, "\n")

	case b.kind == blockTable || b.kind == blockTableCell:
		if t := renderTable(b.lines, f.bodySize); t != "" {
			return t
		}
		return joinLines(b.lines)
	}

	// Geometric or paragraph block: headings by size, tables by
	// alignment, lists by prefix.
	var out []string
	lines := b.lines
	for i := 0; i < len(lines); {
		if n := tableRun(lines[i:], f.bodySize); n >= 2 {
			if t := renderTable(lines[i:i+n], f.bodySize); t != "" {
				out = append(out, t)
				i += n
				continue
			}
		}
		ln := lines[i]
		text := lineText(ln)
		if sz, ok := f.headingSize(ln); ok && len(b.lines) == 1 {
			if level := f.levelFor(sz); level > 0 {
				out = append(out, heading(level, text))
				i++
				continue
			}
		}
		out = append(out, formatLine(text))
		i++
	}
	return strings.Join(out, "\n")
}

func heading(level int, text string) string {
	return strings.Repeat("#", level) + " " + strings.TrimSpace(text)
}

func joinLines(lines [][]Span) string {
	var parts []string
	for _, ln := range lines {
		parts = append(parts, lineText(ln))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// formatLine rewrites list markers; other lines pass through.
func formatLine(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := numberedItemRe.FindStringSubmatch(trimmed); m != nil {
		return m[1] + ". " + m[2]
	}
	if m := bulletRe.FindStringSubmatch(trimmed); m != nil && m[1] != "" {
		return "- " + m[1]
	}
	return text
}

func listItem(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := numberedItemRe.FindStringSubmatch(trimmed); m != nil {
		return m[1] + ". " + m[2]
	}
	if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
		return "- " + m[1]
	}
	return "- " + trimmed
}

// anchorTolerance is half a space width: column anchors closer than
// this are considered aligned.
func anchorTolerance(bodySize float64) float64 {
	tol := bodySize * wordGapRatio / 2
	if tol < 1 {
		tol = 1
	}
	return tol
}

func anchors(line []Span) []float64 {
	var xs []float64
	for _, s := range line {
		xs = append(xs, s.X0)
	}
	return xs
}

func sharedAnchors(a, b []float64, tol float64) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if math.Abs(x-y) <= tol {
				n++
				break
			}
		}
	}
	return n
}

// tableRun returns the number of leading lines that form a table: at
// least two consecutive lines sharing tableMinAnchors column anchors.
func tableRun(lines [][]Span, bodySize float64) int {
	tol := anchorTolerance(bodySize)
	n := 0
	for n < len(lines)-1 {
		a, b := anchors(lines[n]), anchors(lines[n+1])
		if len(a) < tableMinAnchors || len(b) < tableMinAnchors {
			break
		}
		if sharedAnchors(a, b, tol) < tableMinAnchors {
			break
		}
		n++
	}
	if n == 0 {
		return 0
	}
	return n + 1
}

// renderTable renders aligned lines as a pipe table, with the first
// line as the header row.
func renderTable(lines [][]Span, bodySize float64) string {
	if len(lines) < 2 {
		return ""
	}
	tol := anchorTolerance(bodySize)

	// Union of anchors across all rows defines the columns.
	var cols []float64
	for _, ln := range lines {
		for _, x := range anchors(ln) {
			found := false
			for _, c := range cols {
				if math.Abs(c-x) <= tol {
					found = true
					break
				}
			}
			if !found {
				cols = append(cols, x)
			}
		}
	}
	sort.Float64s(cols)
	if len(cols) < tableMinAnchors {
		return ""
	}

	colIndex := func(x float64) int {
		best, bestDist := 0, math.Inf(1)
		for i, c := range cols {
			if d := math.Abs(c - x); d < bestDist {
				best, bestDist = i, d
			}
		}
		return best
	}

	var sb strings.Builder
	for i, ln := range lines {
		cells := make([]string, len(cols))
		for _, s := range ln {
			c := colIndex(s.X0)
			if cells[c] != "" {
				cells[c] += " "
			}
			cells[c] += strings.TrimSpace(s.Text)
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		if i == 0 {
			sep := make([]string, len(cols))
			for j := range sep {
				sep[j] = "---"
			}
			sb.WriteString("| " + strings.Join(sep, " | ") + " |\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
