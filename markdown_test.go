// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package zpdf

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mkLine builds a one-span line at the given position and size.
func mkLine(x, y, size float64, text string) []Span {
	w := float64(len(text)) * size / 2
	return []Span{{X0: x, Y0: y, X1: x + w, Y1: y + size, Text: text, FontSize: size, mcid: -1}}
}

func TestFormatMarkdown_HeadingBySize(t *testing.T) {
	blocks := []block{
		{kind: blockParagraph, lines: [][]Span{mkLine(72, 700, 24, "Big Title")}},
		{kind: blockParagraph, lines: [][]Span{
			mkLine(72, 650, 12, "Body body body body body body."),
			mkLine(72, 636, 12, "More body text for the median."),
			mkLine(72, 622, 12, "And a third body line as well."),
		}},
	}
	out := formatMarkdown(blocks)
	assert.Contains(t, out, "# Big Title")
	assert.NotContains(t, out, "# Body")
}

func TestFormatMarkdown_HeadingLevels(t *testing.T) {
	blocks := []block{
		{kind: blockParagraph, lines: [][]Span{mkLine(72, 700, 28, "Top Level")}},
		{kind: blockParagraph, lines: [][]Span{mkLine(72, 660, 20, "Second Level")}},
		{kind: blockParagraph, lines: [][]Span{
			mkLine(72, 600, 12, "Plenty of twelve point body text."),
			mkLine(72, 586, 12, "Plenty of twelve point body text."),
			mkLine(72, 572, 12, "Plenty of twelve point body text."),
		}},
	}
	out := formatMarkdown(blocks)
	assert.Contains(t, out, "# Top Level")
	assert.Contains(t, out, "## Second Level")
}

func TestFormatMarkdown_TaggedHeadingKind(t *testing.T) {
	blocks := []block{
		{kind: blockHeading2, lines: [][]Span{mkLine(72, 700, 12, "Tagged Heading")}},
	}
	out := formatMarkdown(blocks)
	assert.Equal(t, "## Tagged Heading", out)
}

func TestFormatMarkdown_Lists(t *testing.T) {
	blocks := []block{
		{kind: blockParagraph, lines: [][]Span{
			mkLine(72, 700, 12, "• first bullet"),
			mkLine(72, 686, 12, "- second bullet"),
			mkLine(72, 672, 12, "3) third entry"),
			mkLine(72, 658, 12, "12. twelfth entry"),
		}},
	}
	out := formatMarkdown(blocks)
	assert.Contains(t, out, "- first bullet")
	assert.Contains(t, out, "- second bullet")
	assert.Contains(t, out, "3. third entry")
	assert.Contains(t, out, "12. twelfth entry")
}

func TestFormatMarkdown_ListItemBlocks(t *testing.T) {
	blocks := []block{
		{kind: blockListItem, lines: [][]Span{mkLine(72, 700, 12, "tagged item")}},
	}
	assert.Equal(t, "- tagged item", formatMarkdown(blocks))
}

func TestFormatMarkdown_Table(t *testing.T) {
	row := func(y float64, a, b, c string) []Span {
		return []Span{
			{X0: 72, Y0: y, X1: 120, Y1: y + 12, Text: a, FontSize: 12, mcid: -1},
			{X0: 200, Y0: y, X1: 250, Y1: y + 12, Text: b, FontSize: 12, mcid: -1},
			{X0: 330, Y0: y, X1: 380, Y1: y + 12, Text: c, FontSize: 12, mcid: -1},
		}
	}
	blocks := []block{
		{kind: blockParagraph, lines: [][]Span{
			row(700, "Name", "Qty", "Price"),
			row(686, "Bolt", "12", "0.40"),
			row(672, "Nut", "30", "0.15"),
		}},
	}
	out := formatMarkdown(blocks)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "| Name | Qty | Price |", lines[0])
	assert.Equal(t, "| --- | --- | --- |", lines[1])
	assert.Contains(t, lines[2], "| Bolt | 12 | 0.40 |")
}

func TestFormatMarkdown_NoTableForRaggedLines(t *testing.T) {
	blocks := []block{
		{kind: blockParagraph, lines: [][]Span{
			mkLine(72, 700, 12, "just an ordinary sentence"),
			mkLine(80, 686, 12, "with no column structure"),
		}},
	}
	out := formatMarkdown(blocks)
	assert.NotContains(t, out, "|")
}

func TestExtractAllMarkdown_PageBreaks(t *testing.T) {
	d, err := OpenDocument("testdata/pdf_test.pdf")
	require.NoError(t, err)
	defer d.Close()

	md, err := d.ExtractAllMarkdown(context.Background())
	require.NoError(t, err)
	assert.Contains(t, md, "\n\n---\n\n", "page break must render as a horizontal rule")
	assert.Contains(t, md, "Hello from page one.")
	assert.Contains(t, md, "Page two text.")
}

func TestExtractMarkdown_TaggedHeading(t *testing.T) {
	d, err := OpenDocument("testdata/tagged.pdf")
	require.NoError(t, err)
	defer d.Close()

	md, err := d.ExtractMarkdown(context.Background(), 0)
	require.NoError(t, err)
	assert.Contains(t, md, "# Document Heading")
}
