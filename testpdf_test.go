// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package zpdf

import (
	"sort"
	"strconv"
	"strings"
)

// buildPDF assembles a synthetic PDF from object bodies keyed by
// object number, appending a classic xref table and a trailer with
// /Root 1 0 R. Stream objects embed their own "stream...endstream"
// framing via streamObj.
func buildPDF(objs map[int]string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	nums := make([]int, 0, len(objs))
	for n := range objs {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	offsets := map[int]int{}
	maxObj := 0
	for _, n := range nums {
		offsets[n] = b.Len()
		b.WriteString(strconv.Itoa(n))
		b.WriteString(" 0 obj\n")
		b.WriteString(objs[n])
		b.WriteString("\nendobj\n")
		if n > maxObj {
			maxObj = n
		}
	}

	xrefStart := b.Len()
	b.WriteString("xref\n0 ")
	b.WriteString(strconv.Itoa(maxObj + 1))
	b.WriteString("\n")
	b.WriteString(pad10(0))
	b.WriteString(" 65535 f \n")
	for i := 1; i <= maxObj; i++ {
		off, ok := offsets[i]
		if !ok {
			b.WriteString(pad10(0))
			b.WriteString(" 65535 f \n")
			continue
		}
		b.WriteString(pad10(off))
		b.WriteString(" 00000 n \n")
	}
	b.WriteString("trailer\n<< /Root 1 0 R /Size ")
	b.WriteString(strconv.Itoa(maxObj + 1))
	b.WriteString(" >>\nstartxref\n")
	b.WriteString(strconv.Itoa(xrefStart))
	b.WriteString("\n%%EOF\n")
	return []byte(b.String())
}

// streamObj frames data as a stream object body with a correct
// /Length entry. extra is spliced into the header dictionary.
func streamObj(extra, data string) string {
	var b strings.Builder
	b.WriteString("<< /Length ")
	b.WriteString(strconv.Itoa(len(data)))
	if extra != "" {
		b.WriteString(" ")
		b.WriteString(extra)
	}
	b.WriteString(" >>\nstream\n")
	b.WriteString(data)
	b.WriteString("endstream")
	return b.String()
}

// singlePagePDF builds a one-page document around the given content
// stream, with /F1 bound to a built-in Helvetica.
func singlePagePDF(content string) []byte {
	return buildPDF(map[int]string{
		1: "<< /Type /Catalog /Pages 2 0 R >>",
		2: "<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		3: "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		4: streamObj("", content),
		5: "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /FirstChar 32 /LastChar 126 /Widths [" + uniformWidths(95, 500) + "] >>",
	})
}

func uniformWidths(n, w int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, " ")
}

// pad10 formats n as a 10-digit zero-padded string (xref format).
func pad10(n int) string {
	s := strconv.Itoa(n)
	if len(s) >= 10 {
		return s
	}
	return strings.Repeat("0", 10-len(s)) + s
}
