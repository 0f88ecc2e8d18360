// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package zpdf

import (
	"context"
	"sort"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAll_FormFeedSeparator(t *testing.T) {
	d, err := OpenDocument("testdata/pdf_test.pdf")
	require.NoError(t, err)
	defer d.Close()

	text, err := d.ExtractAll(context.Background(), ExtractOptions{})
	require.NoError(t, err)
	parts := strings.Split(text, pageSeparator)
	assert.Len(t, parts, 2, "two pages joined by a single form feed")
	assert.Contains(t, parts[0], "Hello from page one.")
	assert.Contains(t, parts[1], "Page two text.")
}

func TestExtractAll_ParallelDeterminism(t *testing.T) {
	d, err := OpenDocument("testdata/pdf_test.pdf")
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	sequential, err := d.ExtractAll(ctx, ExtractOptions{ReadingOrder: true})
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		parallel, err := d.ExtractAll(ctx, ExtractOptions{ReadingOrder: true, Parallel: true, Workers: 4})
		require.NoError(t, err)
		assert.Equal(t, sequential, parallel, "parallel output must be byte-identical to sequential")
	}
}

func TestExtractPage_Idempotent(t *testing.T) {
	d, err := OpenDocument("testdata/pdf_test.pdf")
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	first, err := d.ExtractPage(ctx, 0)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := d.ExtractPage(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	firstRO, err := d.ExtractPageReadingOrder(ctx, 0)
	require.NoError(t, err)
	againRO, err := d.ExtractPageReadingOrder(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, firstRO, againRO)
}

// nonSpaceRunes returns the sorted non-whitespace scalars of s.
func nonSpaceRunes(s string) []rune {
	var rs []rune
	for _, r := range s {
		if !unicode.IsSpace(r) {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
	return rs
}

func TestReadingOrder_SameRuneMultisetAsStreamOrder(t *testing.T) {
	for _, fixture := range []string{"testdata/pdf_test.pdf", "testdata/twocolumn.pdf"} {
		t.Run(fixture, func(t *testing.T) {
			d, err := OpenDocument(fixture)
			require.NoError(t, err)
			defer d.Close()

			ctx := context.Background()
			stream, err := d.ExtractPage(ctx, 0)
			require.NoError(t, err)
			reading, err := d.ExtractPageReadingOrder(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, nonSpaceRunes(stream), nonSpaceRunes(reading),
				"both orders must contain the same non-whitespace scalars")
		})
	}
}

func TestExtractAll_Cancelled(t *testing.T) {
	d, err := OpenDocument("testdata/pdf_test.pdf")
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.ExtractAll(ctx, ExtractOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = d.ExtractAll(ctx, ExtractOptions{Parallel: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestExtractAll_FailedPageContributesEmpty(t *testing.T) {
	// Page two's content stream reference dangles: the page must
	// contribute an empty string without failing the document.
	pdf := buildPDF(map[int]string{
		1: "<< /Type /Catalog /Pages 2 0 R >>",
		2: "<< /Type /Pages /Kids [3 0 R 6 0 R] /Count 2 >>",
		3: "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		4: streamObj("", "BT /F1 12 Tf 72 700 Td (good page) Tj ET\n"),
		5: "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /FirstChar 32 /LastChar 126 /Widths [" + uniformWidths(95, 500) + "] >>",
		6: "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 99 0 R >>",
	})
	d, err := OpenDocumentBytes(pdf)
	require.NoError(t, err)
	defer d.Close()

	text, err := d.ExtractAll(context.Background(), ExtractOptions{ReadingOrder: true, Parallel: true})
	require.NoError(t, err)
	parts := strings.Split(text, pageSeparator)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "good page")
	assert.Empty(t, parts[1])
}

func TestExtractAllReadingOrder_Tagged(t *testing.T) {
	d, err := OpenDocument("testdata/tagged.pdf")
	require.NoError(t, err)
	defer d.Close()

	text, err := d.ExtractAllReadingOrder(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, text)
	assert.Contains(t, text, "Document Heading")
}

func TestDocument_ConcurrentExtraction(t *testing.T) {
	d, err := OpenDocument("testdata/pdf_test.pdf")
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	want, err := d.ExtractPageReadingOrder(ctx, 0)
	require.NoError(t, err)

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			got, err := d.ExtractPageReadingOrder(ctx, 0)
			if err == nil && got != want {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	for i := 0; i < workers; i++ {
		assert.NoError(t, <-errs)
	}
}
