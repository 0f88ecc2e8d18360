// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// The parallel page driver: the public extraction operations on a
// Document.

package zpdf

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sassoftware/viya-zpdf/logger"
)

// pageSeparator joins pages in whole-document extraction output.
const pageSeparator = "\x0c"

// ExtractOptions control whole-document extraction.
type ExtractOptions struct {
	// ReadingOrder selects visual reading order instead of content
	// stream order.
	ReadingOrder bool
	// Parallel extracts pages on worker goroutines. Output is
	// identical to sequential extraction, page-index ascending.
	Parallel bool
	// Workers bounds the worker pool; 0 means GOMAXPROCS.
	Workers int
}

// ExtractPage returns the text of the zero-based page n in content
// stream order.
func (d *Document) ExtractPage(ctx context.Context, n int) (string, error) {
	p, err := d.page(n)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return p.GetPlainText(d.fontsForPage(p))
}

// ExtractPageReadingOrder returns the text of the zero-based page n
// in visual reading order: the structure tree when the document is
// tagged, the geometric reconstruction otherwise.
func (d *Document) ExtractPageReadingOrder(ctx context.Context, n int) (string, error) {
	p, err := d.page(n)
	if err != nil {
		return "", err
	}
	return d.readingOrderText(ctx, p)
}

func (d *Document) readingOrderText(ctx context.Context, p Page) (string, error) {
	spans, err := p.Spans(ctx, d.fontsForPage(p))
	if err != nil {
		return "", err
	}
	return serializeBlocks(readingOrderBlocks(d.r, p, spans)), nil
}

// ExtractBounds returns the positioned spans of the zero-based page
// n, in stream order. Artifact-tagged content is excluded.
func (d *Document) ExtractBounds(ctx context.Context, n int) ([]Span, error) {
	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	spans, err := p.Spans(ctx, d.fontsForPage(p))
	if err != nil {
		return nil, err
	}
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.artifact {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ExtractMarkdown returns the zero-based page n rendered as Markdown.
func (d *Document) ExtractMarkdown(ctx context.Context, n int) (string, error) {
	p, err := d.page(n)
	if err != nil {
		return "", err
	}
	return d.pageMarkdown(ctx, p)
}

func (d *Document) pageMarkdown(ctx context.Context, p Page) (string, error) {
	spans, err := p.Spans(ctx, d.fontsForPage(p))
	if err != nil {
		return "", err
	}
	return formatMarkdown(readingOrderBlocks(d.r, p, spans)), nil
}

// ExtractAll extracts every page and joins the results with a form
// feed (U+000C). A page that fails to interpret contributes an empty
// string; per-page errors are surfaced only by the single-page
// operations. Output is deterministic regardless of scheduling.
func (d *Document) ExtractAll(ctx context.Context, opts ExtractOptions) (string, error) {
	if err := d.checkOpen(); err != nil {
		return "", err
	}
	extract := func(ctx context.Context, p Page) (string, error) {
		if opts.ReadingOrder {
			return d.readingOrderText(ctx, p)
		}
		return p.GetPlainText(d.fontsForPage(p))
	}
	return d.extractAll(ctx, opts, extract)
}

// ExtractAllReadingOrder is ExtractAll in reading order with
// parallel page workers.
func (d *Document) ExtractAllReadingOrder(ctx context.Context) (string, error) {
	return d.ExtractAll(ctx, ExtractOptions{ReadingOrder: true, Parallel: true})
}

// ExtractAllMarkdown renders the whole document as Markdown, with a
// horizontal rule between pages.
func (d *Document) ExtractAllMarkdown(ctx context.Context) (string, error) {
	if err := d.checkOpen(); err != nil {
		return "", err
	}
	texts, err := d.extractAllPages(ctx, ExtractOptions{Parallel: true}, d.pageMarkdown)
	if err != nil {
		return "", err
	}
	return strings.Join(texts, "\n\n---\n\n"), nil
}

func (d *Document) extractAll(ctx context.Context, opts ExtractOptions, fn func(context.Context, Page) (string, error)) (string, error) {
	texts, err := d.extractAllPages(ctx, opts, fn)
	if err != nil {
		return "", err
	}
	return strings.Join(texts, pageSeparator), nil
}

// extractAllPages runs fn over every page, sequentially or on a
// bounded worker pool, and returns the per-page results in page
// order. Page-level failures become empty contributions; only
// cancellation aborts the document.
func (d *Document) extractAllPages(ctx context.Context, opts ExtractOptions, fn func(context.Context, Page) (string, error)) ([]string, error) {
	texts := make([]string, len(d.pages))

	if !opts.Parallel {
		for i, p := range d.pages {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
			}
			text, err := fn(ctx, p)
			if err != nil {
				logger.Debug(fmt.Sprintf("page %d failed, contributing empty text: %v", i, err), true)
				continue
			}
			texts[i] = text
		}
		return texts, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range d.pages {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := fn(gctx, p)
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				logger.Debug(fmt.Sprintf("page %d failed, contributing empty text: %v", i, err), true)
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, err
	}
	return texts, nil
}
