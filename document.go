// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// The Document handle: open/close lifecycle, page index and shared
// resource cache underlying the public extraction operations.

package zpdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sassoftware/viya-zpdf/logger"
)

// A Document is an open PDF document. It owns the byte source, the
// cross-reference index, the page list (in document order) and a
// write-once cache of parsed fonts shared across pages.
//
// A Document is safe for concurrent use. After Close, every
// operation returns ErrClosed.
type Document struct {
	r      *Reader
	file   *os.File // nil for in-memory documents
	pages  []Page
	closed atomic.Bool

	// fonts caches parsed fonts keyed by their object identifier.
	// Entries are written once; concurrent resolvers may do redundant
	// work but never observe a partially built entry.
	fonts sync.Map // objptr -> *Font
}

// PageInfo describes a page's display geometry: width and height in
// default user space after rotation, and the rotation itself (a
// multiple of 90).
type PageInfo struct {
	Width    float64
	Height   float64
	Rotation int
}

// OpenDocument opens the PDF file at path.
func OpenDocument(path string) (*Document, error) {
	f, r, err := Open(path)
	if err != nil {
		return nil, err
	}
	d, err := newDocument(r)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.file = f
	return d, nil
}

// OpenDocumentBytes opens a PDF held in memory. The buffer is
// borrowed: it must remain valid until the document is closed.
func OpenDocumentBytes(buf []byte) (*Document, error) {
	r, err := NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, err
	}
	return newDocument(r)
}

func newDocument(r *Reader) (d *Document, err error) {
	defer func() {
		if e := recover(); e != nil {
			logger.Error(fmt.Sprintf("newDocument: recovered: %v", e))
			d, err = nil, fmt.Errorf("%w: %v", ErrInvalidPDF, e)
		}
	}()
	d = &Document{r: r}
	d.pages = collectPages(r)
	logger.Debug(fmt.Sprintf("document opened: %d pages", len(d.pages)), true)
	return d, nil
}

// collectPages walks the page tree in document order. The visited
// set bounds reference cycles in malformed trees.
func collectPages(r *Reader) []Page {
	var pages []Page
	seen := make(map[objptr]bool)
	var walk func(v Value, depth int)
	walk = func(v Value, depth int) {
		if depth > 64 || v.Kind() != Dict {
			return
		}
		if v.ptr != (objptr{}) {
			if seen[v.ptr] {
				return
			}
			seen[v.ptr] = true
		}
		switch v.Key("Type").Name() {
		case "Pages":
			kids := v.Key("Kids")
			for i := 0; i < kids.Len(); i++ {
				walk(kids.Index(i), depth+1)
			}
		case "Page":
			pages = append(pages, Page{v})
		}
	}
	walk(r.Trailer().Key("Root").Key("Pages"), 0)
	return pages
}

// Close releases the document's resources. It is idempotent:
// closing an already-closed document is a no-op.
func (d *Document) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	logger.Debug("document closed", true)
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

func (d *Document) checkOpen() error {
	if d.closed.Load() {
		return ErrClosed
	}
	return nil
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() (int, error) {
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	return len(d.pages), nil
}

// Pages returns the document's pages in order. Each call returns a
// fresh slice; the handle holds no iteration cursor.
func (d *Document) Pages() ([]Page, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	pages := make([]Page, len(d.pages))
	copy(pages, d.pages)
	return pages, nil
}

// page returns the page with the given zero-based index.
func (d *Document) page(n int) (Page, error) {
	if err := d.checkOpen(); err != nil {
		return Page{}, err
	}
	if n < 0 || n >= len(d.pages) {
		return Page{}, fmt.Errorf("%w: index %d of %d pages", ErrPageNotFound, n, len(d.pages))
	}
	return d.pages[n], nil
}

// PageInfo returns the display geometry of the zero-based page n.
func (d *Document) PageInfo(n int) (PageInfo, error) {
	p, err := d.page(n)
	if err != nil {
		return PageInfo{}, err
	}
	box := p.mediaBoxRect()
	w, h := box.Width(), box.Height()
	rot := p.Rotate()
	if rot == 90 || rot == 270 {
		w, h = h, w
	}
	return PageInfo{Width: w, Height: h, Rotation: rot}, nil
}

// Outline returns the document outline.
func (d *Document) Outline() (Outline, error) {
	if err := d.checkOpen(); err != nil {
		return Outline{}, err
	}
	return d.r.Outline(), nil
}

// StyledTexts returns the document's text runs merged into sentences
// that share font, size and baseline, in content-stream order.
func (d *Document) StyledTexts() ([]Text, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.r.GetStyledTexts()
}

// Metadata returns the document's unified metadata, with XMP fields
// taking precedence over the /Info dictionary.
func (d *Document) Metadata() (Meta, error) {
	if err := d.checkOpen(); err != nil {
		return Meta{}, err
	}
	return d.r.Metadata()
}

// MetadataJSON writes the full metadata report as pretty JSON to w.
func (d *Document) MetadataJSON(w io.Writer) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.r.MetadataJSON(w)
}

// fontsForPage resolves the page's fonts through the document-wide
// cache, so a font shared by many pages is parsed once.
func (d *Document) fontsForPage(p Page) map[string]*Font {
	fonts := make(map[string]*Font)
	for _, fname := range p.Fonts() {
		fv := p.Resources().Key("Font").Key(fname)
		if fv.ptr != (objptr{}) {
			if cached, ok := d.fonts.Load(fv.ptr); ok {
				fonts[fname] = cached.(*Font)
				continue
			}
		}
		f := &Font{V: fv}
		f.Encoder() // parse the charmap before publishing the entry
		if fv.ptr != (objptr{}) {
			if prev, loaded := d.fonts.LoadOrStore(fv.ptr, f); loaded {
				f = prev.(*Font)
			}
		}
		fonts[fname] = f
	}
	return fonts
}
