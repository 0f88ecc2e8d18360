// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Walking the logical structure tree of tagged PDFs and mapping
// marked-content ids back to interpreted spans.

package zpdf

import (
	"fmt"

	"github.com/sassoftware/viya-zpdf/logger"
)

// blockKind is the resolved layout role of a structure element.
type blockKind int

const (
	blockOther blockKind = iota
	blockParagraph
	blockHeading1
	blockHeading2
	blockHeading3
	blockHeading4
	blockHeading5
	blockHeading6
	blockListItem
	blockTable
	blockTableCell
	blockCaption
	blockArtifact
)

// isBlockRole reports whether the kind forces a blank-line separator
// around its content.
func (k blockKind) isBlockRole() bool {
	switch k {
	case blockParagraph, blockHeading1, blockHeading2, blockHeading3,
		blockHeading4, blockHeading5, blockHeading6,
		blockListItem, blockCaption, blockTable, blockTableCell:
		return true
	}
	return false
}

// roleKind maps a standard structure role name to a blockKind.
func roleKind(role string) blockKind {
	switch role {
	case "P":
		return blockParagraph
	case "H", "H1", "Title":
		return blockHeading1
	case "H2":
		return blockHeading2
	case "H3":
		return blockHeading3
	case "H4":
		return blockHeading4
	case "H5":
		return blockHeading5
	case "H6":
		return blockHeading6
	case "LI", "LBody":
		return blockListItem
	case "Table":
		return blockTable
	case "TD", "TH":
		return blockTableCell
	case "Caption":
		return blockCaption
	case "Artifact":
		return blockArtifact
	}
	return blockOther
}

// A block is an ordered group of lines carrying a layout role. Both
// the structure-tree path and the geometric fallback produce blocks,
// so the serialiser and the Markdown formatter see one shape.
type block struct {
	kind  blockKind
	lines [][]Span
}

// structWalker accumulates blocks while walking the tree for a
// single page.
type structWalker struct {
	roleMap   Value
	pagePtr   objptr
	byMCID    map[int][]Span
	used      map[int]bool
	blocks    []block
	current   []Span
	curKind   blockKind
	haveBlock bool
}

// hasStructTree reports whether the document carries a usable
// structure tree.
func (r *Reader) hasStructTree() bool {
	root := r.Trailer().Key("Root")
	if root.Key("StructTreeRoot").Kind() != Dict {
		return false
	}
	// MarkInfo is advisory; a present tree is walked regardless, but
	// an explicit Marked=false is honoured.
	mi := root.Key("MarkInfo")
	if mi.Kind() == Dict {
		if m := mi.Key("Marked"); m.Kind() == Bool && !m.Bool() {
			return false
		}
	}
	return true
}

// structBlocks walks the structure tree depth-first and returns the
// page's spans grouped into blocks in logical order, plus the set of
// MCIDs the tree consumed. ok is false when the document has no
// structure tree or the walk produced nothing for this page.
func (r *Reader) structBlocks(p Page, spans []Span) (blocks []block, used map[int]bool, ok bool) {
	if !r.hasStructTree() {
		return nil, nil, false
	}
	defer func() {
		if e := recover(); e != nil {
			logger.Error(fmt.Sprintf("structure tree walk failed: %v", e))
			blocks, used, ok = nil, nil, false
		}
	}()

	treeRoot := r.Trailer().Key("Root").Key("StructTreeRoot")
	w := &structWalker{
		roleMap: treeRoot.Key("RoleMap"),
		pagePtr: p.V.ptr,
		byMCID:  make(map[int][]Span),
		used:    make(map[int]bool),
	}
	for _, s := range spans {
		if s.mcid >= 0 {
			w.byMCID[s.mcid] = append(w.byMCID[s.mcid], s)
		}
	}

	w.walk(treeRoot.Key("K"), p.V, blockOther, 0)
	w.closeBlock()

	if len(w.blocks) == 0 {
		return nil, nil, false
	}
	logger.Debug(fmt.Sprintf("structure tree: %d blocks, %d MCIDs consumed", len(w.blocks), len(w.used)), true)
	return w.blocks, w.used, true
}

// resolveRole applies /RoleMap and returns the element's kind.
func (w *structWalker) resolveRole(role string) blockKind {
	seen := 0
	for w.roleMap.Kind() == Dict && seen < 8 {
		mapped := w.roleMap.Key(role)
		if mapped.Kind() != Name || mapped.Name() == role {
			break
		}
		role = mapped.Name()
		seen++
	}
	return roleKind(role)
}

func (w *structWalker) closeBlock() {
	if !w.haveBlock {
		return
	}
	w.haveBlock = false
	if len(w.current) == 0 {
		return
	}
	w.blocks = append(w.blocks, block{
		kind:  w.curKind,
		lines: groupLines(w.current),
	})
	w.current = nil
}

// walk processes the /K entry of a structure element. k is an MCID
// integer, an MCR or OBJR dictionary, a child element, or an array of
// these. page tracks the inherited /Pg.
func (w *structWalker) walk(k Value, page Value, kind blockKind, depth int) {
	if depth > 256 {
		logger.Error("structure tree too deep; truncating walk")
		return
	}
	switch k.Kind() {
	case Integer:
		w.leaf(int(k.Int64()), page, kind)

	case Array:
		for i := 0; i < k.Len(); i++ {
			w.walk(k.Index(i), page, kind, depth+1)
		}

	case Dict:
		switch k.Key("Type").Name() {
		case "MCR":
			pg := page
			if p := k.Key("Pg"); !p.IsNull() {
				pg = p
			}
			w.leaf(int(k.Key("MCID").Int64()), pg, kind)
			return
		case "OBJR":
			// object references (annotations etc.) carry no text
			return
		}

		// A structure element.
		childKind := kind
		if s := k.Key("S"); s.Kind() == Name {
			childKind = w.resolveRole(s.Name())
		}
		if childKind == blockArtifact {
			return
		}
		pg := page
		if p := k.Key("Pg"); !p.IsNull() {
			pg = p
		}
		opens := childKind.isBlockRole()
		if opens {
			w.closeBlock()
		}
		w.walk(k.Key("K"), pg, childKind, depth+1)
		if opens {
			w.closeBlock()
		}
	}
}

// leaf consumes the spans tagged with the given MCID, provided the
// marked content lives on the walker's page.
func (w *structWalker) leaf(mcid int, page Value, kind blockKind) {
	if mcid < 0 || page.ptr != w.pagePtr {
		return
	}
	spans, found := w.byMCID[mcid]
	if !found || w.used[mcid] {
		return
	}
	w.used[mcid] = true
	if !w.haveBlock {
		w.haveBlock = true
		w.curKind = kind
	}
	for _, s := range spans {
		if s.artifact {
			continue
		}
		w.current = append(w.current, s)
	}
}
