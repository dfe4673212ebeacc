// SPDX-License-Identifier: MPL-2.0

// Package editbuf implements an immutable editable view over a source text.
//
// A Buffer never modifies the original bytes. It records replacements keyed by
// byte ranges of the original source and materializes them on String. Every
// operation returns a new Buffer and leaves the receiver untouched, so a
// module can keep both its original and its rewritten code side by side.
//
// Edits may nest: an edit added inside the range of an existing edit is kept
// but hidden while the outer edit is in place, and becomes visible again in a
// Snip of the inner range. Adding an edit that covers existing edits drops
// them. Edits that partially overlap are a programming error and panic.
package editbuf

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// Buffer is an immutable edited view of a window of a source text.
	Buffer struct {
		src    string
		start  int
		end    int
		edits  []edit
		prefix string
		suffix string
	}

	edit struct {
		start int
		end   int
		text  string
	}
)

// New returns a Buffer over the whole of src with no edits.
func New(src string) *Buffer {
	return &Buffer{src: src, end: len(src)}
}

func (b *Buffer) clone() *Buffer {
	c := *b
	c.edits = slices.Clone(b.edits)
	return &c
}

func (b *Buffer) checkRange(start, end int) {
	if start > end || start < b.start || end > b.end {
		panic(fmt.Sprintf("editbuf: invalid range [%d:%d) for window [%d:%d)", start, end, b.start, b.end))
	}
}

// Overwrite returns a copy of b where the original bytes [start, end) are
// replaced with text.
func (b *Buffer) Overwrite(start, end int, text string) *Buffer {
	b.checkRange(start, end)
	c := b.clone()
	kept := c.edits[:0]
	for _, e := range c.edits {
		switch {
		case start <= e.start && e.end <= end:
			// covered by the new edit
			continue
		case e.start <= start && end <= e.end:
			// the new edit nests inside e
		case e.end <= start || end <= e.start:
		default:
			panic(fmt.Sprintf("editbuf: overlapping edits [%d:%d) and [%d:%d)", e.start, e.end, start, end))
		}
		kept = append(kept, e)
	}
	c.edits = append(kept, edit{start: start, end: end, text: text})
	return c
}

// Remove returns a copy of b with the original bytes [start, end) deleted.
func (b *Buffer) Remove(start, end int) *Buffer {
	return b.Overwrite(start, end, "")
}

// Snip returns a Buffer over the original bytes [start, end) that carries
// the edits lying entirely within that range. Edits enclosing the range and
// the prefix and suffix of b are not carried over.
func (b *Buffer) Snip(start, end int) *Buffer {
	b.checkRange(start, end)
	c := &Buffer{src: b.src, start: start, end: end}
	for _, e := range b.edits {
		switch {
		case start <= e.start && e.end <= end:
			c.edits = append(c.edits, e)
		case e.start <= start && end <= e.end, e.end <= start, end <= e.start:
		default:
			panic(fmt.Sprintf("editbuf: snip [%d:%d) splits edit [%d:%d)", start, end, e.start, e.end))
		}
	}
	return c
}

// Prepend returns a copy of b with s inserted before its content.
func (b *Buffer) Prepend(s string) *Buffer {
	c := b.clone()
	c.prefix = s + c.prefix
	return c
}

// Append returns a copy of b with s inserted after its content.
func (b *Buffer) Append(s string) *Buffer {
	c := b.clone()
	c.suffix += s
	return c
}

// Original returns the unedited source bytes [start, end).
func (b *Buffer) Original(start, end int) string {
	return b.src[start:end]
}

// HasEdits reports whether b differs from its source window.
func (b *Buffer) HasEdits() bool {
	return len(b.edits) > 0 || b.prefix != "" || b.suffix != ""
}

// visible returns the edits not hidden by an enclosing edit, ordered by
// position.
func (b *Buffer) visible() []edit {
	var out []edit
	for i, e := range b.edits {
		hidden := false
		for j, o := range b.edits {
			if i != j && o.start <= e.start && e.end <= o.end && (o.start != e.start || o.end != e.end) {
				hidden = true
				break
			}
		}
		if !hidden {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(x, y edit) int {
		if x.start != y.start {
			return x.start - y.start
		}
		return x.end - y.end
	})
	return out
}

// String materializes the edited text.
func (b *Buffer) String() string {
	var sb strings.Builder
	sb.WriteString(b.prefix)
	pos := b.start
	for _, e := range b.visible() {
		sb.WriteString(b.src[pos:e.start])
		sb.WriteString(e.text)
		pos = e.end
	}
	sb.WriteString(b.src[pos:b.end])
	sb.WriteString(b.suffix)
	return sb.String()
}

// Len returns the length of the materialized text.
func (b *Buffer) Len() int {
	return len(b.String())
}
