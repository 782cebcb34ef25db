package sitemap

import (
	"strings"
)

// Entry node of a site map. Entries are built once and never mutated.
type Entry struct {
	ID                       string
	Name                     string
	Segment                  Segment
	ContentPath              string // raw template, may contain ${n} and ${parent}
	ExcludedForLinkRewriting bool
	Scheme                   SchemePolicy
	Depth                    int // top level entries have depth 1
	Parent                   *Entry
	Children                 []*Entry
	wildcards                []*Entry
}

// Wildcards wildcard entries of the ancestor-or-self chain, root first.
// The position of a wildcard is its index + 1.
func (e *Entry) Wildcards() []*Entry {
	return e.wildcards
}

// ExplicitPath true when no entry of the ancestor-or-self chain is a wildcard
func (e *Entry) ExplicitPath() bool {
	return len(e.wildcards) == 0
}

// HasExtension true for entries addressing documents like "*.html"
func (e *Entry) HasExtension() bool {
	return e.Segment.Extension != ""
}

// IsIndex entry collapses onto its parent
func (e *Entry) IsIndex() bool {
	return e.Segment.Kind == SegmentLiteral && e.Segment.Value == IndexSegment
}

// Chain ancestor-or-self entries, root first
func (e *Entry) Chain() []*Entry {
	chain := make([]*Entry, e.Depth)
	for n := e; n != nil; n = n.Parent {
		chain[n.Depth-1] = n
	}
	return chain
}

// Path site map path template of the entry
func (e *Entry) Path() string {
	chain := e.Chain()
	parts := make([]string, len(chain))
	for i, n := range chain {
		parts[i] = n.Segment.String()
	}
	return strings.Join(parts, PathSeparator)
}

// IsAncestorOf true if e is a strict ancestor of other
func (e *Entry) IsAncestorOf(other *Entry) bool {
	if other == nil {
		return false
	}
	for n := other.Parent; n != nil; n = n.Parent {
		if n == e {
			return true
		}
	}
	return false
}

// CommonAncestor nearest entry that is ancestor-or-self of both e and other
func (e *Entry) CommonAncestor(other *Entry) *Entry {
	a, b := e, other
	for a != nil && b != nil && a.Depth > b.Depth {
		a = a.Parent
	}
	for a != nil && b != nil && b.Depth > a.Depth {
		b = b.Parent
	}
	for a != nil && b != nil {
		if a == b {
			return a
		}
		a, b = a.Parent, b.Parent
	}
	return nil
}

// WildcardPosition 1-based position of w in the wildcard chain of e, 0 if absent
func (e *Entry) WildcardPosition(w *Entry) int {
	for i, n := range e.wildcards {
		if n == w {
			return i + 1
		}
	}
	return 0
}
