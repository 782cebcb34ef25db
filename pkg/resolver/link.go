package resolver

import (
	"github.com/foomo/linkserver/sitemap"
)

// ResolvedLink result of a resolution
type ResolvedLink struct {
	// Path visible path relative to the mount, without leading slash
	Path string
	// Entry matched site map entry, nil for literal paths
	Entry              *sitemap.Entry
	RepresentsDocument bool
	RepresentsFolder   bool
	RepresentsIndex    bool
	NotFound           bool
	// Params key1, key2, ... hold the captures of the lookup, numeric keys
	// hold wildcard values taken from the context
	Params map[string]string
}

// NewLiteral link without site map context
func NewLiteral(path string) *ResolvedLink {
	return &ResolvedLink{
		Path:   path,
		Params: map[string]string{},
	}
}

// EntryID id of the matched entry or ""
func (l *ResolvedLink) EntryID() string {
	if l == nil || l.Entry == nil {
		return ""
	}
	return l.Entry.ID
}

// collapse replaces an index entry by its parent. The index segment is a
// literal, the parent binds the same wildcards and keeps the params.
func (l *ResolvedLink) collapse() {
	l.Entry = l.Entry.Parent
	l.Path = parentPath(l.Path)
	if l.Entry == nil {
		l.Params = map[string]string{}
	}
}
