// Package resolver turns content paths into site map paths
package resolver

import (
	"path"
	"strings"

	"github.com/foomo/linkserver/pkg/index"
	"github.com/foomo/linkserver/sitemap"
	"go.uber.org/zap"
)

// Mode resolution mode
type Mode int

const (
	// ModeContextual prefers entries related to the current page
	ModeContextual Mode = iota
	// ModeCanonical ignores the current page
	ModeCanonical
)

func (m Mode) String() string {
	if m == ModeCanonical {
		return "canonical"
	}
	return "contextual"
}

type (
	// Context the site map entry the in-flight request matched
	Context struct {
		Entry *sitemap.Entry
		// Params one value per wildcard of Entry.Wildcards()
		Params []string
	}
	// Request what to resolve
	Request struct {
		// Path content path relative to the content root
		Path    string
		Kind    sitemap.ContentKind
		Mode    Mode
		Context *Context
	}
	// Resolver holds no mutable state and is safe for concurrent use
	Resolver struct {
		l *zap.Logger
	}
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger) *Resolver {
	return &Resolver{
		l: l.Named("resolver"),
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Resolve returns false when no entry of idx can produce a link for req
func (r *Resolver) Resolve(idx *index.Index, req Request) (*ResolvedLink, bool) {
	contentPath := strings.Trim(req.Path, sitemap.PathSeparator)
	representsIndex := false
	if req.Kind == sitemap.KindIndex {
		contentPath = parentPath(contentPath)
		representsIndex = true
		req.Kind = sitemap.KindFolder
	}
	if req.Mode == ModeCanonical || (req.Context != nil && req.Context.Entry == nil) {
		req.Context = nil
	}

	if contentPath == "" {
		if !representsIndex {
			return nil, false
		}
		// index of the content root
		return &ResolvedLink{
			RepresentsFolder: true,
			RepresentsIndex:  true,
			Params:           map[string]string{},
		}, true
	}

	var link *ResolvedLink
	found := idx.Lookup(contentPath, func(bindings []*index.Binding, captures []string) bool {
		for _, c := range order(bindings, req) {
			if l, ok := contextualize(c.binding, captures, req.Context); ok {
				link = l
				return true
			}
			r.l.Debug("candidate rejected",
				zap.String("path", contentPath),
				zap.String("entry", c.binding.Entry.ID),
			)
		}
		return false
	})
	if !found {
		r.l.Debug("no match", zap.String("path", contentPath), zap.Stringer("mode", req.Mode))
		return nil, false
	}

	if link.Entry.IsIndex() {
		link.collapse()
		representsIndex = true
	}
	link.RepresentsIndex = representsIndex
	link.RepresentsDocument = req.Kind == sitemap.KindDocument
	link.RepresentsFolder = req.Kind == sitemap.KindFolder
	return link, true
}

// ResolveCanonical context independent resolution
func (r *Resolver) ResolveCanonical(idx *index.Index, contentPath string, kind sitemap.ContentKind) (*ResolvedLink, bool) {
	return r.Resolve(idx, Request{
		Path: contentPath,
		Kind: kind,
		Mode: ModeCanonical,
	})
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// contextualize fills the wildcards of the binding's entry from the lookup
// captures and, for wildcards the template does not reference, from ctx
func contextualize(b *index.Binding, captures []string, ctx *Context) (*ResolvedLink, bool) {
	if len(captures) != len(b.Positions) {
		return nil, false
	}
	var (
		e      = b.Entry
		values = make([]string, len(e.Wildcards()))
		filled = make([]bool, len(values))
		params = make(map[string]string, len(values))
	)
	for i, position := range b.Positions {
		v := captures[i]
		params[keyName(i+1)] = v
		if filled[position-1] && values[position-1] != v {
			// the same wildcard captured two different values
			return nil, false
		}
		values[position-1] = v
		filled[position-1] = true
	}

	for i, wildcard := range e.Wildcards() {
		if filled[i] {
			continue
		}
		if ctx == nil {
			return nil, false
		}
		position := ctx.Entry.WildcardPosition(wildcard)
		if position == 0 || position > len(ctx.Params) {
			return nil, false
		}
		values[i] = ctx.Params[position-1]
		filled[i] = true
		key := positionName(i + 1)
		if _, ok := params[key]; !ok {
			params[key] = values[i]
		}
	}

	chain := e.Chain()
	parts := make([]string, len(chain))
	n := 0
	for i, c := range chain {
		if c.Segment.IsWildcard() {
			parts[i] = c.Segment.Render(values[n])
			n++
			continue
		}
		parts[i] = c.Segment.Render("")
	}
	return &ResolvedLink{
		Path:   strings.Join(parts, sitemap.PathSeparator),
		Entry:  e,
		Params: params,
	}, true
}

func parentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == sitemap.PathSeparator {
		return ""
	}
	return dir
}
