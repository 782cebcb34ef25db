// Package index builds the path tree of a mount's site map that maps
// content paths back to site map entries.
package index

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/foomo/linkserver/pkg/pathtree"
	"github.com/foomo/linkserver/sitemap"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const parentPlaceholder = "parent"

var placeholderRegexp = regexp.MustCompile(`\$\{([^}]*)\}`)

type (
	// Binding the content path template of an entry as seen by the index
	Binding struct {
		Entry *sitemap.Entry
		// Template normalized content path template with ${parent} expanded
		Template string
		// Positions wildcard position (1-based) of key1, key2, ...
		Positions []int
		// UsableInRightContextOnly at least one wildcard of the entry's chain
		// is not referenced by the template
		UsableInRightContextOnly bool
	}
	// Index read-only lookup structure of one mount
	Index struct {
		mount    *sitemap.Mount
		tree     *pathtree.Tree[*Binding]
		bindings map[*sitemap.Entry]*Binding
		warnings error
	}
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// New builds the index of a mount. Entries with broken templates are logged,
// collected in Warnings and left out; they never abort the build.
func New(l *zap.Logger, mount *sitemap.Mount) *Index {
	l = l.Named("index").With(zap.String("mount", mount.Alias))
	inst := &Index{
		mount:    mount,
		tree:     pathtree.New[*Binding](),
		bindings: map[*sitemap.Entry]*Binding{},
	}
	templates := map[*sitemap.Entry]string{}
	mount.Walk(func(e *sitemap.Entry) bool {
		if e.ExcludedForLinkRewriting {
			l.Debug("entry excluded for link rewriting", zap.String("entry", e.ID))
			return true
		}
		if err := inst.add(e, templates); err != nil {
			l.Warn("skipping entry", zap.String("entry", e.ID), zap.Error(err))
			inst.warnings = multierr.Append(inst.warnings, errors.Wrapf(err, "entry %q", e.ID))
		}
		return true
	})
	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (i *Index) Mount() *sitemap.Mount {
	return i.mount
}

// Binding of an entry, nil if the entry is not part of the index
func (i *Index) Binding(e *sitemap.Entry) *Binding {
	return i.bindings[e]
}

// Len number of bindings reachable through the path tree
func (i *Index) Len() int {
	return i.tree.Len()
}

// Warnings configuration errors of skipped entries
func (i *Index) Warnings() error {
	return i.warnings
}

// Lookup offers every matching terminal node to accept, see pathtree.Tree.Lookup
func (i *Index) Lookup(contentPath string, accept pathtree.Acceptor[*Binding]) bool {
	return i.tree.Lookup(contentPath, accept)
}

// Walk visits all indexed content path templates
func (i *Index) Walk(fn func(path string, bindings []*Binding)) {
	i.tree.Walk(fn)
}

// Expand fills wildcard values of the entry's chain into the template
func (b *Binding) Expand(values []string) (string, bool) {
	ok := true
	v := placeholderRegexp.ReplaceAllStringFunc(b.Template, func(s string) string {
		n, err := strconv.Atoi(s[2 : len(s)-1])
		if err != nil || n < 1 || n > len(values) {
			ok = false
			return s
		}
		return values[n-1]
	})
	return v, ok
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (i *Index) add(e *sitemap.Entry, templates map[*sitemap.Entry]string) error {
	template, err := expandParent(e, templates)
	if err != nil {
		return err
	}
	template = strings.Trim(template, sitemap.PathSeparator)

	b := &Binding{
		Entry:    e,
		Template: template,
	}

	var segments []string
	if template != "" {
		segments = strings.Split(template, sitemap.PathSeparator)
	}
	wildcards := e.Wildcards()
	treePath := make([]string, len(segments))
	for n, segment := range segments {
		match := placeholderRegexp.FindStringSubmatchIndex(segment)
		if match == nil {
			treePath[n] = segment
			continue
		}
		if match[0] != 0 || match[1] != len(segment) {
			return errors.Errorf("placeholder must span a whole segment: %q", segment)
		}
		position, err := strconv.Atoi(segment[match[2]:match[3]])
		if err != nil {
			return errors.Errorf("unknown placeholder %q", segment)
		}
		if position < 1 || position > len(wildcards) {
			return errors.Errorf("placeholder %q references wildcard %d of %d", segment, position, len(wildcards))
		}
		if wildcards[position-1].Segment.Kind == sitemap.SegmentAny {
			treePath[n] = sitemap.AnyMatch
		} else {
			treePath[n] = sitemap.Wildcard
		}
		b.Positions = append(b.Positions, position)
	}

	for position := 1; position <= len(wildcards); position++ {
		if !slices.Contains(b.Positions, position) {
			b.UsableInRightContextOnly = true
			break
		}
	}

	if len(treePath) > 0 {
		if err := i.tree.Insert(treePath, b); err != nil {
			return errors.Wrapf(err, "template %q", template)
		}
	}
	i.bindings[e] = b
	return nil
}

// expandParent replaces ${parent} with the expanded template of the parent
func expandParent(e *sitemap.Entry, templates map[*sitemap.Entry]string) (string, error) {
	if t, ok := templates[e]; ok {
		return t, nil
	}
	var err error
	t := placeholderRegexp.ReplaceAllStringFunc(e.ContentPath, func(s string) string {
		if s != "${"+parentPlaceholder+"}" {
			return s
		}
		if e.Parent == nil {
			err = multierr.Append(err, errors.New("${parent} used on a top level entry"))
			return ""
		}
		parent, parentErr := expandParent(e.Parent, templates)
		if parentErr != nil || strings.Trim(parent, sitemap.PathSeparator) == "" {
			err = multierr.Append(err, errors.Errorf("${parent} used but parent %q has no content path", e.Parent.ID))
			return ""
		}
		return strings.Trim(parent, sitemap.PathSeparator)
	})
	if err != nil {
		return "", err
	}
	templates[e] = t
	return t, nil
}
