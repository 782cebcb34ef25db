package sitemap

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Mount a named binding of a host and path prefix to a site map root
type Mount struct {
	Alias           string
	Host            string
	Port            int
	Scheme          string
	SchemeAgnostic  bool
	ContextPath     string
	ShowContextPath bool
	MountPath       string
	HomePage        string
	NotFoundPath    string
	Entries         []*Entry // top level entries
	directory       map[string]*Entry
}

// NewMount builds the entry tree of a mount top-down
func NewMount(alias string, cfg *MountConfig) (*Mount, error) {
	if cfg == nil {
		return nil, errors.Errorf("mount %q has no configuration", alias)
	}
	m := &Mount{
		Alias:           alias,
		Host:            strings.ToLower(cfg.Host),
		Port:            cfg.Port,
		Scheme:          strings.ToLower(cfg.Scheme),
		SchemeAgnostic:  cfg.SchemeAgnostic,
		ContextPath:     normalizePrefix(cfg.ContextPath),
		ShowContextPath: cfg.ShowContextPath,
		MountPath:       normalizePrefix(cfg.MountPath),
		HomePage:        strings.Trim(cfg.HomePage, PathSeparator),
		NotFoundPath:    strings.Trim(cfg.NotFoundPath, PathSeparator),
		directory:       map[string]*Entry{},
	}
	if m.Scheme == "" {
		m.Scheme = DefaultScheme
	}
	if m.Scheme != "http" && m.Scheme != "https" {
		return nil, errors.Errorf("mount %q has unsupported scheme %q", alias, cfg.Scheme)
	}
	entries, err := m.buildEntries(nil, cfg.SiteMap)
	if err != nil {
		return nil, errors.Wrapf(err, "mount %q", alias)
	}
	m.Entries = entries
	return m, nil
}

// Entry look up an entry by id
func (m *Mount) Entry(id string) (*Entry, bool) {
	e, ok := m.directory[id]
	return e, ok
}

// Len number of entries
func (m *Mount) Len() int {
	return len(m.directory)
}

// Walk visits all entries pre-order until fn returns false
func (m *Mount) Walk(fn func(e *Entry) bool) {
	stack := make([]*Entry, 0, len(m.Entries))
	for i := len(m.Entries) - 1; i >= 0; i-- {
		stack = append(stack, m.Entries[i])
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(e) {
			return
		}
		for i := len(e.Children) - 1; i >= 0; i-- {
			stack = append(stack, e.Children[i])
		}
	}
}

// IDs sorted entry ids
func (m *Mount) IDs() []string {
	ids := make([]string, 0, len(m.directory))
	for id := range m.directory {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Mount) buildEntries(parent *Entry, cfgs []*EntryConfig) ([]*Entry, error) {
	entries := make([]*Entry, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		name := strings.Trim(cfg.Name, PathSeparator)
		if name == "" || strings.Contains(name, PathSeparator) {
			return nil, errors.Errorf("invalid entry name %q", cfg.Name)
		}
		e := &Entry{
			ID:                       cfg.ID,
			Name:                     name,
			Segment:                  ParseSegment(name),
			ContentPath:              cfg.ContentPath,
			ExcludedForLinkRewriting: cfg.ExcludedForLinkRewriting,
			Parent:                   parent,
			Depth:                    1,
		}
		if parent != nil {
			e.Depth = parent.Depth + 1
			e.wildcards = parent.wildcards[:len(parent.wildcards):len(parent.wildcards)]
		}
		if e.Segment.IsWildcard() {
			e.wildcards = append(e.wildcards, e)
		}
		switch {
		case cfg.SchemeAgnostic:
			e.Scheme = AgnosticScheme()
		case cfg.Scheme != "":
			e.Scheme = FixedScheme(cfg.Scheme)
		case parent != nil:
			e.Scheme = parent.Scheme
		}
		if e.ID == "" {
			e.ID = idOf(parent, name)
		}
		if existing, ok := m.directory[e.ID]; ok {
			return nil, errors.New("duplicate entry with id: " + existing.ID)
		}
		m.directory[e.ID] = e
		children, err := m.buildEntries(e, cfg.Children)
		if err != nil {
			return nil, err
		}
		e.Children = children
		entries = append(entries, e)
	}
	return entries, nil
}

func idOf(parent *Entry, name string) string {
	if parent == nil {
		return name
	}
	return idOf(parent.Parent, parent.Name) + PathSeparator + name
}

func normalizePrefix(v string) string {
	v = strings.Trim(v, PathSeparator)
	if v == "" {
		return ""
	}
	return PathSeparator + v
}
