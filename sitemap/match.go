package sitemap

import (
	"strings"
)

// Match finds the entry a request path (relative to the mount) addresses.
// Explicit entries win over wildcards, wildcards over any-matches. The
// returned params hold one captured value per wildcard of the entry's chain.
func (m *Mount) Match(requestPath string) (*Entry, []string, bool) {
	requestPath = strings.Trim(requestPath, PathSeparator)
	if requestPath == "" {
		requestPath = m.HomePage
	}
	if requestPath == "" {
		return nil, nil, false
	}
	return match(m.Entries, strings.Split(requestPath, PathSeparator), nil)
}

// matchOrder wildcards with an extension are more specific than plain ones
var matchOrder = []struct {
	kind      SegmentKind
	extension bool
}{
	{SegmentLiteral, false},
	{SegmentWildcard, true},
	{SegmentWildcard, false},
	{SegmentAny, true},
	{SegmentAny, false},
}

func match(entries []*Entry, parts []string, params []string) (*Entry, []string, bool) {
	for _, o := range matchOrder {
		for _, e := range entries {
			if e.Segment.Kind != o.kind || (o.kind != SegmentLiteral && e.HasExtension() != o.extension) {
				continue
			}
			switch o.kind {
			case SegmentLiteral:
				if e.Segment.Value != parts[0] {
					continue
				}
				if len(parts) == 1 {
					return e, params, true
				}
				if found, p, ok := match(e.Children, parts[1:], params); ok {
					return found, p, true
				}
			case SegmentWildcard:
				v, ok := e.Segment.Capture(parts[0])
				if !ok {
					continue
				}
				next := append(params[:len(params):len(params)], v)
				if len(parts) == 1 {
					return e, next, true
				}
				if found, p, ok := match(e.Children, parts[1:], next); ok {
					return found, p, true
				}
			case SegmentAny:
				v, ok := e.Segment.Capture(strings.Join(parts, PathSeparator))
				if !ok {
					continue
				}
				return e, append(params[:len(params):len(params)], v), true
			}
		}
	}
	return nil, nil, false
}
