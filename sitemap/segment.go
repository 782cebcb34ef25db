package sitemap

import (
	"path"
	"strings"
)

// SegmentKind classification of a site map path segment
type SegmentKind int

const (
	SegmentLiteral SegmentKind = iota
	SegmentWildcard
	SegmentAny
)

// Segment one element of a site map path template
type Segment struct {
	Kind SegmentKind
	// Value literal name, empty for wildcards
	Value string
	// Extension without the leading dot
	Extension string
}

// ParseSegment parses names like "news", "*", "_default_.html" or "**"
func ParseSegment(name string) Segment {
	base, ext := name, ""
	if i := strings.Index(name, "."); i > 0 {
		base, ext = name[:i], name[i+1:]
	}
	switch base {
	case Wildcard, WildcardAlias:
		return Segment{Kind: SegmentWildcard, Extension: ext}
	case AnyMatch, AnyMatchAlias:
		return Segment{Kind: SegmentAny, Extension: ext}
	}
	return Segment{
		Kind:      SegmentLiteral,
		Value:     name,
		Extension: strings.TrimPrefix(path.Ext(name), "."),
	}
}

// IsWildcard true for single and multi segment wildcards
func (s Segment) IsWildcard() bool {
	return s.Kind != SegmentLiteral
}

// Render fills a captured value into the segment
func (s Segment) Render(value string) string {
	if s.Kind == SegmentLiteral {
		return s.Value
	}
	if s.Extension != "" {
		return value + "." + s.Extension
	}
	return value
}

// Capture tests a request path segment against a wildcard segment and
// returns the captured value without extension
func (s Segment) Capture(v string) (string, bool) {
	if s.Kind == SegmentLiteral {
		return "", v == s.Value
	}
	if s.Extension == "" {
		return v, v != ""
	}
	suffix := "." + s.Extension
	if !strings.HasSuffix(v, suffix) || len(v) == len(suffix) {
		return "", false
	}
	return strings.TrimSuffix(v, suffix), true
}

func (s Segment) String() string {
	switch s.Kind {
	case SegmentWildcard:
		return withExtension(Wildcard, s.Extension)
	case SegmentAny:
		return withExtension(AnyMatch, s.Extension)
	default:
		return s.Value
	}
}

func withExtension(v, ext string) string {
	if ext == "" {
		return v
	}
	return v + "." + ext
}
