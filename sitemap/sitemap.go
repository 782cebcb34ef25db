// Package sitemap contains data structures that describe site maps and the
// mounts they are bound to
package sitemap

const (
	// PathSeparator separator for paths in site maps and content paths
	PathSeparator = "/"
	// Wildcard matches exactly one path segment
	Wildcard = "*"
	// AnyMatch matches one or more path segments
	AnyMatch = "**"
	// WildcardAlias alternative notation for Wildcard
	WildcardAlias = "_default_"
	// AnyMatchAlias alternative notation for AnyMatch
	AnyMatchAlias = "_any_"
	// IndexSegment entries with this segment collapse onto their parent's path
	IndexSegment = "_index_"
	// DefaultScheme is used when neither an entry nor a mount declares one
	DefaultScheme = "http"
)
