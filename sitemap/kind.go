package sitemap

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ContentKind what a content path points to
type ContentKind int

const (
	// KindDocument a content document
	KindDocument ContentKind = iota
	// KindFolder a content folder
	KindFolder
	// KindIndex a document that represents its parent folder
	KindIndex
)

func (k ContentKind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindFolder:
		return "folder"
	case KindIndex:
		return "index"
	default:
		return fmt.Sprintf("ContentKind(%d)", int(k))
	}
}

// ParseContentKind empty input is a document
func ParseContentKind(v string) (ContentKind, error) {
	switch strings.ToLower(v) {
	case "", "document":
		return KindDocument, nil
	case "folder":
		return KindFolder, nil
	case "index":
		return KindIndex, nil
	default:
		return KindDocument, errors.Errorf("unknown content kind %q", v)
	}
}

// SchemeKind how the scheme of a link is determined
type SchemeKind int

const (
	// SchemeInherit defer to the mount
	SchemeInherit SchemeKind = iota
	// SchemeFixed always use the declared scheme
	SchemeFixed
	// SchemeAgnostic use the scheme of the current request
	SchemeAgnostic
)

// SchemePolicy scheme declaration of an entry
type SchemePolicy struct {
	Kind   SchemeKind
	Scheme string
}

// FixedScheme policy pinned to scheme
func FixedScheme(scheme string) SchemePolicy {
	return SchemePolicy{Kind: SchemeFixed, Scheme: strings.ToLower(scheme)}
}

// AgnosticScheme policy following the current request
func AgnosticScheme() SchemePolicy {
	return SchemePolicy{Kind: SchemeAgnostic}
}

func (p SchemePolicy) String() string {
	switch p.Kind {
	case SchemeFixed:
		return p.Scheme
	case SchemeAgnostic:
		return "agnostic"
	default:
		return "inherit"
	}
}
