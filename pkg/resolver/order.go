package resolver

import (
	"sort"
	"strconv"

	"github.com/foomo/linkserver/pkg/index"
	"github.com/foomo/linkserver/sitemap"
)

// affinity of a candidate to the context entry, lower is better
const (
	affinitySelf = iota
	affinityAncestor
	affinityCommonAncestor
	affinityNone
)

type candidate struct {
	binding  *index.Binding
	typed    bool
	affinity int
	// distance hops from the context entry (ancestors) or from the common
	// ancestor (relatives)
	distance int
	// commonDepth depth of the common ancestor
	commonDepth int
}

// order sorts the bindings of a terminal node into the order they are tried.
// Without a context entries that need one are dropped and the rest is
// ordered typed first, then by depth, then by id. With a context the
// affinity groups come first and typed candidates are exhausted before
// fallback candidates within each group.
func order(bindings []*index.Binding, req Request) []candidate {
	candidates := make([]candidate, 0, len(bindings))
	for _, b := range bindings {
		if req.Context == nil && b.UsableInRightContextOnly {
			continue
		}
		c := candidate{
			binding:  b,
			typed:    isTyped(b.Entry, req.Kind),
			affinity: affinityNone,
		}
		if req.Context != nil {
			c.affinity, c.distance, c.commonDepth = affinity(b.Entry, req.Context.Entry)
		}
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.affinity != b.affinity {
			return a.affinity < b.affinity
		}
		if a.typed != b.typed {
			return a.typed
		}
		switch a.affinity {
		case affinityAncestor:
			if a.distance != b.distance {
				return a.distance < b.distance
			}
		case affinityCommonAncestor:
			if a.commonDepth != b.commonDepth {
				return a.commonDepth > b.commonDepth
			}
			if a.distance != b.distance {
				return a.distance < b.distance
			}
		}
		if a.binding.Entry.Depth != b.binding.Entry.Depth {
			return a.binding.Entry.Depth < b.binding.Entry.Depth
		}
		return a.binding.Entry.ID < b.binding.Entry.ID
	})
	return candidates
}

func affinity(e, current *sitemap.Entry) (group, distance, commonDepth int) {
	switch {
	case e == current:
		return affinitySelf, 0, e.Depth
	case e.IsAncestorOf(current):
		return affinityAncestor, current.Depth - e.Depth, e.Depth
	}
	if common := e.CommonAncestor(current); common != nil {
		return affinityCommonAncestor, e.Depth - common.Depth, common.Depth
	}
	return affinityNone, 0, 0
}

// isTyped documents prefer entries with an extension, folders entries without
func isTyped(e *sitemap.Entry, kind sitemap.ContentKind) bool {
	if kind == sitemap.KindFolder {
		return !e.HasExtension()
	}
	return e.HasExtension()
}

func keyName(i int) string {
	return "key" + strconv.Itoa(i)
}

func positionName(i int) string {
	return strconv.Itoa(i)
}
