// Package pathtree stores values at the end of path templates made of
// literal, wildcard ("*") and any-match ("**") segments.
package pathtree

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	separator = "/"
	wildcard  = "*"
	anyMatch  = "**"
)

var (
	ErrEmptyPath    = errors.New("empty path")
	ErrAnyNotLast   = errors.New("any-match must be the last segment")
	ErrEmptySegment = errors.New("empty segment")
)

type Kind int

const (
	KindLiteral Kind = iota
	KindWildcard
	KindAny
)

type (
	// Tree trie of path templates. A tree is built single-threaded and must
	// not be modified once it is shared with readers.
	Tree[V any] struct {
		root *Node[V]
		size int
	}
	// Node one segment of a template
	Node[V any] struct {
		kind     Kind
		name     string
		parent   *Node[V]
		children map[string]*Node[V]
		wildcard *Node[V]
		any      *Node[V]
		values   []V
	}
	// Acceptor is offered the values of a terminal node together with the
	// captures collected on the way. Returning false rejects the match and
	// lets the lookup backtrack.
	Acceptor[V any] func(values []V, captures []string) bool
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New[V any]() *Tree[V] {
	return &Tree[V]{
		root: newNode[V](KindLiteral, "", nil),
	}
}

func newNode[V any](kind Kind, name string, parent *Node[V]) *Node[V] {
	return &Node[V]{
		kind:     kind,
		name:     name,
		parent:   parent,
		children: map[string]*Node[V]{},
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Insert appends value at the node addressed by segments, creating nodes as
// needed. Segments are literals, "*" or "**"; "**" has to be the last one.
func (t *Tree[V]) Insert(segments []string, value V) error {
	if len(segments) == 0 {
		return ErrEmptyPath
	}
	n := t.root
	for i, s := range segments {
		switch s {
		case "":
			return ErrEmptySegment
		case wildcard:
			if n.wildcard == nil {
				n.wildcard = newNode[V](KindWildcard, s, n)
			}
			n = n.wildcard
		case anyMatch:
			if i != len(segments)-1 {
				return ErrAnyNotLast
			}
			if n.any == nil {
				n.any = newNode[V](KindAny, s, n)
			}
			n = n.any
		default:
			child, ok := n.children[s]
			if !ok {
				child = newNode[V](KindLiteral, s, n)
				n.children[s] = child
			}
			n = child
		}
	}
	n.values = append(n.values, value)
	t.size++
	return nil
}

// Len number of inserted values
func (t *Tree[V]) Len() int {
	return t.size
}

// Lookup matches path against the tree. It runs up to three passes, each
// rooted at a different child of the root: the literal child for the first
// segment, the wildcard child and the any-match child. A pass only runs if
// the previous ones were not accepted. Below the root every position prefers
// literal over wildcard over any-match children and backtracks on dead ends.
// Wildcard captures are collected left to right; an any-match captures all
// remaining segments joined by "/".
func (t *Tree[V]) Lookup(path string, accept Acceptor[V]) bool {
	path = strings.Trim(path, separator)
	if path == "" {
		return false
	}
	segments := strings.Split(path, separator)
	for _, start := range t.starts(segments) {
		if t.walk(segments, start, accept) {
			return true
		}
	}
	return false
}

// Walk visits all nodes holding values pre-order
func (t *Tree[V]) Walk(fn func(path string, values []V)) {
	stack := []*Node[V]{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(n.values) > 0 {
			fn(n.Path(), n.values)
		}
		stack = append(stack, n.next()...)
	}
}

// Kind of the node, fixed at creation
func (n *Node[V]) Kind() Kind {
	return n.kind
}

// Parent node, nil for the root
func (n *Node[V]) Parent() *Node[V] {
	return n.parent
}

// Values stored at the node
func (n *Node[V]) Values() []V {
	return n.values
}

// Path template leading to the node
func (n *Node[V]) Path() string {
	var parts []string
	for c := n; c != nil && c.parent != nil; c = c.parent {
		parts = append(parts, c.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, separator)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

type frame[V any] struct {
	node     *Node[V]
	consumed int
	captures []string
}

func (t *Tree[V]) starts(segments []string) []frame[V] {
	var starts []frame[V]
	if child, ok := t.root.children[segments[0]]; ok {
		starts = append(starts, frame[V]{node: child, consumed: 1})
	}
	if t.root.wildcard != nil {
		starts = append(starts, frame[V]{node: t.root.wildcard, consumed: 1, captures: []string{segments[0]}})
	}
	if t.root.any != nil {
		starts = append(starts, frame[V]{node: t.root.any, consumed: len(segments), captures: []string{strings.Join(segments, separator)}})
	}
	return starts
}

// walk explicit stack depth first traversal; every node is entered at most once
func (t *Tree[V]) walk(segments []string, start frame[V], accept Acceptor[V]) bool {
	visited := map[*Node[V]]struct{}{}
	stack := []frame[V]{start}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[f.node]; ok {
			continue
		}
		visited[f.node] = struct{}{}

		if f.consumed == len(segments) {
			if len(f.node.values) > 0 && accept(f.node.values, f.captures) {
				return true
			}
			continue
		}

		// pushed in reverse order of preference
		s := segments[f.consumed]
		if f.node.any != nil {
			stack = append(stack, frame[V]{
				node:     f.node.any,
				consumed: len(segments),
				captures: appendCapture(f.captures, strings.Join(segments[f.consumed:], separator)),
			})
		}
		if f.node.wildcard != nil {
			stack = append(stack, frame[V]{
				node:     f.node.wildcard,
				consumed: f.consumed + 1,
				captures: appendCapture(f.captures, s),
			})
		}
		if child, ok := f.node.children[s]; ok {
			stack = append(stack, frame[V]{
				node:     child,
				consumed: f.consumed + 1,
				captures: f.captures,
			})
		}
	}
	return false
}

func (n *Node[V]) next() []*Node[V] {
	next := make([]*Node[V], 0, len(n.children)+2)
	if n.any != nil {
		next = append(next, n.any)
	}
	if n.wildcard != nil {
		next = append(next, n.wildcard)
	}
	for _, c := range n.children {
		next = append(next, c)
	}
	return next
}

func appendCapture(captures []string, v string) []string {
	return append(captures[:len(captures):len(captures)], v)
}
