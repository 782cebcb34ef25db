package requests

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Env describes the request a link is rendered for
type Env struct {
	// scheme of the incoming request, http or https
	Scheme string `json:"scheme"`
	// host of the incoming request
	Host string `json:"host"`
	// port of the incoming request, 0 if unknown
	Port int `json:"port"`
	// preview or administrative request
	Preview bool `json:"preview"`
	// host a preview is rendering for
	RenderHost string `json:"renderHost,omitempty"`
}

// Current - the page the links are rendered on
type Current struct {
	// alias of the mount serving the page
	Mount string `json:"mount"`
	// request path relative to the mount
	Path string `json:"path"`
}

// Link - resolve a content path to an url
type Link struct {
	// alias of the target mount, defaults to the current mount or the mount serving env.host
	Mount string `json:"mount,omitempty"`
	// content path relative to the content root
	Path string `json:"path"`
	// document, folder or index
	Kind string `json:"kind,omitempty"`
	// ignore the current page
	Canonical bool `json:"canonical,omitempty"`
	// always render scheme and host
	FullyQualified bool     `json:"fullyQualified,omitempty"`
	Current        *Current `json:"current,omitempty"`
	Env            *Env     `json:"env"`
}

// Links - resolve many links at once, use this one to rewrite the links of
// a document. Env and Current are the defaults for every link.
type Links struct {
	Links   map[string]*Link `json:"links"`
	Current *Current         `json:"current,omitempty"`
	Env     *Env             `json:"env"`
}

// Match - find the site map entry of a request path
type Match struct {
	Mount string `json:"mount"`
	Path  string `json:"path"`
}

// Update - request an update
type Update struct{}

// SiteMap - query the raw site map
type SiteMap struct{}

func (e *Env) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.Scheme, validation.In("http", "https")),
		validation.Field(&e.Host, validation.Required),
		validation.Field(&e.Port, validation.Min(0), validation.Max(65535)),
	)
}

func (c *Current) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mount, validation.Required),
	)
}

func (l *Link) Validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Path, validation.Required),
		validation.Field(&l.Kind, validation.In("document", "folder", "index")),
		validation.Field(&l.Current),
		validation.Field(&l.Env, validation.Required),
	)
}

// Validate checks the envelope only, links are validated one by one after
// the defaults were applied
func (l *Links) Validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Links, validation.Required, validation.Skip),
		validation.Field(&l.Current),
		validation.Field(&l.Env),
	)
}

func (m *Match) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.Mount, validation.Required),
	)
}
