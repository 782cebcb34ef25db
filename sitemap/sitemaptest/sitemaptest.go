// Package sitemaptest builds site map fixtures for tests
package sitemaptest

import (
	"testing"

	"github.com/foomo/linkserver/sitemap"
)

// Option modifies an entry config
type Option func(*sitemap.EntryConfig)

// E entry config named name with content path template contentPath
func E(name, contentPath string, children ...*sitemap.EntryConfig) *sitemap.EntryConfig {
	return &sitemap.EntryConfig{
		Name:        name,
		ContentPath: contentPath,
		Children:    children,
	}
}

// With applies options to an entry config
func With(e *sitemap.EntryConfig, opts ...Option) *sitemap.EntryConfig {
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func ID(v string) Option {
	return func(e *sitemap.EntryConfig) {
		e.ID = v
	}
}

func Scheme(v string) Option {
	return func(e *sitemap.EntryConfig) {
		e.Scheme = v
	}
}

func SchemeAgnostic() Option {
	return func(e *sitemap.EntryConfig) {
		e.SchemeAgnostic = true
	}
}

func Excluded() Option {
	return func(e *sitemap.EntryConfig) {
		e.ExcludedForLinkRewriting = true
	}
}

// Mount builds a mount for www.example.com from entries
func Mount(tb testing.TB, entries ...*sitemap.EntryConfig) *sitemap.Mount {
	tb.Helper()
	return MountWithConfig(tb, &sitemap.MountConfig{
		Host:     "www.example.com",
		Scheme:   "http",
		HomePage: "home",
		SiteMap:  entries,
	})
}

// MountWithConfig builds a mount and fails the test on error
func MountWithConfig(tb testing.TB, cfg *sitemap.MountConfig) *sitemap.Mount {
	tb.Helper()
	m, err := sitemap.NewMount("main", cfg)
	if err != nil {
		tb.Fatal("could not build mount", err)
	}
	return m
}

// NewsConfig a news archive by year, month and article: folders without
// extension, documents with ".html"; https from news/* downwards
func NewsConfig() []*sitemap.EntryConfig {
	return []*sitemap.EntryConfig{
		E("home", "home"),
		E("news", "news",
			With(E("_default_", "${parent}/${1}",
				E("_default_", "${parent}/${2}",
					E("_default_", "${parent}/${3}"),
					E("_default_.html", "${parent}/${3}"),
				),
			), Scheme("https")),
		),
		E("about.html", "common/about"),
	}
}
