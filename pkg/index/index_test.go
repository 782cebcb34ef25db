package index_test

import (
	"testing"

	"github.com/foomo/linkserver/pkg/index"
	"github.com/foomo/linkserver/sitemap"
	. "github.com/foomo/linkserver/sitemap/sitemaptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

func entry(t *testing.T, m *sitemap.Mount, id string) *sitemap.Entry {
	t.Helper()
	e, ok := m.Entry(id)
	require.True(t, ok, id)
	return e
}

func TestNew(t *testing.T) {
	m := Mount(t, NewsConfig()...)
	idx := index.New(zaptest.NewLogger(t), m)
	require.NoError(t, idx.Warnings())
	assert.Equal(t, 7, idx.Len())
	assert.Same(t, m, idx.Mount())

	article := idx.Binding(entry(t, m, "news/_default_/_default_/_default_.html"))
	require.NotNil(t, article)
	assert.Equal(t, "news/${1}/${2}/${3}", article.Template)
	assert.Equal(t, []int{1, 2, 3}, article.Positions)
	assert.False(t, article.UsableInRightContextOnly)

	about := idx.Binding(entry(t, m, "about.html"))
	require.NotNil(t, about)
	assert.Empty(t, about.Positions)

	templates := map[string]int{}
	idx.Walk(func(path string, bindings []*index.Binding) {
		templates[path] = len(bindings)
	})
	assert.Equal(t, map[string]int{
		"home":         1,
		"news":         1,
		"news/*":       1,
		"news/*/*":     1,
		"news/*/*/*":   2,
		"common/about": 1,
	}, templates)
}

func TestUsableInRightContextOnly(t *testing.T) {
	m := Mount(t,
		E("products", "",
			E("_default_", "",
				E("details", "catalog/details"),
				E("overview", "catalog/${1}"),
			),
		),
		E("files", "",
			E("**", "files/${1}"),
		),
	)
	idx := index.New(zaptest.NewLogger(t), m)
	require.NoError(t, idx.Warnings())

	details := idx.Binding(entry(t, m, "products/_default_/details"))
	require.NotNil(t, details)
	assert.True(t, details.UsableInRightContextOnly)
	assert.Empty(t, details.Positions)

	overview := idx.Binding(entry(t, m, "products/_default_/overview"))
	require.NotNil(t, overview)
	assert.False(t, overview.UsableInRightContextOnly)

	// entries without content path are bound but not reachable
	folder := idx.Binding(entry(t, m, "products/_default_"))
	require.NotNil(t, folder)
	assert.Empty(t, folder.Template)

	var found bool
	idx.Walk(func(path string, bindings []*index.Binding) {
		if path == "files/**" {
			found = true
		}
	})
	assert.True(t, found, "any-match wildcards are indexed as **")
}

func TestWarnings(t *testing.T) {
	m := Mount(t,
		E("ok", "ok"),
		E("unknown", "${2}"),
		E("partial", "x/pre${1}"),
		E("top", "${parent}/top"),
		E("empty", "",
			E("child", "${parent}/child"),
		),
		E("_default_", "x/${1}",
			E("nested", "${parent}/${foo}"),
		),
	)
	idx := index.New(zaptest.NewLogger(t), m)
	require.Error(t, idx.Warnings())
	assert.Len(t, multierr.Errors(idx.Warnings()), 5)

	assert.NotNil(t, idx.Binding(entry(t, m, "ok")))
	assert.NotNil(t, idx.Binding(entry(t, m, "_default_")))
	for _, id := range []string{"unknown", "partial", "top", "empty/child", "_default_/nested"} {
		assert.Nil(t, idx.Binding(entry(t, m, id)), id)
	}
}

func TestExcluded(t *testing.T) {
	m := Mount(t,
		With(E("hidden", "hidden"), Excluded()),
		E("visible", "visible"),
	)
	idx := index.New(zaptest.NewLogger(t), m)
	require.NoError(t, idx.Warnings())
	assert.Nil(t, idx.Binding(entry(t, m, "hidden")))
	assert.Equal(t, 1, idx.Len())
	assert.False(t, idx.Lookup("hidden", func(bindings []*index.Binding, captures []string) bool {
		return true
	}))
}

func TestBindingExpand(t *testing.T) {
	m := Mount(t, NewsConfig()...)
	idx := index.New(zaptest.NewLogger(t), m)

	article := idx.Binding(entry(t, m, "news/_default_/_default_/_default_.html"))
	v, ok := article.Expand([]string{"2009", "April", "AprilNewsArticle"})
	require.True(t, ok)
	assert.Equal(t, "news/2009/April/AprilNewsArticle", v)

	_, ok = article.Expand([]string{"2009"})
	assert.False(t, ok)
}
