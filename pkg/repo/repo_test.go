package repo

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foomo/linkserver/pkg/repo/mock"
	"github.com/foomo/linkserver/requests"
	"github.com/foomo/linkserver/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func NewTestRepo(ctx context.Context, l *zap.Logger, url, varDir string, opts ...Option) *Repo {
	h, err := NewHistory(l, HistoryWithHistoryLimit(2), HistoryWithHistoryDir(varDir))
	if err != nil {
		panic(err)
	}
	r := New(l, url, h, opts...)
	go r.Start(ctx) //nolint:errcheck
	time.Sleep(100 * time.Millisecond)
	return r
}

func getTestRepo(t *testing.T, path string, opts ...Option) *Repo {
	t.Helper()
	l := zaptest.NewLogger(t)

	mockServer, varDir := mock.GetMockData(t)
	r := NewTestRepo(t.Context(), l, mockServer.URL+path, varDir, opts...)
	response := r.Update(t.Context())
	require.True(t, response.Success, "could not load %s: %s", path, response.ErrorMessage)

	return r
}

func TestLoad404(t *testing.T) {
	var (
		l                  = zaptest.NewLogger(t)
		mockServer, varDir = mock.GetMockData(t)
		url                = mockServer.URL + "/sitemap-no-have"
		r                  = NewTestRepo(t.Context(), l, url, varDir)
	)

	response := r.Update(t.Context())
	assert.False(t, response.Success, "can not get a site map, if the server responds with a 404")
	assert.False(t, r.Loaded())
	assert.Nil(t, r.Snapshot())
}

func TestLoadBrokenSiteMap(t *testing.T) {
	var (
		l                  = zaptest.NewLogger(t)
		mockServer, varDir = mock.GetMockData(t)
		r                  = NewTestRepo(t.Context(), l, mockServer.URL+"/sitemap-broken.json", varDir)
	)

	response := r.Update(t.Context())
	assert.False(t, response.Success, "how could we load a broken json")
	assert.Equal(t, -1, response.Stats.NumberOfEntries)
}

func TestLoadSiteMap(t *testing.T) {
	var (
		l                  = zaptest.NewLogger(t)
		mockServer, varDir = mock.GetMockData(t)
		r                  = NewTestRepo(t.Context(), l, mockServer.URL+"/sitemap-ok.json", varDir)
	)
	require.True(t, r.Loaded(), "initial update")

	response := r.Update(t.Context())
	require.True(t, response.Success, "could not load valid site map")
	assert.Equal(t, 1, response.Stats.NumberOfMounts)
	assert.Equal(t, 8, response.Stats.NumberOfEntries)
	assert.Positive(t, response.Stats.NumberOfTemplates)
	assert.Zero(t, response.Stats.NumberOfWarnings)
	assert.GreaterOrEqual(t, response.Stats.RepoRuntime, 0.05, "the server was too fast")

	// persisted for the next start
	var buf bytes.Buffer
	require.NoError(t, r.history.GetCurrent(t.Context(), &buf))
	assert.Equal(t, r.Snapshot().Source(), buf.Bytes())
}

func TestLoadYAMLSiteMap(t *testing.T) {
	r := getTestRepo(t, "/sitemap-ok.yaml")
	link, err := r.ResolveLink(mock.MakeLinkRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://www.example.com/news/2009/April/AprilNewsArticle.html", link.URL)
}

func TestLoadSiteMapDuplicateIDs(t *testing.T) {
	var (
		l                  = zaptest.NewLogger(t)
		mockServer, varDir = mock.GetMockData(t)
		r                  = NewTestRepo(t.Context(), l, mockServer.URL+"/sitemap-duplicate-ids.json", varDir)
	)

	response := r.Update(t.Context())
	require.False(t, response.Success, "there are duplicates, this update should have failed")
	assert.Contains(t, response.ErrorMessage, "duplicate entry")
}

func TestMountHygiene(t *testing.T) {
	r := getTestRepo(t, "/sitemap-two-mounts.json")
	assert.Equal(t, []string{"main", "shop"}, r.Snapshot().Aliases())

	mockServer, _ := mock.GetMockData(t)
	r.url = mockServer.URL + "/sitemap-ok.json"
	response := r.Update(t.Context())
	require.True(t, response.Success, "it is called sitemap ok")

	assert.Len(t, r.Snapshot().Indexes, 1, "mount hygiene failed")
}

func TestFailedUpdateKeepsSnapshot(t *testing.T) {
	r := getTestRepo(t, "/sitemap-ok.json")
	before := r.Snapshot()

	mockServer, _ := mock.GetMockData(t)
	r.url = mockServer.URL + "/sitemap-broken.json"
	response := r.Update(t.Context())
	require.False(t, response.Success)

	assert.Same(t, before, r.Snapshot())
	_, err := r.ResolveLink(mock.MakeLinkRequest())
	require.NoError(t, err)
}

func TestRestoreFromHistory(t *testing.T) {
	var (
		l                  = zaptest.NewLogger(t)
		mockServer, varDir = mock.GetMockData(t)
		r                  = NewTestRepo(t.Context(), l, mockServer.URL+"/sitemap-ok.json", varDir)
	)
	require.True(t, r.Loaded())

	// the source is gone, the history is not
	restored := NewTestRepo(t.Context(), l, mockServer.URL+"/sitemap-no-have", varDir)
	assert.False(t, restored.Loaded())
	require.NotNil(t, restored.Snapshot())
	link, err := restored.ResolveLink(mock.MakeLinkRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://www.example.com/news/2009/April/AprilNewsArticle.html", link.URL)
}

func TestResolveLink(t *testing.T) {
	r := getTestRepo(t, "/sitemap-ok.json")

	link, err := r.ResolveLink(mock.MakeLinkRequest())
	require.NoError(t, err)
	assert.Equal(t, &responses.Link{
		URL:                "https://www.example.com/news/2009/April/AprilNewsArticle.html",
		Path:               "news/2009/April/AprilNewsArticle.html",
		Mount:              "main",
		EntryID:            "news/_default_/_default_/_default_.html",
		RepresentsDocument: true,
		Params:             map[string]string{"key1": "2009", "key2": "April", "key3": "AprilNewsArticle"},
	}, link)

	req := mock.MakeLinkRequest()
	req.Kind = "folder"
	req.Path = "news/2009"
	link, err = r.ResolveLink(req)
	require.NoError(t, err)
	assert.Equal(t, "https://www.example.com/news/2009", link.URL)
	assert.True(t, link.RepresentsFolder)

	req.Env.Scheme = "https"
	req.Env.Port = 443
	link, err = r.ResolveLink(req)
	require.NoError(t, err)
	assert.Equal(t, "/news/2009", link.URL, "same scheme stays relative")

	req = mock.MakeLinkRequest()
	req.Path = "does/not/exist"
	link, err = r.ResolveLink(req)
	require.NoError(t, err)
	assert.True(t, link.NotFound)
	assert.Equal(t, "/pagenotfound", link.URL)
}

func TestResolveLinkCache(t *testing.T) {
	r := getTestRepo(t, "/sitemap-ok.json")

	first, err := r.ResolveLink(mock.MakeLinkRequest())
	require.NoError(t, err)
	second, err := r.ResolveLink(mock.MakeLinkRequest())
	require.NoError(t, err)
	assert.Same(t, first, second, "second request is served from the cache")

	req := mock.MakeLinkRequest()
	req.FullyQualified = true
	other, err := r.ResolveLink(req)
	require.NoError(t, err)
	assert.NotSame(t, first, other)

	uncached := getTestRepo(t, "/sitemap-ok.json", WithCacheSize(0))
	a, err := uncached.ResolveLink(mock.MakeLinkRequest())
	require.NoError(t, err)
	b, err := uncached.ResolveLink(mock.MakeLinkRequest())
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, a, b)
}

func TestResolveLinkTwoMounts(t *testing.T) {
	r := getTestRepo(t, "/sitemap-two-mounts.json")

	link, err := r.ResolveLink(&requests.Link{
		Mount: "shop",
		Path:  "shop/products/shoes",
		Kind:  "folder",
		Env:   mock.MakeEnv(),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/products/shoes", link.URL)
	assert.Equal(t, "shop", link.Mount)

	// mount by host
	link, err = r.ResolveLink(&requests.Link{
		Path: "shop/start",
		Kind: "folder",
		Env:  &requests.Env{Scheme: "https", Host: "shop.example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/", link.URL)

	// no mount for the host and more than one mount
	_, err = r.ResolveLink(&requests.Link{
		Path: "home",
		Env:  &requests.Env{Scheme: "https", Host: "unknown.example.com"},
	})
	require.ErrorIs(t, err, ErrMountNotFound)

	_, err = r.ResolveLink(&requests.Link{
		Mount: "blog",
		Path:  "home",
		Env:   mock.MakeEnv(),
	})
	require.ErrorIs(t, err, ErrMountNotFound)
}

func TestResolveLinks(t *testing.T) {
	r := getTestRepo(t, "/sitemap-ok.json")

	links, err := r.ResolveLinks(mock.MakeLinksRequest())
	require.NoError(t, err)
	require.Len(t, links, 4)
	assert.Equal(t, "/", links["home"].URL)
	assert.Equal(t, "/about.html", links["about"].URL)
	assert.Equal(t, "https://www.example.com/news/2009/April/AprilNewsArticle.html", links["article"].URL)
	assert.True(t, links["missing"].NotFound)

	req := mock.MakeLinksRequest()
	req.Links["broken"] = &requests.Link{Path: "home", Kind: "image"}
	_, err = r.ResolveLinks(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `link "broken"`)
}

func TestMatchPath(t *testing.T) {
	r := getTestRepo(t, "/sitemap-ok.json")

	m, err := r.MatchPath(mock.MakeMatchRequest())
	require.NoError(t, err)
	assert.Equal(t, &responses.Match{
		Found:       true,
		Mount:       "main",
		EntryID:     "news/_default_/_default_/_default_.html",
		Template:    "news/*/*/*.html",
		ContentPath: "news/2009/April/AprilNewsArticle",
		Params:      []string{"2009", "April", "AprilNewsArticle"},
	}, m)

	m, err = r.MatchPath(&requests.Match{Mount: "main", Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, "home", m.EntryID)

	m, err = r.MatchPath(&requests.Match{Mount: "main", Path: "/nothing/here"})
	require.NoError(t, err)
	assert.False(t, m.Found)

	_, err = r.MatchPath(&requests.Match{Mount: "shop"})
	require.ErrorIs(t, err, ErrMountNotFound)
}

func TestInvalidRequest(t *testing.T) {
	r := getTestRepo(t, "/sitemap-ok.json")

	require.NoError(t, mock.MakeLinkRequest().Validate(), "failed validating a valid request")

	tests := map[string]*requests.Link{}

	rEmptyPath := mock.MakeLinkRequest()
	rEmptyPath.Path = ""
	tests["empty path"] = rEmptyPath

	rEmptyEnv := mock.MakeLinkRequest()
	rEmptyEnv.Env = nil
	tests["empty env"] = rEmptyEnv

	rBadKind := mock.MakeLinkRequest()
	rBadKind.Kind = "image"
	tests["bad kind"] = rBadKind

	rBadScheme := mock.MakeLinkRequest()
	rBadScheme.Env.Scheme = "gopher"
	tests["bad scheme"] = rBadScheme

	rEmptyCurrent := mock.MakeLinkRequest()
	rEmptyCurrent.Current.Mount = ""
	tests["current without mount"] = rEmptyCurrent

	for comment, req := range tests {
		_, err := r.ResolveLink(req)
		require.ErrorIs(t, err, ErrInvalidRequest, comment)
	}

	_, err := r.ResolveLink(nil)
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = r.MatchPath(&requests.Match{})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNotLoaded(t *testing.T) {
	l := zaptest.NewLogger(t)
	h, err := NewHistory(l, HistoryWithHistoryDir(t.TempDir()))
	require.NoError(t, err)
	r := New(l, "http://localhost/none", h)

	_, err = r.ResolveLink(mock.MakeLinkRequest())
	require.ErrorIs(t, err, ErrNotLoaded)
	_, err = r.MatchPath(mock.MakeMatchRequest())
	require.ErrorIs(t, err, ErrNotLoaded)

	var buf bytes.Buffer
	require.ErrorIs(t, r.WriteSiteMapBytes(t.Context(), &buf), os.ErrNotExist)
}

func TestWriteSiteMapBytes(t *testing.T) {
	r := getTestRepo(t, "/sitemap-ok.yaml")

	var buf bytes.Buffer
	require.NoError(t, r.WriteSiteMapBytes(t.Context(), &buf))

	reply := struct {
		Reply struct {
			Mounts map[string]struct {
				Host string `json:"host"`
			} `json:"mounts"`
		} `json:"reply"`
	}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &reply))
	assert.Equal(t, "www.example.com", reply.Reply.Mounts["main"].Host)
}

func TestUpdateRejected(t *testing.T) {
	var (
		l       = zaptest.NewLogger(t)
		started = make(chan struct{}, 2)
		release = make(chan struct{})
		server  = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			started <- struct{}{}
			<-release
			http.ServeFile(w, req, filepath.Join(mock.Dir(), "sitemap-ok.json"))
		}))
	)
	defer server.Close()

	h, err := NewHistory(l, HistoryWithHistoryDir(t.TempDir()))
	require.NoError(t, err)
	r := New(l, server.URL, h)
	go r.UpdateRoutine(t.Context()) //nolint:errcheck

	first := make(chan *responses.Update, 1)
	go func() {
		first <- r.Update(t.Context())
	}()
	// the first update is fetching the site map
	<-started

	response := r.Update(t.Context())
	assert.False(t, response.Success)
	assert.Equal(t, ErrUpdateRejected.Error(), response.ErrorMessage)

	close(release)
	assert.True(t, (<-first).Success)

	// accepted again once the first one is done
	assert.True(t, r.Update(t.Context()).Success)
}

func TestUpdateBeforeUpdateRoutine(t *testing.T) {
	var (
		l                  = zaptest.NewLogger(t)
		mockServer, varDir = mock.GetMockData(t)
	)
	h, err := NewHistory(l, HistoryWithHistoryDir(varDir))
	require.NoError(t, err)
	r := New(l, mockServer.URL+"/sitemap-ok.json", h)

	done := make(chan *responses.Update, 1)
	go func() {
		done <- r.Update(t.Context())
	}()
	time.Sleep(20 * time.Millisecond)
	go r.UpdateRoutine(t.Context()) //nolint:errcheck

	response := <-done
	require.True(t, response.Success, response.ErrorMessage)
	assert.True(t, r.Loaded())
}

func TestPoll(t *testing.T) {
	var (
		l       = zaptest.NewLogger(t)
		mux     = http.NewServeMux()
		server  = httptest.NewServer(mux)
		latest  atomic.Value
		varDir  = t.TempDir()
		updates atomic.Int32
	)
	defer server.Close()
	latest.Store("/files/sitemap-ok.json")
	mux.HandleFunc("/latest", func(w http.ResponseWriter, req *http.Request) {
		_, _ = fmt.Fprint(w, server.URL+latest.Load().(string))
	})
	mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(mock.Dir()))))

	r := NewTestRepo(t.Context(), l, server.URL+"/latest", varDir,
		WithPoll(true),
		WithPollInterval(50*time.Millisecond),
		WithNotifier(NotifierFunc(func(ctx context.Context, event *responses.SiteMapUpdated) error {
			updates.Add(1)
			return nil
		})),
	)
	require.True(t, r.Loaded())
	assert.Equal(t, []string{"main"}, r.Snapshot().Aliases())

	// same version, no reload
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), updates.Load())

	latest.Store("/files/sitemap-two-mounts.json")
	require.Eventually(t, func() bool {
		return updates.Load() == 2
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"main", "shop"}, r.Snapshot().Aliases())

	// polled versions are persisted for the next start
	var buf bytes.Buffer
	require.NoError(t, r.history.GetCurrent(t.Context(), &buf))
	assert.Equal(t, r.Snapshot().Source(), buf.Bytes())
	files, err := r.history.getHistory(t.Context())
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestNotifier(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*responses.SiteMapUpdated
	)
	r := getTestRepo(t, "/sitemap-two-mounts.json", WithNotifier(NotifierFunc(func(ctx context.Context, event *responses.SiteMapUpdated) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		return fmt.Errorf("notifications are best effort")
	})))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2, "initial update and explicit update")
	last := events[1]
	assert.Equal(t, r.Snapshot().RunID, last.RunID)
	assert.NotEmpty(t, last.RunID)
	assert.Equal(t, []string{"main", "shop"}, last.Mounts)
	assert.Equal(t, 2, last.Stats.NumberOfMounts)
	assert.Contains(t, last.Source, "/sitemap-two-mounts.json")
}

func TestWatch(t *testing.T) {
	var (
		l        = zaptest.NewLogger(t)
		dir      = t.TempDir()
		filename = filepath.Join(dir, "sitemap.json")
	)
	ok, err := os.ReadFile(filepath.Join(mock.Dir(), "sitemap-ok.json"))
	require.NoError(t, err)
	twoMounts, err := os.ReadFile(filepath.Join(mock.Dir(), "sitemap-two-mounts.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filename, ok, 0o600))

	r := NewTestRepo(t.Context(), l, "file://"+filename, t.TempDir(),
		WithWatch(true),
		WithWatchDebounce(20*time.Millisecond),
	)
	require.True(t, r.Loaded())
	require.Len(t, r.Snapshot().Aliases(), 1)

	require.NoError(t, os.WriteFile(filename, twoMounts, 0o600))
	require.Eventually(t, func() bool {
		return len(r.Snapshot().Aliases()) == 2
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		var buf bytes.Buffer
		return r.history.GetCurrent(t.Context(), &buf) == nil && bytes.Equal(twoMounts, buf.Bytes())
	}, 2*time.Second, 20*time.Millisecond, "watched versions are persisted")
}

func TestLocalPath(t *testing.T) {
	_, ok := localPath("https://www.example.com/sitemap.json")
	assert.False(t, ok)

	p, ok := localPath("file:///etc/sitemap.yaml")
	assert.True(t, ok)
	assert.Equal(t, "/etc/sitemap.yaml", p)

	p, ok = localPath("/etc/sitemap.yaml")
	assert.True(t, ok)
	assert.Equal(t, "/etc/sitemap.yaml", p)
}

func TestResolveLinkRace(t *testing.T) {
	var (
		l                  = zaptest.NewLogger(t)
		mockServer, varDir = mock.GetMockData(t)
		r                  = NewTestRepo(t.Context(), l, mockServer.URL+"/sitemap-ok.json", varDir)
	)
	require.True(t, r.Loaded())

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
					link, err := r.ResolveLink(mock.MakeLinkRequest())
					if assert.NoError(t, err) {
						assert.Equal(t, "https://www.example.com/news/2009/April/AprilNewsArticle.html", link.URL)
					}
					var buf bytes.Buffer
					_ = r.WriteSiteMapBytes(ctx, &buf)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
					_ = r.Update(ctx)
				}
			}
		}()
	}
	wg.Wait()
}

func BenchmarkResolveLink(b *testing.B) {
	var (
		l                  = zaptest.NewLogger(b)
		mockServer, varDir = mock.GetMockData(b)
		r                  = NewTestRepo(b.Context(), l, mockServer.URL+"/sitemap-ok.json", varDir, WithCacheSize(0))
	)
	req := mock.MakeLinkRequest()

	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if _, err := r.ResolveLink(req); err != nil {
			b.Fatal(err)
		}
	}
}
