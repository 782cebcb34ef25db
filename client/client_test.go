package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/foomo/linkserver/client"
	"github.com/foomo/linkserver/pkg/repo"
	"github.com/foomo/linkserver/pkg/repo/mock"
	"github.com/foomo/linkserver/requests"
	"github.com/foomo/linkserver/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const articleURL = "https://www.example.com/news/2009/April/AprilNewsArticle.html"

func TestUpdate(t *testing.T) {
	testWithClients(t, func(t *testing.T, c *client.Client) {
		response, err := c.Update(t.Context())
		require.NoError(t, err)
		require.True(t, response.Success, "update has to return .Success true")
		assert.Greater(t, response.Stats.OwnRuntime, 0.0)
		assert.Greater(t, response.Stats.RepoRuntime, 0.0)
		assert.Equal(t, 1, response.Stats.NumberOfMounts)
	})
}

func TestResolveLink(t *testing.T) {
	testWithClients(t, func(t *testing.T, c *client.Client) {
		link, err := c.ResolveLink(t.Context(), mock.MakeLinkRequest())
		require.NoError(t, err)
		assert.Equal(t, articleURL, link.URL)
		assert.Equal(t, "main", link.Mount)
		assert.True(t, link.RepresentsDocument)
	})
}

func TestResolveLinks(t *testing.T) {
	testWithClients(t, func(t *testing.T, c *client.Client) {
		links, err := c.ResolveLinks(t.Context(), mock.MakeLinksRequest())
		require.NoError(t, err)
		require.Len(t, links, 4)
		assert.Equal(t, "/", links["home"].URL)
		assert.Equal(t, articleURL, links["article"].URL)
		assert.True(t, links["missing"].NotFound)
	})
}

func TestMatchPath(t *testing.T) {
	testWithClients(t, func(t *testing.T, c *client.Client) {
		m, err := c.MatchPath(t.Context(), "main", "/news/2009/April/AprilNewsArticle.html")
		require.NoError(t, err)
		assert.True(t, m.Found)
		assert.Equal(t, "news/2009/April/AprilNewsArticle", m.ContentPath)
	})
}

func TestGetSiteMap(t *testing.T) {
	testWithClients(t, func(t *testing.T, c *client.Client) {
		cfg, err := c.GetSiteMap(t.Context())
		require.NoError(t, err)
		require.Contains(t, cfg.Mounts, "main")
		assert.Equal(t, "www.example.com", cfg.Mounts["main"].Host)
		assert.Len(t, cfg.Mounts["main"].SiteMap, 4)
	})
}

func TestRemoteError(t *testing.T) {
	testWithClients(t, func(t *testing.T, c *client.Client) {
		_, err := c.ResolveLink(t.Context(), &requests.Link{Path: "home", Env: mock.MakeEnv(), Mount: "blog"})
		require.Error(t, err)
		var remoteErr responses.Error
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, responses.ErrorCodeAPI, remoteErr.Code)
		assert.Equal(t, 404, remoteErr.Status)

		_, err = c.MatchPath(t.Context(), "", "/")
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, 400, remoteErr.Status)
	})
}

func TestConcurrentCalls(t *testing.T) {
	testWithClients(t, func(t *testing.T, c *client.Client) {
		var wg sync.WaitGroup
		for group := 0; group < 10; group++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					link, err := c.ResolveLink(context.Background(), mock.MakeLinkRequest())
					if assert.NoError(t, err) {
						assert.Equal(t, articleURL, link.URL)
					}
				}
			}()
		}
		wg.Wait()
	})
}

func benchmarkServerAndClientResolveLink(b *testing.B, numGroups, numCalls int, c *client.Client) {
	b.Helper()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		start := time.Now()
		var wg sync.WaitGroup
		wg.Add(numGroups)
		for group := 0; group < numGroups; group++ {
			go func() {
				defer wg.Done()
				request := mock.MakeLinkRequest()
				for i := 0; i < numCalls; i++ {
					if _, err := c.ResolveLink(context.Background(), request); err != nil {
						b.Error(err)
						return
					}
				}
			}()
		}
		wg.Wait()
		dur := time.Since(start)
		totalCalls := numGroups * numCalls
		b.Log("requests per second", int(float64(totalCalls)/dur.Seconds()), dur, totalCalls)
	}
}

func testWithClients(t *testing.T, testFunc func(t *testing.T, c *client.Client)) {
	t.Helper()
	l := zap.NewNop()
	r := initRepo(t, l)

	t.Run("http", func(t *testing.T) {
		server := initHTTPRepoServer(t, l, r)
		testFunc(t, newHTTPClient(t, server))
	})
	t.Run("socket", func(t *testing.T) {
		ln := initSocketRepoServer(t, l, r)
		c := newSocketClient(t, ln.Addr().String())
		defer c.Close()
		testFunc(t, c)
	})
}

func initRepo(tb testing.TB, l *zap.Logger) *repo.Repo {
	tb.Helper()
	testRepoServer, varDir := mock.GetMockData(tb)
	h, err := repo.NewHistory(l, repo.HistoryWithHistoryDir(varDir))
	require.NoError(tb, err)
	r := repo.New(l, testRepoServer.URL+"/sitemap-ok.json", h)
	up := make(chan bool, 1)
	r.OnLoaded(func() {
		up <- true
	})
	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)
	go r.Start(ctx) //nolint:errcheck
	select {
	case <-up:
	case <-time.After(5 * time.Second):
		tb.Fatal("repo did not load")
	}
	return r
}
