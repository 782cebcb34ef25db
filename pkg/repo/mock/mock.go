package mock

import (
	"net/http"
	"net/http/httptest"
	"path"
	"runtime"
	"testing"
	"time"

	"github.com/foomo/linkserver/requests"
)

// Dir directory holding the mock site maps
func Dir() string {
	_, filename, _, _ := runtime.Caller(0)
	return path.Dir(filename)
}

// GetMockData serves the mock site maps and returns a history dir
func GetMockData(tb testing.TB) (*httptest.Server, string) {
	tb.Helper()
	mockDir := Dir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(time.Millisecond * 50)
		mockFilename := path.Join(mockDir, req.URL.Path[1:])
		http.ServeFile(w, req, mockFilename)
	}))
	tb.Cleanup(server.Close)

	return server, tb.TempDir()
}

// MakeEnv a plain http request for www.example.com
func MakeEnv() *requests.Env {
	return &requests.Env{
		Scheme: "http",
		Host:   "www.example.com",
		Port:   80,
	}
}

// MakeLinkRequest link to a news article, rendered on the news folder
func MakeLinkRequest() *requests.Link {
	return &requests.Link{
		Path: "news/2009/April/AprilNewsArticle",
		Kind: "document",
		Current: &requests.Current{
			Mount: "main",
			Path:  "news/2009/April",
		},
		Env: MakeEnv(),
	}
}

// MakeLinksRequest rewrites the links of a page on the home page
func MakeLinksRequest() *requests.Links {
	return &requests.Links{
		Links: map[string]*requests.Link{
			"home":    {Path: "home"},
			"about":   {Path: "common/about"},
			"article": {Path: "news/2009/April/AprilNewsArticle"},
			"missing": {Path: "does/not/exist"},
		},
		Current: &requests.Current{
			Mount: "main",
			Path:  "home",
		},
		Env: MakeEnv(),
	}
}

// MakeMatchRequest request path of a news article
func MakeMatchRequest() *requests.Match {
	return &requests.Match{
		Mount: "main",
		Path:  "/news/2009/April/AprilNewsArticle.html",
	}
}
