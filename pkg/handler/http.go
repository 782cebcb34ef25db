package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/foomo/linkserver/pkg/repo"
	httputils "github.com/foomo/keel/utils/net/http"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type (
	HTTP struct {
		service
		basePath string
	}
	HTTPOption func(*HTTP)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// NewHTTP returns a shiny new web server
func NewHTTP(l *zap.Logger, repo *repo.Repo, opts ...HTTPOption) http.Handler {
	inst := &HTTP{
		service: service{
			l:    l.Named("http"),
			repo: repo,
		},
		basePath: "/linkserver",
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithBasePath(v string) HTTPOption {
	return func(o *HTTP) {
		o.basePath = "/" + strings.Trim(v, "/")
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputils.ServerError(h.l, w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	if r.Body == nil {
		httputils.BadRequestServerError(h.l, w, r, errors.New("empty request body"))
		return
	}

	bytes, err := io.ReadAll(r.Body)
	if err != nil {
		httputils.BadRequestServerError(h.l, w, r, errors.Wrap(err, "failed to read incoming request"))
		return
	}

	route := Route(strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(h.basePath, "/")+"/"))
	w.Header().Set("Content-Type", "application/json")
	if route == RouteGetSiteMap {
		if err := h.repo.WriteSiteMapBytes(r.Context(), w); err != nil {
			httputils.ServerError(h.l, w, r, http.StatusServiceUnavailable, errors.Wrap(err, "failed to write site map"))
		}
		return
	}

	reply, errReply := h.handleRequest(r.Context(), route, bytes, sourceWebServer)
	if errReply != nil {
		http.Error(w, errReply.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(reply)
}
