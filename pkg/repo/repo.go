package repo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/foomo/linkserver/pkg/formatter"
	"github.com/foomo/linkserver/pkg/metrics"
	"github.com/foomo/linkserver/pkg/resolver"
	"github.com/foomo/linkserver/requests"
	"github.com/foomo/linkserver/responses"
	"github.com/foomo/linkserver/sitemap"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotLoaded      = errors.New("site map not loaded")
	ErrMountNotFound  = errors.New("mount not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// Repo site map repository
type (
	Repo struct {
		l                       *zap.Logger
		url                     string
		poll                    bool
		pollInterval            time.Duration
		pollVersion             string
		watch                   bool
		watchDebounce           time.Duration
		cacheSize               int
		onLoaded                func()
		loaded                  *atomic.Bool
		updating                atomic.Bool
		history                 *History
		notifier                Notifier
		httpClient              *http.Client
		resolver                *resolver.Resolver
		formatter               *formatter.Formatter
		snapshot                atomic.Pointer[Snapshot]
		updateInProgressChannel chan chan updateResponse
	}
	Option func(*Repo)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger, url string, history *History, opts ...Option) *Repo {
	inst := &Repo{
		l:                       l.Named("repo"),
		url:                     url,
		poll:                    false,
		loaded:                  &atomic.Bool{},
		pollInterval:            time.Minute,
		watchDebounce:           200 * time.Millisecond,
		cacheSize:               10000,
		history:                 history,
		httpClient:              http.DefaultClient,
		updateInProgressChannel: make(chan chan updateResponse),
	}

	for _, opt := range opts {
		opt(inst)
	}

	inst.resolver = resolver.New(inst.l)
	inst.formatter = formatter.New(inst.l)

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithHTTPClient(v *http.Client) Option {
	return func(o *Repo) {
		o.httpClient = v
	}
}

func WithPoll(v bool) Option {
	return func(o *Repo) {
		o.poll = v
	}
}

func WithPollInterval(v time.Duration) Option {
	return func(o *Repo) {
		o.pollInterval = v
	}
}

// WithWatch reloads local sources when the file changes
func WithWatch(v bool) Option {
	return func(o *Repo) {
		o.watch = v
	}
}

func WithWatchDebounce(v time.Duration) Option {
	return func(o *Repo) {
		o.watchDebounce = v
	}
}

// WithCacheSize number of resolved links kept per snapshot, 0 disables the cache
func WithCacheSize(v int) Option {
	return func(o *Repo) {
		o.cacheSize = v
	}
}

func WithNotifier(v Notifier) Option {
	return func(o *Repo) {
		o.notifier = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Getter
// ------------------------------------------------------------------------------------------------

func (r *Repo) Loaded() bool {
	return r.loaded.Load()
}

// Snapshot currently published snapshot, nil before the first load
func (r *Repo) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (r *Repo) OnLoaded(fn func()) {
	r.onLoaded = fn
}

// ResolveLink resolves a content path and renders its url. Paths without a
// matching site map entry yield a link to the mount's not found page.
func (r *Repo) ResolveLink(req *requests.Link) (*responses.Link, error) {
	if req == nil {
		return nil, errors.Wrap(ErrInvalidRequest, "request must not be nil")
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Wrapf(ErrInvalidRequest, "%s", err.Error())
	}
	s := r.Snapshot()
	if s == nil {
		return nil, ErrNotLoaded
	}
	if s.links == nil {
		return r.resolveLink(s, req)
	}
	link, found, err := s.links.GetOrCreate(newLinkKey(req), func(linkKey) (*responses.Link, error) {
		return r.resolveLink(s, req)
	})
	if err != nil {
		return nil, err
	}
	if found {
		metrics.LinkCacheCounter.WithLabelValues("hit").Inc()
	} else {
		metrics.LinkCacheCounter.WithLabelValues("miss").Inc()
	}
	return link, nil
}

// ResolveLinks resolves many links at once. Env and current page of the
// request are used for links that do not bring their own.
func (r *Repo) ResolveLinks(req *requests.Links) (map[string]*responses.Link, error) {
	if req == nil {
		return nil, errors.Wrap(ErrInvalidRequest, "request must not be nil")
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Wrapf(ErrInvalidRequest, "%s", err.Error())
	}
	var (
		errs  error
		links = make(map[string]*responses.Link, len(req.Links))
	)
	for id, linkReq := range req.Links {
		if linkReq == nil {
			errs = multierr.Append(errs, errors.Errorf("link %q: request must not be nil", id))
			continue
		}
		l := *linkReq
		if l.Env == nil {
			l.Env = req.Env
		}
		if l.Current == nil {
			l.Current = req.Current
		}
		link, err := r.ResolveLink(&l)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "link %q", id))
			continue
		}
		links[id] = link
	}
	if errs != nil {
		return nil, errs
	}
	return links, nil
}

// MatchPath finds the site map entry a request path addresses
func (r *Repo) MatchPath(req *requests.Match) (*responses.Match, error) {
	if req == nil {
		return nil, errors.Wrap(ErrInvalidRequest, "request must not be nil")
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Wrapf(ErrInvalidRequest, "%s", err.Error())
	}
	s := r.Snapshot()
	if s == nil {
		return nil, ErrNotLoaded
	}
	idx, ok := s.Indexes[req.Mount]
	if !ok {
		return nil, errors.Wrapf(ErrMountNotFound, "mount %q", req.Mount)
	}
	m := &responses.Match{
		Mount: req.Mount,
	}
	e, params, ok := idx.Mount().Match(req.Path)
	if !ok {
		r.l.Debug("no entry for path", zap.String("mount", req.Mount), zap.String("path", req.Path))
		return m, nil
	}
	m.Found = true
	m.EntryID = e.ID
	m.Template = e.Path()
	m.Params = params
	if b := idx.Binding(e); b != nil {
		if contentPath, ok := b.Expand(params); ok {
			m.ContentPath = contentPath
		}
	}
	return m, nil
}

// WriteSiteMapBytes writes the raw site map of the current snapshot to the
// provided writer. It serves from memory, falling back to storage only when
// nothing is loaded yet. The result is wrapped as service response, e.g:
// {"reply": <siteMap>}
func (r *Repo) WriteSiteMapBytes(ctx context.Context, w io.Writer) error {
	var data []byte
	if s := r.Snapshot(); s != nil {
		data = s.Source()
	}

	if len(data) == 0 {
		// fallback to storage (cold start or not yet loaded)
		var buf bytes.Buffer
		if err := r.history.GetCurrent(ctx, &buf); err != nil {
			return errors.Wrap(err, "failed to read site map from storage")
		}
		data = buf.Bytes()
	}

	cfg, err := sitemap.Parse(data)
	if err != nil {
		return errors.Wrap(err, "failed to decode site map")
	}
	return json.NewEncoder(w).Encode(map[string]any{
		"reply": cfg,
	})
}

func (r *Repo) Update(ctx context.Context) (updateResponse *responses.Update) {
	floatSeconds := func(nanoSeconds int64) float64 {
		return float64(nanoSeconds) / float64(1000000000)
	}

	r.l.Info("Update triggered")

	start := time.Now()
	updateRepotime, err := r.tryUpdate(ctx)
	updateResponse = &responses.Update{}
	updateResponse.Stats.RepoRuntime = floatSeconds(updateRepotime)

	if err != nil {
		updateResponse.Success = false
		updateResponse.Stats.NumberOfEntries = -1
		updateResponse.Stats.NumberOfTemplates = -1
		updateResponse.ErrorMessage = err.Error()
		if !errors.Is(err, ErrUpdateRejected) {
			r.l.Error("Failed to update site map", zap.Error(err))
		}
	} else {
		updateResponse.Success = true
		if s := r.Snapshot(); s != nil {
			updateResponse.Stats = s.Stats
			updateResponse.Stats.RepoRuntime = floatSeconds(updateRepotime)
		}
	}
	updateResponse.Stats.OwnRuntime = floatSeconds(time.Since(start).Nanoseconds()) - updateResponse.Stats.RepoRuntime
	return updateResponse
}

func (r *Repo) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	l := r.l.Named("start")

	up := make(chan bool, 1)
	g.Go(func() error {
		l.Debug("starting update routine")
		up <- true
		return r.UpdateRoutine(gCtx)
	})
	l.Debug("waiting for UpdateRoutine")
	<-up

	l.Debug("trying to restore previous site map")
	if err := r.tryToRestoreCurrent(gCtx); errors.Is(err, os.ErrNotExist) {
		l.Info("previous site map file does not exist")
	} else if err != nil {
		l.Warn("could not restore previous site map", zap.Error(err))
	} else {
		l.Info("restored previous site map")
	}

	if r.poll {
		g.Go(func() error {
			l.Debug("starting poll routine")
			return r.PollRoutine(gCtx)
		})
	}

	if r.watch {
		g.Go(func() error {
			l.Debug("starting watch routine")
			return r.WatchRoutine(gCtx)
		})
	}

	if !r.Loaded() {
		l.Debug("trying to update initial state")
		if resp := r.Update(gCtx); !resp.Success {
			l.Error("failed to update initial state",
				zap.String("error", resp.ErrorMessage),
				zap.Float64("own_runtime", resp.Stats.OwnRuntime),
				zap.Float64("repo_runtime", resp.Stats.RepoRuntime),
			)
		}
	}

	return g.Wait()
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (r *Repo) resolveLink(s *Snapshot, req *requests.Link) (*responses.Link, error) {
	kind, err := sitemap.ParseContentKind(req.Kind)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidRequest, "%s", err.Error())
	}
	idx, err := s.target(req)
	if err != nil {
		return nil, err
	}
	mount := idx.Mount()

	rreq := resolver.Request{
		Path: req.Path,
		Kind: kind,
		Mode: resolver.ModeContextual,
	}
	if req.Canonical {
		rreq.Mode = resolver.ModeCanonical
	} else if req.Current != nil && req.Current.Mount == mount.Alias {
		if e, params, ok := mount.Match(req.Current.Path); ok {
			rreq.Context = &resolver.Context{Entry: e, Params: params}
		}
	}

	link, ok := r.resolver.Resolve(idx, rreq)
	if !ok {
		metrics.LinkResolutionCounter.WithLabelValues(mount.Alias, "not_found").Inc()
		link = resolver.NewLiteral(mount.NotFoundPath)
		link.NotFound = true
	} else {
		metrics.LinkResolutionCounter.WithLabelValues(mount.Alias, "resolved").Inc()
	}

	rc := formatter.RequestContext{
		Scheme:     req.Env.Scheme,
		Host:       req.Env.Host,
		Port:       req.Env.Port,
		Preview:    req.Env.Preview,
		RenderHost: req.Env.RenderHost,
	}
	return &responses.Link{
		URL:                r.formatter.Format(link, mount, rc, req.FullyQualified),
		Path:               link.Path,
		Mount:              mount.Alias,
		EntryID:            link.EntryID(),
		RepresentsDocument: link.RepresentsDocument,
		RepresentsFolder:   link.RepresentsFolder,
		RepresentsIndex:    link.RepresentsIndex,
		NotFound:           link.NotFound,
		Params:             link.Params,
	}, nil
}
