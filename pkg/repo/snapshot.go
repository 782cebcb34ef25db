package repo

import (
	"sort"
	"strings"
	"time"

	"github.com/bep/lazycache"
	"github.com/foomo/linkserver/pkg/index"
	"github.com/foomo/linkserver/requests"
	"github.com/foomo/linkserver/responses"
	"github.com/foomo/linkserver/sitemap"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type (
	// Snapshot immutable result of one site map build. Readers get the
	// current snapshot without locking; updates replace it as a whole.
	Snapshot struct {
		RunID   string
		Created time.Time
		Indexes map[string]*index.Index
		Stats   responses.Stats
		source  []byte
		aliases []string
		// links resolved links, shared between callers and never modified
		links *lazycache.Cache[linkKey, *responses.Link]
	}
	linkKey struct {
		mount          string
		path           string
		kind           string
		canonical      bool
		fullyQualified bool
		currentMount   string
		currentPath    string
		scheme         string
		host           string
		port           int
		preview        bool
		renderHost     string
	}
)

// newSnapshot parses source and builds the index of every mount. Broken
// mounts fail the build, broken entries are only counted as warnings.
func newSnapshot(l *zap.Logger, runID string, source []byte, cacheSize int) (*Snapshot, error) {
	cfg, err := sitemap.Parse(source)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{
		RunID:   runID,
		Created: time.Now(),
		Indexes: make(map[string]*index.Index, len(cfg.Mounts)),
		source:  source,
	}
	var errs error
	for alias, mc := range cfg.Mounts {
		m, err := sitemap.NewMount(alias, mc)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		idx := index.New(l, m)
		s.Indexes[alias] = idx
		s.aliases = append(s.aliases, alias)
		s.Stats.NumberOfEntries += m.Len()
		s.Stats.NumberOfTemplates += idx.Len()
		s.Stats.NumberOfWarnings += len(multierr.Errors(idx.Warnings()))
	}
	if errs != nil {
		return nil, errs
	}
	sort.Strings(s.aliases)
	s.Stats.NumberOfMounts = len(s.Indexes)
	if cacheSize > 0 {
		s.links = lazycache.New[linkKey, *responses.Link](lazycache.Options{MaxEntries: cacheSize})
	}
	return s, nil
}

// Aliases sorted mount aliases
func (s *Snapshot) Aliases() []string {
	return s.aliases
}

// Source raw site map the snapshot was built from
func (s *Snapshot) Source() []byte {
	return s.source
}

// target mount of a link: explicit, the current mount or the mount serving
// the requested host
func (s *Snapshot) target(req *requests.Link) (*index.Index, error) {
	alias := req.Mount
	if alias == "" && req.Current != nil {
		alias = req.Current.Mount
	}
	if alias != "" {
		idx, ok := s.Indexes[alias]
		if !ok {
			return nil, errors.Wrapf(ErrMountNotFound, "mount %q", alias)
		}
		return idx, nil
	}
	if req.Env != nil {
		host := strings.ToLower(req.Env.Host)
		for _, a := range s.aliases {
			if s.Indexes[a].Mount().Host == host {
				return s.Indexes[a], nil
			}
		}
	}
	if len(s.aliases) == 1 {
		return s.Indexes[s.aliases[0]], nil
	}
	return nil, errors.Wrap(ErrMountNotFound, "no mount for request")
}

func newLinkKey(req *requests.Link) linkKey {
	k := linkKey{
		mount:          req.Mount,
		path:           req.Path,
		kind:           req.Kind,
		canonical:      req.Canonical,
		fullyQualified: req.FullyQualified,
	}
	if req.Current != nil {
		k.currentMount = req.Current.Mount
		k.currentPath = req.Current.Path
	}
	if req.Env != nil {
		k.scheme = req.Env.Scheme
		k.host = req.Env.Host
		k.port = req.Env.Port
		k.preview = req.Env.Preview
		k.renderHost = req.Env.RenderHost
	}
	return k
}
