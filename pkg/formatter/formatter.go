// Package formatter renders resolved links as URLs for a target mount
package formatter

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/foomo/linkserver/pkg/resolver"
	"github.com/foomo/linkserver/sitemap"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
)

// RenderHostParam query parameter naming the host a preview should render
const RenderHostParam = "render_host"

var externalPrefixes = []string{"http:", "https:", "mailto:", "tel:", "ftp:", "//"}

type (
	// RequestContext the request a link is rendered for
	RequestContext struct {
		Scheme string
		Host   string
		Port   int
		// Preview administrative or preview request
		Preview bool
		// RenderHost host the preview is currently rendering
		RenderHost string
	}
	// Formatter holds no mutable state and is safe for concurrent use
	Formatter struct {
		l *zap.Logger
	}
	// Link a resolved link bound to its target mount
	Link struct {
		*resolver.ResolvedLink
		Mount     *sitemap.Mount
		formatter *Formatter
	}
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger) *Formatter {
	return &Formatter{
		l: l.Named("formatter"),
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Bind a resolved link to the mount it will be rendered for
func (f *Formatter) Bind(link *resolver.ResolvedLink, mount *sitemap.Mount) *Link {
	return &Link{
		ResolvedLink: link,
		Mount:        mount,
		formatter:    f,
	}
}

// ToURLForm renders the link for rc
func (l *Link) ToURLForm(rc RequestContext, fullyQualified bool) string {
	return l.formatter.Format(l.ResolvedLink, l.Mount, rc, fullyQualified)
}

// Format renders link for a request to the given mount. Links are relative
// to the host unless fullyQualified is set or the host, pinned port or
// scheme of the target differ from the request.
func (f *Formatter) Format(link *resolver.ResolvedLink, mount *sitemap.Mount, rc RequestContext, fullyQualified bool) string {
	if link == nil {
		link = resolver.NewLiteral("")
	}
	if link.Entry == nil && isExternal(link.Path) {
		return escapeExternal(link.Path)
	}

	var (
		rel         = strings.Trim(link.Path, sitemap.PathSeparator)
		scheme      = f.Scheme(link, mount, rc)
		currentHost = normalizeHost(rc.Host)
		host        = normalizeHost(mount.Host)
	)
	if rel == mount.HomePage {
		rel = ""
	}
	if host == "" {
		host = currentHost
	}
	crossHost := host != currentHost

	fq := fullyQualified ||
		crossHost ||
		(mount.Port != 0 && mount.Port != rc.Port) ||
		scheme != requestScheme(rc)

	var b strings.Builder
	if fq {
		port := mount.Port
		// the request port only means something for the request scheme
		if port == 0 && !crossHost && scheme == requestScheme(rc) {
			port = rc.Port
		}
		b.WriteString(scheme)
		b.WriteString("://")
		b.WriteString(host)
		if port != 0 && port != defaultPort(scheme) {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(port))
		}
	}
	b.WriteString(f.path(rel, mount, rc))

	if rc.Preview && rc.RenderHost != "" && normalizeHost(rc.RenderHost) != host {
		b.WriteString("?")
		b.WriteString(url.Values{RenderHostParam: []string{host}}.Encode())
	}
	return b.String()
}

// Scheme of a link: agnostic entries follow the request, fixed entries use
// their scheme, everything else falls back to the mount
func (f *Formatter) Scheme(link *resolver.ResolvedLink, mount *sitemap.Mount, rc RequestContext) string {
	if link != nil && link.Entry != nil {
		switch link.Entry.Scheme.Kind {
		case sitemap.SchemeAgnostic:
			return requestScheme(rc)
		case sitemap.SchemeFixed:
			return link.Entry.Scheme.Scheme
		}
	}
	if mount.SchemeAgnostic && rc.Scheme != "" {
		return requestScheme(rc)
	}
	if mount.Scheme == "" {
		return sitemap.DefaultScheme
	}
	return mount.Scheme
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (f *Formatter) path(rel string, mount *sitemap.Mount, rc RequestContext) string {
	base := mount.MountPath
	if rc.Preview || mount.ShowContextPath {
		base = mount.ContextPath + base
	}
	if rel == "" {
		if base == "" {
			return sitemap.PathSeparator
		}
		return base
	}
	parts := strings.Split(rel, sitemap.PathSeparator)
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return base + sitemap.PathSeparator + strings.Join(parts, sitemap.PathSeparator)
}

func isExternal(p string) bool {
	lower := strings.ToLower(p)
	for _, prefix := range externalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func escapeExternal(p string) string {
	u, err := url.Parse(strings.TrimSpace(p))
	if err != nil {
		return p
	}
	return u.String()
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

func requestScheme(rc RequestContext) string {
	if rc.Scheme == "" {
		return sitemap.DefaultScheme
	}
	return strings.ToLower(rc.Scheme)
}

func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}
