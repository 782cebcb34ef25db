package sitemap

import (
	"bytes"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config site map source document, one entry per mount alias
type Config struct {
	Mounts map[string]*MountConfig `json:"mounts" yaml:"mounts"`
}

// MountConfig binding of a host and path prefix to a site map
type MountConfig struct {
	Host string `json:"host" yaml:"host"`
	// Port 0 when not pinned
	Port   int    `json:"port" yaml:"port"`
	Scheme string `json:"scheme" yaml:"scheme"`
	// SchemeAgnostic links use the scheme of the current request
	SchemeAgnostic  bool   `json:"schemeAgnostic" yaml:"schemeAgnostic"`
	ContextPath     string `json:"contextPath" yaml:"contextPath"`
	ShowContextPath bool   `json:"showContextPath" yaml:"showContextPath"`
	MountPath       string `json:"mountPath" yaml:"mountPath"`
	// HomePage site map path rendered as the mount root
	HomePage string `json:"homePage" yaml:"homePage"`
	// NotFoundPath used when a link can not be resolved
	NotFoundPath string         `json:"notFoundPath" yaml:"notFoundPath"`
	SiteMap      []*EntryConfig `json:"siteMap" yaml:"siteMap"`
}

// EntryConfig one node of a site map
type EntryConfig struct {
	// ID defaults to the path of the entry
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// Name path segment, may be a wildcard
	Name                     string         `json:"name" yaml:"name"`
	ContentPath              string         `json:"contentPath,omitempty" yaml:"contentPath,omitempty"`
	Scheme                   string         `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	SchemeAgnostic           bool           `json:"schemeAgnostic,omitempty" yaml:"schemeAgnostic,omitempty"`
	ExcludedForLinkRewriting bool           `json:"excludedForLinkRewriting,omitempty" yaml:"excludedForLinkRewriting,omitempty"`
	Children                 []*EntryConfig `json:"children,omitempty" yaml:"children,omitempty"`
}

// Parse decodes a site map source. Documents starting with "{" are read as
// JSON, everything else as YAML.
func Parse(data []byte) (*Config, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty site map")
	}
	c := &Config{}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, c); err != nil {
			return nil, errors.Wrap(err, "failed to decode json site map")
		}
	} else if err := yaml.Unmarshal(trimmed, c); err != nil {
		return nil, errors.Wrap(err, "failed to decode yaml site map")
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid site map")
	}
	return c, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mounts, validation.Required),
	)
}

func (c *MountConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Scheme, validation.In("http", "https")),
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}
