package utils

import (
	"net/url"

	"github.com/pkg/errors"
)

// ParseHTTPURL parses str and requires an http(s) scheme and a host
func ParseHTTPURL(str string) (*url.URL, error) {
	u, err := url.Parse(str)
	if err != nil {
		return nil, errors.Wrap(err, "invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported scheme %q, use http or https", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.Errorf("missing host in %q", str)
	}
	return u, nil
}

func IsValidURL(str string) bool {
	_, err := ParseHTTPURL(str)
	return err == nil
}
