package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Source is a datasource.Source backed by one URL. Its name is the last
// path segment, so the extension in the URL selects the parser.
type Source struct {
	client *Client
	url    string
	name   string
}

// IsURL reports whether s looks like an http or https URL.
func IsURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// NewSource binds rawURL to c. The URL path must end in a file name.
func NewSource(c *Client, rawURL string) (*Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("httpds: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("httpds: unsupported scheme %q", u.Scheme)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || path.Ext(name) == "" {
		return nil, fmt.Errorf("httpds: %s does not name a file", rawURL)
	}
	return &Source{client: c, url: rawURL, name: name}, nil
}

// Name returns the file name taken from the URL path.
func (s *Source) Name() string { return s.name }

// URL returns the address the source fetches.
func (s *Source) URL() string { return s.url }

// Open downloads the file. Any status other than 200 is an error.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("httpds: GET %s: %s", s.url, resp.Status)
	}
	return resp.Body, nil
}
