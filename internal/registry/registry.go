// Package registry confirms that a pinned dependency version is already
// visible in the package registry before a dependent package is released.
//
// Every failure mode — transport, HTTP status, JSON shape — is treated as
// "not available" (fail-closed): a dependent package must never be released
// against an unverified upstream.
package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Checker queries a PyPI-compatible JSON API.
type Checker struct {
	// BaseURL is the metadata endpoint prefix, e.g. "https://pypi.org/pypi".
	BaseURL string

	// Client defaults to a client with a modest timeout when nil.
	Client *http.Client
}

// metadata mirrors the only field of the registry response we consume.
type metadata struct {
	Releases map[string]json.RawMessage `json:"releases"`
}

// defaultTimeout bounds a single registry query.
const defaultTimeout = 15 * time.Second

// Available reports whether version of project is among its published
// releases. Any error on the way to a positive answer yields false.
func (c Checker) Available(project, version string) bool {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	endpoint := fmt.Sprintf("%s/%s/json", c.BaseURL, url.PathEscape(project))
	resp, err := client.Get(endpoint)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var meta metadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return false
	}

	_, ok := meta.Releases[version]
	return ok
}
