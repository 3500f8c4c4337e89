// Package registry talks to the crate registry HTTP API: reverse dependency
// listings, crate metadata and archive downloads.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/hochfrequenz/revdep-regress/internal/failure"
)

const (
	DefaultBaseURL   = "https://crates.io/api/v1"
	DefaultUserAgent = "revdep-regress (https://github.com/hochfrequenz/revdep-regress)"
)

// Config configures the registry client
type Config struct {
	BaseURL   string
	UserAgent string
	Debug     bool
}

// Client is a registry API client. It is safe for concurrent use.
type Client struct {
	config Config
	http   *http.Client
}

// New creates a registry client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		http: &http.Client{
			// Redirects are followed by hand, exactly once.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// CrateURL returns the API URL for a crate, optionally with a sub call.
func (c *Client) CrateURL(name string, call ...string) string {
	u := c.config.BaseURL + "/crates/" + url.PathEscape(name)
	for _, part := range call {
		u += "/" + part
	}
	return u
}

// reverseDepsResponse is the part of the reverse_dependencies payload we use.
type reverseDepsResponse struct {
	Dependencies []struct {
		CrateID string `json:"crate_id"`
	} `json:"dependencies"`
}

// ReverseDependencies lists the names of crates depending on name. Only the
// first response page is read.
func (c *Client) ReverseDependencies(ctx context.Context, name string) ([]string, error) {
	u := c.CrateURL(name, "reverse_dependencies")
	var resp reverseDepsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Dependencies))
	for _, d := range resp.Dependencies {
		names = append(names, d.CrateID)
	}
	if c.config.Debug {
		log.Printf("[registry] reverse deps of %s: %v", name, names)
	}
	return names, nil
}

// crateResponse is the part of the crate metadata payload we use.
type crateResponse struct {
	Versions []struct {
		Num string `json:"num"`
	} `json:"versions"`
}

// Versions lists every version string the registry reports for name.
func (c *Client) Versions(ctx context.Context, name string) ([]string, error) {
	u := c.CrateURL(name)
	var resp crateResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	nums := make([]string, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		nums = append(nums, v.Num)
	}
	return nums, nil
}

// Download fetches the source archive of one crate version.
func (c *Client) Download(ctx context.Context, name, version string) ([]byte, error) {
	return c.getBytes(ctx, c.CrateURL(name, url.PathEscape(version), "download"))
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	body, err := c.getBytes(ctx, u)
	if err != nil {
		return err
	}
	if !utf8.Valid(body) {
		return failure.UTF8(u)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return failure.JSON(u, err)
	}
	return nil
}

// getBytes performs a GET, following a single 302 once. Anything other than
// a final 200 is an error.
func (c *Client) getBytes(ctx context.Context, u string) ([]byte, error) {
	resp, body, err := c.do(ctx, u)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusFound {
		loc, err := resp.Location()
		if err != nil || loc.String() == "" {
			return nil, failure.HTTPStatus(u, resp.StatusCode, body)
		}
		if c.config.Debug {
			log.Printf("[registry] following 302 from %s to %s", u, loc)
		}
		u = loc.String()
		resp, body, err = c.do(ctx, u)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, failure.HTTPStatus(u, resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, u string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, failure.Network(u, err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	if c.config.Debug {
		log.Printf("[registry] GET %s", u)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, failure.Network(u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, failure.Network(u, fmt.Errorf("reading body: %w", err))
	}
	return resp, body, nil
}
