// Package googleplus scrapes the +1 count from the Google+ button markup.
// There is no API for the count, so the adapter extracts it from the
// fastbutton HTML.
package googleplus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/briangreenhill/sharecounts/networks"
)

const (
	Name           = "googleplus"
	DefaultBaseURL = "https://plusone.google.com"
	buttonPath     = "/_/+1/fastbutton"

	// responses are HTML pages; anything past this is not the button
	maxBodySize = 1 << 20
)

var countPattern = regexp.MustCompile(`,ld:\[[^,]*,\[\d+,(\d+),`)

// Client fetches +1 counts.
type Client struct {
	http    *http.Client
	baseURL *url.URL
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

func New(opts ...Option) *Client {
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{http: http.DefaultClient, baseURL: u}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

// Fetch implements networks.Adapter.
func (c *Client) Fetch(ctx context.Context, pageURL string) (int, error) {
	body, err := c.getBody(ctx, pageURL)
	if err != nil {
		return 0, err
	}
	if len(body) == 0 {
		return 0, &networks.MalformedResponseError{Network: Name, URL: pageURL, Reason: "no body in response"}
	}
	return ParseCount(pageURL, body)
}

// ParseCount extracts the +1 count from the button markup.
func ParseCount(pageURL string, body []byte) (int, error) {
	m := countPattern.FindSubmatch(body)
	if m == nil {
		return 0, &networks.MalformedResponseError{Network: Name, URL: pageURL, Reason: "no count in response"}
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, &networks.MalformedResponseError{Network: Name, URL: pageURL, Reason: err.Error()}
	}
	return n, nil
}

func (c *Client) newReq(ctx context.Context, pageURL string) (*http.Request, error) {
	u := c.baseURL.JoinPath(buttonPath)
	q := u.Query()
	q.Set("url", pageURL)
	u.RawQuery = q.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

func (c *Client) getBody(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := c.newReq(ctx, pageURL)
	if err != nil {
		return nil, &networks.TransportError{Network: Name, URL: pageURL, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &networks.TransportError{Network: Name, URL: pageURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &networks.TransportError{Network: Name, URL: pageURL, Err: fmt.Errorf("GET %s: %s", req.URL.Path, resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &networks.TransportError{Network: Name, URL: pageURL, Err: err}
	}
	return body, nil
}

var _ networks.Adapter = (*Client)(nil)
