package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/briangreenhill/sharecounts/networks"
)

const (
	Name           = "facebook"
	DefaultBaseURL = "https://graph.facebook.com"
)

// Client fetches share counts from the Graph API.
type Client struct {
	http    *http.Client
	baseURL *url.URL

	appID     string
	appSecret string
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

// WithAppCredentials makes the client fetch an app access token with the
// client credentials grant and send it on every request.
func WithAppCredentials(appID, appSecret string) Option {
	return func(c *Client) { c.appID, c.appSecret = appID, appSecret }
}

func New(opts ...Option) *Client {
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
	}
	for _, o := range opts {
		o(c)
	}

	if c.appID != "" && c.appSecret != "" {
		cc := &clientcredentials.Config{
			ClientID:     c.appID,
			ClientSecret: c.appSecret,
			TokenURL:     c.baseURL.JoinPath("/oauth/access_token").String(),
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
		c.http = cc.Client(ctx)
	}
	return c
}

// Name implements networks.Adapter.
func (c *Client) Name() string { return Name }

// Fetch implements networks.Adapter. The count is the comment count plus the
// share count of the URL's Graph object.
func (c *Client) Fetch(ctx context.Context, pageURL string) (int, error) {
	var obj Object
	if err := c.getJSON(ctx, pageURL, &obj); err != nil {
		return 0, err
	}

	if obj.Share == nil || obj.Share.CommentCount == nil || obj.Share.ShareCount == nil {
		return 0, &networks.MalformedResponseError{Network: Name, URL: pageURL, Reason: "no well-formed share object in response"}
	}
	return *obj.Share.CommentCount + *obj.Share.ShareCount, nil
}

func (c *Client) newReq(ctx context.Context, pageURL string) (*http.Request, error) {
	u := *c.baseURL
	q := u.Query()
	q.Set("id", pageURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, pageURL string, out any) error {
	req, err := c.newReq(ctx, pageURL)
	if err != nil {
		return &networks.TransportError{Network: Name, URL: pageURL, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &networks.TransportError{Network: Name, URL: pageURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &networks.TransportError{Network: Name, URL: pageURL, Err: err}
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &networks.MalformedResponseError{Network: Name, URL: pageURL, Reason: err.Error()}
		}
		return nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &networks.TransportError{Network: Name, URL: pageURL, Err: fmt.Errorf("GET %s: %s: %s", req.URL.Path, resp.Status, string(b))}
	}
}

var _ networks.Adapter = (*Client)(nil)
