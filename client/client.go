package client

import (
	"context"
	"net/http"
	"time"

	"github.com/foomo/linkserver/pkg/handler"
	"github.com/foomo/linkserver/pkg/utils"
	"github.com/foomo/linkserver/requests"
	"github.com/foomo/linkserver/responses"
	"github.com/foomo/linkserver/sitemap"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client a link server client
type Client struct {
	t transport
}

// New client on top of a transport
func New(t transport) *Client {
	return &Client{
		t: t,
	}
}

// NewHTTPClient client for the http handler mounted at server, e.g.
// http://linkserver:8080/linkserver
func NewHTTPClient(server string, opts ...HTTPTransportOption) (*Client, error) {
	if _, err := utils.ParseHTTPURL(server); err != nil {
		return nil, errors.Wrap(err, "invalid server url")
	}
	return New(NewHTTPTransport(server, opts...)), nil
}

// NewSocketClient client for the socket handler at address using a pool of
// connectionPoolSize connections
func NewSocketClient(address string, connectionPoolSize int, waitTimeout time.Duration) (*Client, error) {
	if address == "" {
		return nil, errors.New("empty address")
	}
	if connectionPoolSize < 1 {
		return nil, errors.New("connection pool size must be positive")
	}
	if waitTimeout <= 0 {
		return nil, errors.New("wait timeout must be positive")
	}
	return New(NewSocketTransport(address, connectionPoolSize, waitTimeout)), nil
}

// ResolveLink resolve a single link
func (c *Client) ResolveLink(ctx context.Context, request *requests.Link) (*responses.Link, error) {
	response := &responses.Link{}
	if err := c.t.call(ctx, handler.RouteResolveLink, request, response); err != nil {
		return nil, err
	}
	return response, nil
}

// ResolveLinks resolve many links with one call
func (c *Client) ResolveLinks(ctx context.Context, request *requests.Links) (map[string]*responses.Link, error) {
	response := map[string]*responses.Link{}
	if err := c.t.call(ctx, handler.RouteResolveLinks, request, &response); err != nil {
		return nil, err
	}
	return response, nil
}

// MatchPath find the site map entry of a request path
func (c *Client) MatchPath(ctx context.Context, mount, path string) (*responses.Match, error) {
	response := &responses.Match{}
	if err := c.t.call(ctx, handler.RouteMatchPath, &requests.Match{Mount: mount, Path: path}, response); err != nil {
		return nil, err
	}
	return response, nil
}

// GetSiteMap the site map the server is currently serving
func (c *Client) GetSiteMap(ctx context.Context) (*sitemap.Config, error) {
	response := &sitemap.Config{}
	if err := c.t.call(ctx, handler.RouteGetSiteMap, &requests.SiteMap{}, response); err != nil {
		return nil, err
	}
	return response, nil
}

// Update tell the server to update itself
func (c *Client) Update(ctx context.Context) (*responses.Update, error) {
	response := &responses.Update{}
	if err := c.t.call(ctx, handler.RouteUpdate, &requests.Update{}, response); err != nil {
		return nil, err
	}
	return response, nil
}

// Close releases the connections of the transport
func (c *Client) Close() {
	c.t.shutdown()
}

// decodeReply unwraps {"reply": ...} into response; error replies are
// returned as responses.Error
func decodeReply(data []byte, response any) error {
	envelope := struct {
		Reply jsoniter.RawMessage `json:"reply"`
	}{}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return errors.Wrap(err, "could not unmarshal response")
	}
	remoteErr := responses.Error{}
	if err := json.Unmarshal(envelope.Reply, &remoteErr); err == nil && remoteErr.Code != 0 && remoteErr.Message != "" {
		return remoteErr
	}
	if err := json.Unmarshal(envelope.Reply, response); err != nil {
		return errors.Wrap(err, "could not unmarshal reply")
	}
	return nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
