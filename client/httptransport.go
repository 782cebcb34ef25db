package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/foomo/linkserver/pkg/handler"
	"github.com/pkg/errors"
)

type (
	httpTransport struct {
		client   *http.Client
		endpoint string
	}
	HTTPTransportOption func(*httpTransport)
)

// HTTPTransportWithClient use a custom http client, e.g. one with telemetry
func HTTPTransportWithClient(v *http.Client) HTTPTransportOption {
	return func(o *httpTransport) {
		o.client = v
	}
}

// NewHTTPTransport will create a new http transport for the given server.
// Caution: the provided server url is not validated, use NewHTTPClient!
func NewHTTPTransport(server string, opts ...HTTPTransportOption) transport {
	inst := &httpTransport{
		endpoint: strings.TrimSuffix(server, "/"),
		client:   defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

func (ht *httpTransport) shutdown() {
	ht.client.CloseIdleConnections()
}

func (ht *httpTransport) call(ctx context.Context, route handler.Route, request any, response any) error {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "could not marshal request")
	}
	req, err := http.NewRequestWithContext(ctx,
		http.MethodPost,
		ht.endpoint+"/"+string(route),
		bytes.NewBuffer(requestBytes),
	)
	if err != nil {
		return errors.Wrap(err, "could not create request")
	}
	req.Header.Set("Content-Type", "application/json")

	httpResponse, err := ht.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		return errors.Errorf("non 200 reply: %s", httpResponse.Status)
	}
	responseBytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return errors.Wrap(err, "could not read response")
	}
	return decodeReply(responseBytes, response)
}
