package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/foomo/linkserver/pkg/metrics"
	"github.com/foomo/linkserver/pkg/repo"
	"github.com/foomo/linkserver/requests"
	"github.com/foomo/linkserver/responses"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	sourceWebServer    = "webserver"
	sourceSocketServer = "socketserver"
)

// service executes routes against the repo, shared by all transports
type service struct {
	l    *zap.Logger
	repo *repo.Repo
}

func (s *service) handleRequest(ctx context.Context, route Route, jsonBytes []byte, source string) ([]byte, error) {
	start := time.Now()

	reply, err := s.executeRequest(ctx, route, jsonBytes)
	result := "success"
	if err != nil {
		result = "error"
	}

	metrics.ServiceRequestCounter.WithLabelValues(string(route), result, source).Inc()
	metrics.ServiceRequestDuration.WithLabelValues(string(route), result, source).Observe(time.Since(start).Seconds())

	return reply, err
}

func (s *service) executeRequest(ctx context.Context, route Route, jsonBytes []byte) (replyBytes []byte, err error) {
	var (
		reply             any
		apiErr            error
		jsonErr           error
		processIfJSONIsOk = func(err error, processingFunc func()) {
			if err != nil {
				jsonErr = err
				return
			}
			processingFunc()
		}
	)

	switch route {
	// RouteGetSiteMap is handled by the transports, the site map is
	// written directly to the http.ResponseWriter / net.Conn
	case RouteResolveLink:
		linkRequest := &requests.Link{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, linkRequest), func() {
			reply, apiErr = s.repo.ResolveLink(linkRequest)
		})
	case RouteResolveLinks:
		linksRequest := &requests.Links{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, linksRequest), func() {
			reply, apiErr = s.repo.ResolveLinks(linksRequest)
		})
	case RouteMatchPath:
		matchRequest := &requests.Match{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, matchRequest), func() {
			reply, apiErr = s.repo.MatchPath(matchRequest)
		})
	case RouteUpdate:
		updateRequest := &requests.Update{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, updateRequest), func() {
			reply = s.repo.Update(ctx)
		})
	default:
		reply = responses.NewError(responses.ErrorCodeUnknownHandler, "unknown handler: "+string(route))
	}

	// error handling
	if jsonErr != nil {
		s.l.Error("could not read incoming json", zap.Error(jsonErr))
		reply = responses.NewError(responses.ErrorCodeBadJSON, "could not read incoming json "+jsonErr.Error())
	} else if apiErr != nil {
		s.l.Error("an API error occurred", zap.Error(apiErr))
		reply = apiError(apiErr)
	}

	return s.encodeReply(reply)
}

// encodeReply takes an interface and encodes it as JSON
// it returns the resulting JSON and a marshalling error
func (s *service) encodeReply(reply any) (replyBytes []byte, err error) {
	replyBytes, err = json.Marshal(map[string]any{
		"reply": reply,
	})
	if err != nil {
		s.l.Error("could not encode reply", zap.Error(err))
	}
	return
}

func apiError(err error) *responses.Error {
	e := responses.NewError(responses.ErrorCodeAPI, err.Error())
	switch {
	case errors.Is(err, repo.ErrInvalidRequest):
		e.Status = http.StatusBadRequest
	case errors.Is(err, repo.ErrMountNotFound):
		e.Status = http.StatusNotFound
	case errors.Is(err, repo.ErrNotLoaded):
		e.Status = http.StatusServiceUnavailable
	}
	return e
}
