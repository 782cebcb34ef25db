package handler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/foomo/linkserver/pkg/metrics"
	"github.com/foomo/linkserver/pkg/repo"
	"github.com/foomo/linkserver/responses"
	"go.uber.org/zap"
)

const (
	// maxHeaderLength route names are short, anything longer is garbage
	maxHeaderLength = 64
	// maxJSONLength upper bound of a single request body
	maxJSONLength = 16 << 20
)

var errHeaderTooLong = errors.New("header too long")

type Socket struct {
	service
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// NewSocket returns a shiny new socket server
func NewSocket(l *zap.Logger, repo *repo.Repo) *Socket {
	return &Socket{
		service: service{
			l:    l.Named("socket"),
			repo: repo,
		},
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Serve answers requests framed as "route:length{json}" until the client
// closes the connection. Replies are framed as "length{json}".
func (h *Socket) Serve(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	defer func() {
		if r := recover(); r != nil {
			h.l.Error("panic in handle connection", zap.String("error", fmt.Sprint(r)))
		}
	}()

	h.l.Debug("handle connection", zap.String("remote", remote))
	metrics.NumSocketsGauge.WithLabelValues(remote).Inc()
	defer metrics.NumSocketsGauge.WithLabelValues(remote).Dec()

	reader := bufio.NewReader(conn)
	for {
		// let us read until we find "{"
		header, readErr := readHeader(reader)
		if readErr != nil && !errors.Is(readErr, errHeaderTooLong) {
			if !errors.Is(readErr, io.EOF) {
				h.l.Debug("looks like the client closed the connection", zap.Error(readErr))
			}
			return
		}
		route, jsonLength, headerErr := h.extractRouteAndJSONLength(header)
		if readErr != nil {
			headerErr = readErr
		}
		if headerErr != nil {
			h.l.Error("invalid request could not read header", zap.Error(headerErr))
			encodedErr, encodingErr := h.encodeReply(responses.NewError(responses.ErrorCodeBadHeader, "invalid header "+headerErr.Error()))
			if encodingErr == nil {
				h.writeResponse(conn, encodedErr)
			} else {
				h.l.Error("could not respond to invalid request", zap.Error(encodingErr))
			}
			return
		}
		h.l.Debug("found json", zap.Int("length", jsonLength))

		jsonBytes := make([]byte, jsonLength)
		// that is "{"
		jsonBytes[0] = '{'
		if _, err := io.ReadFull(reader, jsonBytes[1:]); err != nil {
			h.l.Error("could not read json - giving up with this client connection", zap.Error(err))
			return
		}

		h.writeResponse(conn, h.execute(ctx, route, jsonBytes))
		// note: connection remains open
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// readHeader reads up to and including the opening "{" of the body. It never
// buffers more than maxHeaderLength bytes.
func readHeader(reader *bufio.Reader) (string, error) {
	var header strings.Builder
	for {
		c, err := reader.ReadByte()
		if err != nil {
			return "", err
		}
		if c == '{' {
			return header.String(), nil
		}
		if header.Len() >= maxHeaderLength {
			return "", errHeaderTooLong
		}
		header.WriteByte(c)
	}
}

func (h *Socket) extractRouteAndJSONLength(header string) (route Route, jsonLength int, err error) {
	if len(header) > maxHeaderLength {
		return "", 0, errHeaderTooLong
	}
	headerParts := strings.Split(header, ":")
	if len(headerParts) != 2 {
		return "", 0, errors.New("invalid header")
	}
	jsonLength, err = strconv.Atoi(headerParts[1])
	if err != nil {
		return "", 0, fmt.Errorf("could not parse length in header: %q", header)
	}
	if jsonLength < 1 {
		return "", 0, fmt.Errorf("can not read empty json: %q", header)
	}
	if jsonLength > maxJSONLength {
		return "", 0, fmt.Errorf("json too large: %q", header)
	}
	return Route(headerParts[0]), jsonLength, nil
}

func (h *Socket) execute(ctx context.Context, route Route, jsonBytes []byte) (reply []byte) {
	h.l.Debug("incoming json buffer", zap.Int("length", len(jsonBytes)))

	if route == RouteGetSiteMap {
		var b bytes.Buffer
		if err := h.repo.WriteSiteMapBytes(ctx, &b); err != nil {
			h.l.Error("could not write site map", zap.Error(err))
			reply, _ = h.encodeReply(apiError(err))
			return reply
		}
		return b.Bytes()
	}

	reply, handlingError := h.handleRequest(ctx, route, jsonBytes, sourceSocketServer)
	if handlingError != nil {
		h.l.Error("socket execute failed", zap.Error(handlingError))
	}
	return reply
}

func (h *Socket) writeResponse(conn net.Conn, reply []byte) {
	headerBytes := []byte(strconv.Itoa(len(reply)))
	reply = append(headerBytes, reply...)
	h.l.Debug("replying", zap.Int("length", len(reply)))
	n, writeError := conn.Write(reply)
	if writeError != nil {
		h.l.Error("could not write reply", zap.Error(writeError))
		return
	}
	if n < len(reply) {
		h.l.Error("write too short",
			zap.Int("got", n),
			zap.Int("expected", len(reply)),
		)
		return
	}
	h.l.Debug("replied. waiting for next request on open connection")
}
