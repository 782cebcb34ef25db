package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/foomo/linkserver/pkg/handler"
	"github.com/pkg/errors"
)

type socketTransport struct {
	connPool *connectionPool
}

// NewSocketTransport pooled transport for the socket handler
func NewSocketTransport(address string, connectionPoolSize int, waitTimeout time.Duration) transport {
	return &socketTransport{
		connPool: newConnectionPool(address, connectionPoolSize, waitTimeout),
	}
}

func (st *socketTransport) shutdown() {
	st.connPool.drain()
}

func (st *socketTransport) call(ctx context.Context, route handler.Route, request any, response any) error {
	jsonBytes, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "could not marshal request")
	}
	conn := st.connPool.get()
	if conn == nil {
		return errors.New("could not get a connection")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Time{})
	}

	// write header result will be like route:2{}
	jsonBytes = append([]byte(fmt.Sprintf("%s:%d", route, len(jsonBytes))), jsonBytes...)

	// send request
	if _, err := conn.Write(jsonBytes); err != nil {
		st.connPool.put(conn, err)
		return errors.Wrap(err, "failed to send request")
	}

	// read response, header is the length up to "{"
	reader := bufio.NewReader(conn)
	header, err := reader.ReadString('{')
	if err != nil {
		st.connPool.put(conn, err)
		return errors.Wrap(err, "an error occurred while reading the response")
	}
	responseLength, err := strconv.Atoi(strings.TrimSuffix(header, "{"))
	if err != nil || responseLength < 1 {
		err = errors.Errorf("could not read response length: %q", header)
		st.connPool.put(conn, err)
		return err
	}
	responseBytes := make([]byte, responseLength)
	responseBytes[0] = '{'
	if _, err := io.ReadFull(reader, responseBytes[1:]); err != nil {
		st.connPool.put(conn, err)
		return errors.Wrap(err, "an error occurred while reading the response")
	}
	st.connPool.put(conn, nil)

	return decodeReply(responseBytes, response)
}
