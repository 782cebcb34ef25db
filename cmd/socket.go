package cmd

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/foomo/keel/service"
	"github.com/foomo/linkserver/pkg/handler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewSocketCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:               "socket <url>",
		Short:             "Start socket server",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: urlArgCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			svr := newServer(v)
			l := svr.Logger()

			r, err := newRepo(cmd.Context(), svr, v, args[0])
			if err != nil {
				return err
			}

			handle := handler.NewSocket(l.Named("inst.handler"), r)
			address := addressFlag(v)

			svr.AddServices(
				service.NewGoRoutine(l.Named("go.socket"), "socket", func(ctx context.Context, l *zap.Logger) error {
					return serveSocket(ctx, l, address, handle)
				}),
			)

			svr.Run()
			return nil
		},
	}

	flags := cmd.Flags()
	addAddressFlag(flags, v, "127.0.0.1:8081")
	addRepoFlags(flags, v)

	return cmd
}

func serveSocket(ctx context.Context, l *zap.Logger, address string, handle *handler.Socket) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	l.Info("started listening", zap.String("address", ln.Addr().String()))

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		// this blocks until connection or error
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.Error("could not accept connection", zap.Error(err))
			continue
		}

		// a goroutine handles conn so that the loop can accept other connections
		wg.Add(1)
		go func() {
			defer wg.Done()
			// unblock idle connections on shutdown
			stop := context.AfterFunc(ctx, func() {
				_ = conn.Close()
			})
			defer stop()
			l.Debug("accepted connection", zap.String("source", conn.RemoteAddr().String()))
			handle.Serve(ctx, conn)
			if err := conn.Close(); err != nil {
				l.Debug("failed to close connection", zap.Error(err))
			}
		}()
	}
}
