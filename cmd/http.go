package cmd

import (
	"github.com/foomo/keel/net/http/middleware"
	"github.com/foomo/keel/service"
	"github.com/foomo/linkserver/pkg/handler"
	"github.com/spf13/cobra"
)

func NewHTTPCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:               "http <url>",
		Short:             "Start http server",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: urlArgCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			svr := newServer(v)
			l := svr.Logger()

			r, err := newRepo(cmd.Context(), svr, v, args[0])
			if err != nil {
				return err
			}

			svr.AddServices(
				service.NewHTTP(l.Named("svc.http"), "http", addressFlag(v),
					handler.NewHTTP(l.Named("inst.handler"), r, handler.WithBasePath(basePathFlag(v))),
					middleware.Telemetry(),
					middleware.Logger(),
					middleware.GZip(middleware.GZipWithLevel(gzipLevelFlag(v))),
					middleware.Recover(),
				),
			)

			svr.Run()
			return nil
		},
	}

	flags := cmd.Flags()
	addAddressFlag(flags, v, ":8080")
	addBasePathFlag(flags, v)
	addGzipLevelFlag(flags, v)
	addRepoFlags(flags, v)

	return cmd
}
