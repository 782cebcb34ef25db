package cmd

import (
	"context"

	"github.com/foomo/keel"
	"github.com/foomo/keel/healthz"
	keelhttp "github.com/foomo/keel/net/http"
	"github.com/foomo/keel/service"
	"github.com/foomo/linkserver/pkg/notify"
	"github.com/foomo/linkserver/pkg/repo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newServer(v *viper.Viper) *keel.Server {
	return keel.NewServer(
		keel.WithHTTPPrometheusService(servicePrometheusEnabledFlag(v)),
		keel.WithHTTPHealthzService(serviceHealthzEnabledFlag(v)),
		keel.WithPrometheusMeter(servicePrometheusEnabledFlag(v)),
		keel.WithGracefulPeriod(gracefulPeriodFlag(v)),
		keel.WithOTLPGRPCTracer(otelEnabledFlag(v)),
		keel.WithHTTPPProfService(servicePProfEnabledFlag(v)),
	)
}

// newRepo creates the repo for url and registers its routine, health
// checks and closers on svr
func newRepo(ctx context.Context, svr *keel.Server, v *viper.Viper, url string) (*repo.Repo, error) {
	l := svr.Logger()

	storage, err := repo.NewStorage(ctx, l.Named("inst.storage"),
		storageTypeFlag(v),
		historyDirFlag(v),
		storageBlobBucketFlag(v),
		storageBlobPrefixFlag(v),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage")
	}

	history, err := repo.NewHistory(l.Named("inst.history"),
		repo.HistoryWithStorage(storage),
		repo.HistoryWithHistoryDir(historyDirFlag(v)),
		repo.HistoryWithHistoryLimit(historyLimitFlag(v)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create history")
	}
	svr.AddClosers(func(ctx context.Context) error {
		return history.Close()
	})

	opts := []repo.Option{
		repo.WithHTTPClient(
			keelhttp.NewHTTPClient(
				keelhttp.HTTPClientWithTimeout(repositoryTimeoutFlag(v)),
				keelhttp.HTTPClientWithTelemetry(),
			),
		),
		repo.WithPoll(pollFlag(v)),
		repo.WithPollInterval(pollIntervalFlag(v)),
		repo.WithWatch(watchFlag(v)),
		repo.WithWatchDebounce(watchDebounceFlag(v)),
		repo.WithCacheSize(cacheSizeFlag(v)),
	}

	if natsURL := natsURLFlag(v); natsURL != "" {
		notifier, err := notify.NewNATS(l, natsURL, notify.NATSWithSubject(natsSubjectFlag(v)))
		if err != nil {
			return nil, err
		}
		svr.AddClosers(func(ctx context.Context) error {
			return notifier.Close()
		})
		opts = append(opts, repo.WithNotifier(notifier))
	}

	r := repo.New(l.Named("inst.repo"), url, history, opts...)

	isLoadedHealtherFn := healthz.NewHealthzerFn(func(ctx context.Context) error {
		if !r.Loaded() {
			return errors.New("repo not loaded yet")
		}
		return nil
	})
	svr.AddStartupHealthzers(isLoadedHealtherFn)
	svr.AddReadinessHealthzers(isLoadedHealtherFn)

	svr.AddServices(
		service.NewGoRoutine(l.Named("go.repo"), "repo", func(ctx context.Context, l *zap.Logger) error {
			return r.Start(ctx)
		}),
	)
	return r, nil
}

func urlArgCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var comps []string
	if len(args) == 0 {
		comps = cobra.AppendActiveHelp(comps, "You must specify the URL or file of the site map")
	} else {
		comps = cobra.AppendActiveHelp(comps, "This command does not take any more arguments")
	}
	return comps, cobra.ShellCompDirectiveNoFileComp
}
