package cmd

import (
	"time"

	"github.com/foomo/linkserver/pkg/notify"
	"github.com/foomo/linkserver/pkg/repo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func logLevelFlag(v *viper.Viper) string {
	return v.GetString("log.level")
}

func addLogLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-level", "info", "log level")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func logFormatFlag(v *viper.Viper) string {
	return v.GetString("log.format")
}

func addLogFormatFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-format", "json", "log format")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}

func addressFlag(v *viper.Viper) string {
	return v.GetString("address")
}

func addAddressFlag(flags *pflag.FlagSet, v *viper.Viper, value string) {
	flags.String("address", value, "Address to bind to (host:port)")
	_ = v.BindPFlag("address", flags.Lookup("address"))
	_ = v.BindEnv("address", "LINKSERVER_ADDRESS")
}

func basePathFlag(v *viper.Viper) string {
	return v.GetString("base_path")
}

func addBasePathFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("base-path", "/linkserver", "Base path to export the webserver on")
	_ = v.BindPFlag("base_path", flags.Lookup("base-path"))
	_ = v.BindEnv("base_path", "LINKSERVER_BASE_PATH")
}

func pollFlag(v *viper.Viper) bool {
	return v.GetBool("poll")
}

func addPollFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("poll", false, "If true, the url arg points to a document holding the url of the latest site map")
	_ = v.BindPFlag("poll", flags.Lookup("poll"))
	_ = v.BindEnv("poll", "LINKSERVER_POLL")
}

func pollIntervalFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("poll_interval")
}

func addPollIntervalFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("poll-interval", time.Minute, "Specifies the poll interval")
	_ = v.BindPFlag("poll_interval", flags.Lookup("poll-interval"))
	_ = v.BindEnv("poll_interval", "LINKSERVER_POLL_INTERVAL")
}

func watchFlag(v *viper.Viper) bool {
	return v.GetBool("watch")
}

func addWatchFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("watch", false, "Reload a local site map file when it changes")
	_ = v.BindPFlag("watch", flags.Lookup("watch"))
	_ = v.BindEnv("watch", "LINKSERVER_WATCH")
}

func watchDebounceFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("watch_debounce")
}

func addWatchDebounceFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("watch-debounce", 200*time.Millisecond, "Quiet period before a changed site map file is loaded")
	_ = v.BindPFlag("watch_debounce", flags.Lookup("watch-debounce"))
	_ = v.BindEnv("watch_debounce", "LINKSERVER_WATCH_DEBOUNCE")
}

func cacheSizeFlag(v *viper.Viper) int {
	return v.GetInt("cache.size")
}

func addCacheSizeFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("cache-size", 10000, "Number of resolved links cached per site map, 0 disables the cache")
	_ = v.BindPFlag("cache.size", flags.Lookup("cache-size"))
	_ = v.BindEnv("cache.size", "LINKSERVER_CACHE_SIZE")
}

func historyDirFlag(v *viper.Viper) string {
	return v.GetString("history.dir")
}

func addHistoryDirFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("history-dir", "/var/lib/linkserver", "Where to put my data")
	_ = v.BindPFlag("history.dir", flags.Lookup("history-dir"))
	_ = v.BindEnv("history.dir", "LINKSERVER_HISTORY_DIR")
}

func historyLimitFlag(v *viper.Viper) int {
	return v.GetInt("history.limit")
}

func addHistoryLimitFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("history-limit", 2, "Number of history records to keep")
	_ = v.BindPFlag("history.limit", flags.Lookup("history-limit"))
	_ = v.BindEnv("history.limit", "LINKSERVER_HISTORY_LIMIT")
}

func storageTypeFlag(v *viper.Viper) string {
	return v.GetString("storage.type")
}

func addStorageTypeFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-type", repo.StorageTypeFilesystem, "History storage backend (filesystem, blob)")
	_ = v.BindPFlag("storage.type", flags.Lookup("storage-type"))
	_ = v.BindEnv("storage.type", "LINKSERVER_STORAGE_TYPE")
}

func storageBlobBucketFlag(v *viper.Viper) string {
	return v.GetString("storage.blob.bucket")
}

func addStorageBlobBucketFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-blob-bucket", "", "Blob bucket url (gs://, file://, mem://)")
	_ = v.BindPFlag("storage.blob.bucket", flags.Lookup("storage-blob-bucket"))
	_ = v.BindEnv("storage.blob.bucket", "LINKSERVER_STORAGE_BLOB_BUCKET")
}

func storageBlobPrefixFlag(v *viper.Viper) string {
	return v.GetString("storage.blob.prefix")
}

func addStorageBlobPrefixFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-blob-prefix", "", "Key prefix inside the blob bucket")
	_ = v.BindPFlag("storage.blob.prefix", flags.Lookup("storage-blob-prefix"))
	_ = v.BindEnv("storage.blob.prefix", "LINKSERVER_STORAGE_BLOB_PREFIX")
}

func repositoryTimeoutFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("repository.timeout")
}

func addRepositoryTimeoutFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("repository-timeout", 2*time.Minute, "Timeout for fetching the site map")
	_ = v.BindPFlag("repository.timeout", flags.Lookup("repository-timeout"))
	_ = v.BindEnv("repository.timeout", "LINKSERVER_REPOSITORY_TIMEOUT")
}

func natsURLFlag(v *viper.Viper) string {
	return v.GetString("nats.url")
}

func addNATSURLFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("nats-url", "", "Publish site map updates to this nats server")
	_ = v.BindPFlag("nats.url", flags.Lookup("nats-url"))
	_ = v.BindEnv("nats.url", "LINKSERVER_NATS_URL")
}

func natsSubjectFlag(v *viper.Viper) string {
	return v.GetString("nats.subject")
}

func addNATSSubjectFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("nats-subject", notify.DefaultSubject, "Subject of site map update notifications")
	_ = v.BindPFlag("nats.subject", flags.Lookup("nats-subject"))
	_ = v.BindEnv("nats.subject", "LINKSERVER_NATS_SUBJECT")
}

func gzipLevelFlag(v *viper.Viper) int {
	return v.GetInt("gzip.level")
}

func addGzipLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("gzip-level", 6, "Compression level of http responses")
	_ = v.BindPFlag("gzip.level", flags.Lookup("gzip-level"))
	_ = v.BindEnv("gzip.level", "LINKSERVER_GZIP_LEVEL")
}

func gracefulPeriodFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("graceful_period")
}

func addGracefulPeriodFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("graceful-period", 0, "Time to wait for in flight requests on shutdown")
	_ = v.BindPFlag("graceful_period", flags.Lookup("graceful-period"))
	_ = v.BindEnv("graceful_period", "LINKSERVER_GRACEFUL_PERIOD")
}

func serviceHealthzEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.healthz.enabled")
}

func addServiceHealthzEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-healthz-enabled", false, "Enable healthz service")
	_ = v.BindPFlag("service.healthz.enabled", flags.Lookup("service-healthz-enabled"))
}

func servicePrometheusEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.prometheus.enabled")
}

func addServicePrometheusEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-prometheus-enabled", false, "Enable prometheus service")
	_ = v.BindPFlag("service.prometheus.enabled", flags.Lookup("service-prometheus-enabled"))
}

func servicePProfEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.pprof.enabled")
}

func addServicePProfEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-pprof-enabled", false, "Enable pprof service")
	_ = v.BindPFlag("service.pprof.enabled", flags.Lookup("service-pprof-enabled"))
}

func otelEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("otel.enabled")
}

func addOtelEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("otel-enabled", false, "Enable otel service")
	_ = v.BindPFlag("otel.enabled", flags.Lookup("otel-enabled"))
	_ = v.BindEnv("otel.enabled", "OTEL_ENABLED")
}

// addRepoFlags flags shared by every command serving a repo
func addRepoFlags(flags *pflag.FlagSet, v *viper.Viper) {
	addPollFlag(flags, v)
	addPollIntervalFlag(flags, v)
	addWatchFlag(flags, v)
	addWatchDebounceFlag(flags, v)
	addCacheSizeFlag(flags, v)
	addHistoryDirFlag(flags, v)
	addHistoryLimitFlag(flags, v)
	addStorageTypeFlag(flags, v)
	addStorageBlobBucketFlag(flags, v)
	addStorageBlobPrefixFlag(flags, v)
	addRepositoryTimeoutFlag(flags, v)
	addNATSURLFlag(flags, v)
	addNATSSubjectFlag(flags, v)
	addGracefulPeriodFlag(flags, v)
	addOtelEnabledFlag(flags, v)
	addServiceHealthzEnabledFlag(flags, v)
	addServicePrometheusEnabledFlag(flags, v)
	addServicePProfEnabledFlag(flags, v)
}
