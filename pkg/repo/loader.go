package repo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foomo/linkserver/pkg/metrics"
	"github.com/foomo/linkserver/responses"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	json              = jsoniter.ConfigCompatibleWithStandardLibrary
	ErrUpdateRejected = errors.New("update rejected: queue full")
)

type updateResponse struct {
	repoRuntime int64
	err         error
}

func (r *Repo) PollRoutine(ctx context.Context) error {
	l := r.l.Named("routine.poll")
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Debug("routine canceled", zap.Error(ctx.Err()))
			return nil
		case <-ticker.C:
			response, ok := r.enqueueUpdate(ctx)
			if !ok {
				return nil
			}
			if response.err == nil {
				l.Info("update success", zap.String("revision", r.pollVersion))
			} else {
				l.Error("update failed", zap.Error(response.err))
			}
		}
	}
}

func (r *Repo) UpdateRoutine(ctx context.Context) error {
	l := r.l.Named("routine.update")
	for {
		select {
		case <-ctx.Done():
			l.Debug("routine canceled", zap.Error(ctx.Err()))
			return nil
		case resChan := <-r.updateInProgressChannel:
			start := time.Now()
			runID := uuid.New().String()
			l := l.With(zap.String("run_id", runID))

			l.Info("update started")

			repoRuntime, err := r.update(context.WithoutCancel(ctx), l, runID)
			if err != nil {
				l.Error("update failed", zap.Error(err))
				metrics.UpdatesFailedCounter.WithLabelValues().Inc()
			} else {
				if !r.Loaded() {
					r.loaded.Store(true)
					l.Info("initial update success")
					if r.onLoaded != nil {
						r.onLoaded()
					}
				} else {
					l.Info("update success")
				}
				metrics.UpdatesCompletedCounter.WithLabelValues().Inc()
			}

			resChan <- updateResponse{
				repoRuntime: repoRuntime,
				err:         err,
			}

			metrics.UpdateDuration.WithLabelValues().Observe(time.Since(start).Seconds())
		}
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// enqueueUpdate waits for the update routine, false if ctx is done first
func (r *Repo) enqueueUpdate(ctx context.Context) (updateResponse, bool) {
	c := make(chan updateResponse)
	select {
	case <-ctx.Done():
		return updateResponse{}, false
	case r.updateInProgressChannel <- c:
		return <-c, true
	}
}

// tryUpdate runs an update unless another caller's update is still in
// flight. It waits for the update routine, so it is safe to call before the
// routine is receiving.
func (r *Repo) tryUpdate(ctx context.Context) (repoRuntime int64, err error) {
	if !r.updating.CompareAndSwap(false, true) {
		r.l.Info("update request rejected, an update is already in progress")
		return 0, ErrUpdateRejected
	}
	defer r.updating.Store(false)

	r.l.Debug("update request added to queue")
	ur, ok := r.enqueueUpdate(ctx)
	if !ok {
		return 0, ctx.Err()
	}
	return ur.repoRuntime, ur.err
}

func (r *Repo) update(ctx context.Context, l *zap.Logger, runID string) (repoRuntime int64, err error) {
	startTimeRepo := time.Now().UnixNano()

	sourceURL := r.url
	if r.poll {
		latest, err := r.read(ctx, r.url)
		if err != nil {
			return repoRuntime, errors.Wrap(err, "could not poll latest site map url")
		}
		sourceURL = strings.TrimSpace(string(latest))
		if sourceURL == r.pollVersion {
			l.Info("site map is up to date", zap.String("pollVersion", r.pollVersion))
			return repoRuntime, nil
		}
		l.Info("new site map poll version", zap.String("pollVersion", sourceURL))
	}

	data, err := r.read(ctx, sourceURL)
	repoRuntime = time.Now().UnixNano() - startTimeRepo
	if err != nil {
		// we have nothing to load - the source did not reply
		l.Debug("failed to read site map", zap.Error(err))
		return repoRuntime, err
	}
	l.Debug("loading site map", zap.String("source", sourceURL), zap.Int("length", len(data)))
	version := ""
	if r.poll {
		version = sourceURL
	}
	if err := r.load(ctx, l, runID, version, data); err != nil {
		return repoRuntime, err
	}
	if r.poll {
		r.pollVersion = version
	}
	return repoRuntime, nil
}

// read fetches http(s) sources with the http client, everything else is a
// file:// url or a plain path
func (r *Repo) read(ctx context.Context, source string) ([]byte, error) {
	if filename, ok := localPath(source); ok {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read site map file")
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create get site map request")
	}
	response, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get site map")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("bad response code from source %q want %d", response.Status, http.StatusOK)
	}

	buffer := &bytes.Buffer{}
	if _, err := io.Copy(buffer, response.Body); err != nil {
		return nil, errors.Wrap(err, "failed to copy IO stream")
	}
	return buffer.Bytes(), nil
}

// load builds a snapshot from data and publishes it
func (r *Repo) load(ctx context.Context, l *zap.Logger, runID, version string, data []byte) error {
	s, err := newSnapshot(l, runID, data, r.cacheSize)
	if err != nil {
		if len(data) > 10 {
			l.Debug("could not build site map",
				zap.String("start", string(data[:10])),
				zap.String("end", string(data[len(data)-10:])),
			)
		}
		return errors.Wrap(err, "failed to build site map")
	}
	for alias, idx := range s.Indexes {
		metrics.BuildWarningsGauge.WithLabelValues(alias).Set(float64(len(multierr.Errors(idx.Warnings()))))
	}

	old := r.snapshot.Swap(s)
	r.persist(ctx, l, s)
	if old != nil {
		for alias := range old.Indexes {
			if _, ok := s.Indexes[alias]; !ok {
				l.Info("removing orphaned mount", zap.String("mount", alias))
				metrics.BuildWarningsGauge.DeleteLabelValues(alias)
			}
		}
	}

	if r.notifier != nil {
		event := &responses.SiteMapUpdated{
			RunID:   runID,
			Time:    s.Created,
			Mounts:  s.Aliases(),
			Stats:   s.Stats,
			Source:  r.url,
			Version: version,
		}
		if err := r.notifier.Notify(ctx, event); err != nil {
			l.Warn("failed to send update notification", zap.Error(err))
			metrics.NotifyFailedCounter.WithLabelValues().Inc()
		}
	}
	return nil
}

// persist stores the source of a published snapshot for the next start
func (r *Repo) persist(ctx context.Context, l *zap.Logger, s *Snapshot) {
	if err := r.history.Add(ctx, s.Source()); err != nil {
		l.Error("could not persist current site map in history", zap.Error(err))
		metrics.HistoryPersistFailedCounter.WithLabelValues().Inc()
		return
	}
	l.Debug("persisted current site map in history")
}

func (r *Repo) tryToRestoreCurrent(ctx context.Context) error {
	buffer := &bytes.Buffer{}
	if err := r.history.GetCurrent(ctx, buffer); err != nil {
		return err
	}
	s, err := newSnapshot(r.l, "restore", buffer.Bytes(), r.cacheSize)
	if err != nil {
		return err
	}
	r.snapshot.Store(s)
	return nil
}

// localPath file name of file:// urls and plain paths
func localPath(source string) (string, bool) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return "", false
	case strings.HasPrefix(source, "file://"):
		source = strings.TrimPrefix(source, "file://")
	}
	filename, err := filepath.Abs(source)
	if err != nil {
		return filepath.Clean(source), true
	}
	return filename, true
}
