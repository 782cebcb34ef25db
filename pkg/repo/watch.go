package repo

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// WatchRoutine triggers an update whenever a local site map source changes.
// The directory is watched since editors replace files on save. Bursts of
// events are collapsed into one update after watchDebounce.
func (r *Repo) WatchRoutine(ctx context.Context) error {
	l := r.l.Named("routine.watch")

	filename, ok := localPath(r.url)
	if !ok {
		l.Warn("watching is only supported for local sources", zap.String("url", r.url))
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(filename)); err != nil {
		return errors.Wrap(err, "failed to watch site map directory")
	}
	l.Info("watching site map", zap.String("file", filename))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.Debug("routine canceled", zap.Error(ctx.Err()))
			return nil
		case <-timerCh:
			timerCh = nil
			response, ok := r.enqueueUpdate(ctx)
			if !ok {
				return nil
			}
			if response.err != nil {
				l.Error("update failed", zap.Error(response.err))
				continue
			}
			l.Info("update success")
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filename || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			l.Debug("site map changed", zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(r.watchDebounce)
			} else {
				timer.Reset(r.watchDebounce)
			}
			timerCh = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Error("watcher error", zap.Error(err))
		}
	}
}
