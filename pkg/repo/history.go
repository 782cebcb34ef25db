package repo

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	HistorySiteMapPrefix = "linkserver-sitemap-"
	HistorySiteMapSuffix = ".dump"
	CurrentKey           = HistorySiteMapPrefix + "current" + HistorySiteMapSuffix
)

type (
	History struct {
		l            *zap.Logger
		storage      Storage
		historyDir   string // directory used for default filesystem storage
		historyLimit int
		mu           sync.RWMutex
	}
	HistoryOption func(*History)
)

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func HistoryWithHistoryLimit(v int) HistoryOption {
	return func(o *History) {
		o.historyLimit = v
	}
}

func HistoryWithHistoryDir(v string) HistoryOption {
	return func(o *History) {
		o.historyDir = v
	}
}

func HistoryWithStorage(s Storage) HistoryOption {
	return func(o *History) {
		o.storage = s
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewHistory(l *zap.Logger, opts ...HistoryOption) (*History, error) {
	inst := &History{
		l:            l,
		historyDir:   "/var/lib/linkserver",
		historyLimit: 2,
	}

	for _, opt := range opts {
		opt(inst)
	}

	// If no storage provided, create a default filesystem storage
	if inst.storage == nil {
		storage, err := NewFilesystemStorage(inst.historyDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create default filesystem storage")
		}
		inst.storage = storage
	}

	return inst, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Add stores the raw site map as the current version and keeps the
// replaced one as a timestamped backup. Storing the current source again is
// a no-op, so reloading an unchanged site map does not rotate backups out.
func (h *History) Add(ctx context.Context, source []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.storage.Read(ctx, CurrentKey)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return errors.Wrap(err, "failed to read current history")
	case bytes.Equal(current, source):
		h.l.Debug("site map unchanged, skipping history")
		return nil
	}

	backupKey := backupKey(time.Now())
	if err := h.storage.Write(ctx, backupKey, source); err != nil {
		return errors.Wrap(err, "failed to write backup history file")
	}
	if err := h.storage.Write(ctx, CurrentKey, source); err != nil {
		return errors.Wrap(err, "failed to write current history")
	}
	h.l.Debug("persisted site map",
		zap.String("backup", backupKey),
		zap.String("current", CurrentKey),
		zap.Int("size", len(source)),
	)

	if err := h.cleanup(ctx); err != nil {
		return errors.Wrap(err, "failed to clean up history")
	}
	return nil
}

// GetCurrent reads the last persisted site map into buf. Returns
// os.ErrNotExist if nothing was persisted yet.
func (h *History) GetCurrent(ctx context.Context, buf *bytes.Buffer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, err := h.storage.Read(ctx, CurrentKey)
	if err != nil {
		return err
	}
	_, err = buf.Write(data)
	return err
}

// Close releases resources held by the history storage.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.storage != nil {
		return h.storage.Close()
	}
	return nil
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// backupKey sorts lexically in creation order
func backupKey(t time.Time) string {
	return HistorySiteMapPrefix + t.UTC().Format("2006-01-02T15-04-05.000000000") + HistorySiteMapSuffix
}

func (h *History) getHistory(ctx context.Context) (files []string, err error) {
	keys, err := h.storage.List(ctx, HistorySiteMapPrefix)
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		if key != CurrentKey &&
			strings.HasPrefix(key, HistorySiteMapPrefix) &&
			strings.HasSuffix(key, HistorySiteMapSuffix) {
			files = append(files, key)
		}
	}
	return files, nil
}

func (h *History) cleanup(ctx context.Context) error {
	files, err := h.getFilesForCleanup(ctx, h.historyLimit)
	if err != nil {
		return err
	}

	for _, f := range files {
		h.l.Debug("removing outdated backup", zap.String("file", f))
		if err := h.storage.Delete(ctx, f); err != nil {
			return errors.Wrapf(err, "could not remove file %s", f)
		}
	}

	return nil
}

func (h *History) getFilesForCleanup(ctx context.Context, historyVersions int) (files []string, err error) {
	backups, err := h.getHistory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not generate file cleanup list")
	}

	if len(backups) > historyVersions {
		files = append(files, backups[historyVersions:]...)
	}
	return files, nil
}
