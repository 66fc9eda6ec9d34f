// Package transfer downloads a selected rendition and uploads it to the
// destination chat.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"linkrelay/internal/config"
	"linkrelay/internal/logging"
	"linkrelay/internal/resolver"
	"linkrelay/internal/services"
)

// Uploader sends a local video file to the destination.
type Uploader interface {
	UploadVideo(ctx context.Context, path, caption string) error
}

// Relay fetches into a per-item temp directory and uploads the result.
type Relay struct {
	tempDir  string
	ceiling  int64
	timeout  time.Duration
	uploader Uploader
	logger   *slog.Logger
}

// NewRelay constructs a Relay from configuration.
func NewRelay(cfg *config.Config, uploader Uploader, logger *slog.Logger) *Relay {
	r := &Relay{
		tempDir:  os.TempDir(),
		uploader: uploader,
		logger:   logging.NewComponentLogger(logger, "transfer"),
	}
	if cfg != nil {
		r.tempDir = cfg.Paths.TempDir
		r.ceiling = cfg.MaxSizeBytes()
		r.timeout = time.Duration(cfg.Transfer.TimeoutSeconds) * time.Second
	}
	return r
}

// Deliver fetches handle and uploads it with caption. It returns the uploaded
// size. Failures are marked ErrTooLarge or ErrTransferFailed; nothing is
// retried.
func (r *Relay) Deliver(ctx context.Context, handle resolver.Handle, caption string) (int64, error) {
	if handle == nil {
		return 0, services.Wrap(services.ErrTransferFailed, "transfer", "deliver", "rendition has no fetch handle", nil)
	}
	if r.uploader == nil {
		return 0, services.Wrap(services.ErrConfiguration, "transfer", "deliver", "no uploader configured", nil)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, r.logger)

	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		return 0, services.Wrap(services.ErrTransferFailed, "transfer", "prepare", "create temp dir", err)
	}
	dir, err := os.MkdirTemp(r.tempDir, "item-*")
	if err != nil {
		return 0, services.Wrap(services.ErrTransferFailed, "transfer", "prepare", "create item dir", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.WarnWithContext(logger, "temp cleanup failed", "temp_cleanup_failed",
				logging.String("dir", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the directory manually"),
				logging.String(logging.FieldImpact, "disk space is not reclaimed"),
			)
		}
	}()

	started := time.Now()
	path, err := handle.Fetch(ctx, dir)
	if err != nil {
		if errors.Is(err, services.ErrTooLarge) {
			return 0, err
		}
		return 0, services.Wrap(services.ErrTransferFailed, "transfer", "fetch", "download failed", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, services.Wrap(services.ErrTransferFailed, "transfer", "fetch", "downloaded file missing", err)
	}
	size := info.Size()
	if size == 0 {
		return 0, services.Wrap(services.ErrTransferFailed, "transfer", "fetch", "downloaded file is empty", nil)
	}
	if r.ceiling > 0 && size > r.ceiling {
		return 0, services.Wrap(services.ErrTooLarge, "transfer", "fetch",
			fmt.Sprintf("downloaded file is %s", humanize.IBytes(uint64(size))),
			&services.TooLargeError{SizeBytes: size, CeilingBytes: r.ceiling})
	}
	logger.Debug("rendition fetched",
		logging.String("size", humanize.IBytes(uint64(size))),
		logging.Duration("elapsed", time.Since(started)),
	)

	if err := r.uploader.UploadVideo(ctx, path, caption); err != nil {
		return 0, services.Wrap(services.ErrTransferFailed, "transfer", "upload", "upload failed", err)
	}
	logger.Debug("rendition uploaded",
		logging.SizeBytes(size),
		logging.Bool("captioned", caption != ""),
	)
	return size, nil
}
