// Package loader is the foreground fetch path: cache lookup, file access,
// decode and cache insertion for a single key.
package loader

import (
	"context"
	"io/fs"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/codec"
	"github.com/javi11/altview/internal/errors"
)

// Store is the cache side of the loader.
type Store interface {
	Get(key bitmap.Key) (*bitmap.Bitmap, bool)
	Put(key bitmap.Key, bmp *bitmap.Bitmap)
}

// Options tunes file access.
type Options struct {
	// OpenAttempts bounds retries of transient open failures.
	OpenAttempts uint
	// OpenDelay is the initial backoff between attempts.
	OpenDelay time.Duration
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{OpenAttempts: 3, OpenDelay: 20 * time.Millisecond}
}

// Loader loads bitmaps for keys. Concurrent loads of one key share a decode.
type Loader struct {
	fs      afero.Fs
	decoder codec.Capability
	store   Store
	opts    Options
	group   singleflight.Group
	log     *slog.Logger
}

// New creates a loader reading files from fsys.
func New(fsys afero.Fs, decoder codec.Capability, store Store, opts Options) *Loader {
	if opts.OpenAttempts == 0 {
		opts.OpenAttempts = DefaultOptions().OpenAttempts
	}
	if opts.OpenDelay <= 0 {
		opts.OpenDelay = DefaultOptions().OpenDelay
	}

	return &Loader{
		fs:      fsys,
		decoder: decoder,
		store:   store,
		opts:    opts,
		log:     slog.Default().With("component", "loader"),
	}
}

// Load returns the cached bitmap for key or decodes and caches it. The
// result is shared with the cache and must not be modified. A caller whose
// ctx ends returns early; the shared decode keeps running for the others.
func (l *Loader) Load(ctx context.Context, key bitmap.Key) (*bitmap.Bitmap, bool) {
	if bmp, ok := l.store.Get(key); ok {
		return bmp, true
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(groupKey(key), func() (interface{}, error) {
		// Double check cache
		if bmp, ok := l.store.Get(key); ok {
			return bmp, nil
		}

		bmp, err := l.decode(flightCtx, key)
		if err != nil {
			return nil, err
		}

		l.store.Put(key, bmp)
		return bmp, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		l.log.DebugContext(ctx, "Load abandoned", "key", key.String(), "error", ctx.Err())
		return nil, false
	}

	if res.Err != nil {
		l.log.DebugContext(ctx, "No bitmap available", "key", key.String(), "path", key.ID.Path(), "error", res.Err)
		return nil, false
	}

	if res.Shared {
		l.log.DebugContext(ctx, "Shared concurrent load", "key", key.String())
	}

	return res.Val.(*bitmap.Bitmap), true
}

// Decode decodes key without consulting or filling the cache. The caller
// owns the result.
func (l *Loader) Decode(ctx context.Context, key bitmap.Key) (*bitmap.Bitmap, bool) {
	bmp, err := l.decode(ctx, key)
	if err != nil {
		l.log.DebugContext(ctx, "No bitmap available", "key", key.String(), "path", key.ID.Path(), "error", err)
		return nil, false
	}
	return bmp, true
}

func (l *Loader) decode(ctx context.Context, key bitmap.Key) (*bitmap.Bitmap, error) {
	path := key.ID.Path()
	if !l.decoder.Accepts(path) {
		return nil, errors.ErrUnsupportedFormat
	}

	f, err := l.open(ctx, path)
	if err != nil {
		return nil, errors.NewDecodeError("open", path, err)
	}
	defer f.Close()

	var (
		bmp *bitmap.Bitmap
		ok  bool
	)
	if key.Kind.IsThumbnail() {
		bmp, ok = l.decoder.LoadThumbnail(ctx, f, key.Kind.MaxSize())
	} else {
		bmp, ok = l.decoder.LoadFull(ctx, f)
	}
	if !ok {
		return nil, errors.NewDecodeError("decode", path, nil)
	}

	return bmp, nil
}

// open retries transient failures. Missing files and permission errors are
// final.
func (l *Loader) open(ctx context.Context, path string) (afero.File, error) {
	var f afero.File

	err := retry.Do(
		func() error {
			var err error
			f, err = l.fs.Open(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
					return errors.WrapNonRetryable(err)
				}
				return err
			}
			return nil
		},
		retry.Attempts(l.opts.OpenAttempts),
		retry.Delay(l.opts.OpenDelay),
		retry.MaxDelay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return !errors.IsNonRetryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			l.log.DebugContext(ctx, "Retrying file open",
				"attempt", n+1,
				"path", path,
				"error", err)
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}

	return f, nil
}

func groupKey(key bitmap.Key) string {
	return string(key.ID) + "\x00" + key.Kind.String()
}
