package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"linkrelay/internal/config"
	"linkrelay/internal/logging"
	"linkrelay/internal/services"
)

// Handle downloads one rendition into dir and returns the file path.
type Handle interface {
	Fetch(ctx context.Context, dir string) (string, error)
}

// HandleFunc adapts a function to Handle.
type HandleFunc func(ctx context.Context, dir string) (string, error)

// Fetch calls f.
func (f HandleFunc) Fetch(ctx context.Context, dir string) (string, error) {
	return f(ctx, dir)
}

// Rendition is one downloadable variant of a link.
type Rendition struct {
	QualityRank int
	// SizeBytes is 0 when the backend cannot report a size up front.
	SizeBytes int64
	Label     string
	Backend   string
	Handle    Handle
}

// Resolver lists the renditions available for a link.
type Resolver interface {
	Resolve(ctx context.Context, link string) ([]Rendition, error)
}

// Named is implemented by backends that report a name for logs.
type Named interface {
	Name() string
}

// Select returns the highest-ranked rendition whose known size fits under
// ceiling. Unknown-size renditions are only chosen when no known-size
// rendition fits; the caller must enforce the ceiling after fetching. When
// nothing qualifies the error wraps a *services.TooLargeError carrying the
// smallest known size. A ceiling <= 0 disables the size check.
func Select(renditions []Rendition, ceiling int64) (Rendition, error) {
	if len(renditions) == 0 {
		return Rendition{}, services.Wrap(services.ErrResolutionFailed, "resolve", "select rendition", "no renditions available", nil)
	}
	var (
		best     *Rendition
		unknown  *Rendition
		smallest int64
	)
	for i := range renditions {
		r := &renditions[i]
		switch {
		case r.SizeBytes <= 0:
			if unknown == nil || r.QualityRank > unknown.QualityRank {
				unknown = r
			}
		case ceiling <= 0 || r.SizeBytes <= ceiling:
			if best == nil || better(*r, *best) {
				best = r
			}
		default:
			if smallest == 0 || r.SizeBytes < smallest {
				smallest = r.SizeBytes
			}
		}
	}
	if best != nil {
		return *best, nil
	}
	if unknown != nil {
		return *unknown, nil
	}
	return Rendition{}, services.Wrap(services.ErrTooLarge, "resolve", "select rendition",
		"every rendition exceeds the size ceiling",
		&services.TooLargeError{SizeBytes: smallest, CeilingBytes: ceiling})
}

func better(a, b Rendition) bool {
	if a.QualityRank != b.QualityRank {
		return a.QualityRank > b.QualityRank
	}
	return a.SizeBytes > b.SizeBytes
}

// Chain tries resolvers in order and returns the first non-empty result.
type Chain struct {
	backends []Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

// NewChain composes backends. A timeout <= 0 disables the per-backend limit.
func NewChain(logger *slog.Logger, timeout time.Duration, backends ...Resolver) *Chain {
	return &Chain{
		backends: backends,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "resolver"),
	}
}

// New builds the configured chain.
func New(cfg *config.Config, logger *slog.Logger) (*Chain, error) {
	if cfg == nil {
		return nil, errors.New("resolver: config required")
	}
	backends := make([]Resolver, 0, len(cfg.Resolver.Backends))
	for _, name := range cfg.Resolver.Backends {
		switch name {
		case config.BackendYTDLP:
			backends = append(backends, NewYTDLP(cfg.Resolver.YTDLPBinary))
		case config.BackendYouTube:
			backends = append(backends, NewYouTube())
		default:
			return nil, fmt.Errorf("resolver: unknown backend %q", name)
		}
	}
	timeout := time.Duration(cfg.Resolver.TimeoutSeconds) * time.Second
	return NewChain(logger, timeout, backends...), nil
}

// Resolve implements Resolver. When every backend fails the error is marked
// ErrResolutionFailed and joins each backend error.
func (c *Chain) Resolve(ctx context.Context, link string) ([]Rendition, error) {
	if len(c.backends) == 0 {
		return nil, services.Wrap(services.ErrResolutionFailed, "resolve", "chain", "no resolver backends configured", nil)
	}
	var errs []error
	for _, backend := range c.backends {
		name := backendName(backend)
		renditions, err := c.resolveOne(ctx, backend, link)
		if err == nil && len(renditions) == 0 {
			err = errors.New("no renditions")
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, services.Wrap(services.ErrResolutionFailed, "resolve", name, "cancelled", ctx.Err())
			}
			c.logger.Debug("resolver backend failed",
				logging.String("backend", name),
				logging.Link(link),
				logging.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		c.logger.Debug("resolver backend succeeded",
			logging.String("backend", name),
			logging.Int("renditions", len(renditions)),
		)
		for i := range renditions {
			if renditions[i].Backend == "" {
				renditions[i].Backend = name
			}
		}
		return renditions, nil
	}
	return nil, services.Wrap(services.ErrResolutionFailed, "resolve", "chain", "no backend could resolve the link", errors.Join(errs...))
}

func (c *Chain) resolveOne(ctx context.Context, backend Resolver, link string) ([]Rendition, error) {
	if c.timeout <= 0 {
		return backend.Resolve(ctx, link)
	}
	resolveCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return backend.Resolve(resolveCtx, link)
}

func backendName(r Resolver) string {
	if named, ok := r.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", r)
}
