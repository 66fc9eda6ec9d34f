package linksource

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"linkrelay/internal/config"
	"linkrelay/internal/logging"
)

const videoURLTemplate = "https://www.youtube.com/watch?v=%s"

// PlaylistItem is one video of an expanded playlist.
type PlaylistItem struct {
	VideoID string
	Title   string
}

// PlaylistFetcher lists the videos of a playlist. A limit of 0 means all.
type PlaylistFetcher func(ctx context.Context, playlistID string, limit int) ([]PlaylistItem, error)

// Expander replaces playlist links with the links of their videos.
type Expander struct {
	enabled bool
	limit   int
	timeout time.Duration
	fetch   PlaylistFetcher
	logger  *slog.Logger
}

// ExpanderOption customizes an Expander.
type ExpanderOption func(*Expander)

// WithFetcher overrides the playlist lookup.
func WithFetcher(fetch PlaylistFetcher) ExpanderOption {
	return func(e *Expander) {
		if fetch != nil {
			e.fetch = fetch
		}
	}
}

// NewExpander builds an expander from configuration.
func NewExpander(cfg *config.Config, logger *slog.Logger, opts ...ExpanderOption) *Expander {
	e := &Expander{
		fetch:   fetchWithYTDLP,
		timeout: 60 * time.Second,
		logger:  logging.NewComponentLogger(logger, "linksource"),
	}
	if cfg != nil {
		e.enabled = cfg.LinkSource.ExpandPlaylists
		e.limit = cfg.LinkSource.PlaylistLimit
		if cfg.Resolver.TimeoutSeconds > 0 {
			e.timeout = time.Duration(cfg.Resolver.TimeoutSeconds) * time.Second
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns links with every playlist link replaced by its videos. A
// playlist that cannot be listed is kept as is.
func (e *Expander) Expand(ctx context.Context, links []string) []string {
	if e == nil || !e.enabled {
		return links
	}
	out := make([]string, 0, len(links))
	for _, link := range links {
		playlistID, ok := PlaylistID(link)
		if !ok {
			out = append(out, link)
			continue
		}
		videos, err := e.expandOne(ctx, playlistID)
		if err != nil {
			logging.WarnWithContext(e.logger, "playlist expansion failed", "playlist_expand_failed",
				logging.Link(link),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the playlist link is queued unchanged"),
				logging.String(logging.FieldImpact, "playlist relayed as a single entry"),
			)
			out = append(out, link)
			continue
		}
		e.logger.Info("playlist expanded",
			logging.Link(link),
			logging.Int("videos", len(videos)),
		)
		out = append(out, videos...)
	}
	return out
}

func (e *Expander) expandOne(ctx context.Context, playlistID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	items, err := e.fetch(ctx, playlistID, e.limit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("playlist %s has no videos", playlistID)
	}
	links := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.VideoID) == "" {
			continue
		}
		links = append(links, fmt.Sprintf(videoURLTemplate, item.VideoID))
	}
	if e.limit > 0 && len(links) > e.limit {
		links = links[:e.limit]
	}
	return links, nil
}

// PlaylistID reports the playlist id of a YouTube playlist link. Watch links
// that also carry a video id are treated as single videos.
func PlaylistID(link string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "youtube.com" && host != "music.youtube.com" {
		return "", false
	}
	query := parsed.Query()
	if query.Get("v") != "" {
		return "", false
	}
	id := strings.TrimSpace(query.Get("list"))
	if id == "" {
		return "", false
	}
	return id, true
}

func fetchWithYTDLP(ctx context.Context, playlistID string, limit int) ([]PlaylistItem, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, limit)
	if err != nil {
		return nil, fmt.Errorf("list playlist items: %w", err)
	}
	out := make([]PlaylistItem, 0, len(items))
	for _, it := range items {
		out = append(out, PlaylistItem{VideoID: it.VideoID, Title: it.Title})
	}
	return out, nil
}
