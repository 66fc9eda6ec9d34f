package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"

	"linkrelay/internal/services"
)

// VideoClient is the subset of *youtube.Client the backend uses.
type VideoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// YouTube resolves YouTube links to progressive mp4 formats without yt-dlp.
type YouTube struct {
	client VideoClient
}

// NewYouTube constructs the native YouTube backend.
func NewYouTube() *YouTube {
	return &YouTube{client: &youtube.Client{}}
}

// NewYouTubeWithClient constructs the backend around a custom client.
func NewYouTubeWithClient(client VideoClient) *YouTube {
	return &YouTube{client: client}
}

// Name implements Named.
func (y *YouTube) Name() string { return "youtube" }

// Resolve implements Resolver.
func (y *YouTube) Resolve(ctx context.Context, link string) ([]Rendition, error) {
	video, err := y.client.GetVideoContext(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("video info: %w", err)
	}
	var renditions []Rendition
	for _, format := range video.Formats.WithAudioChannels() {
		if !strings.HasPrefix(format.MimeType, "video/mp4") {
			continue
		}
		renditions = append(renditions, Rendition{
			QualityRank: rank(format.Height, float64(format.Bitrate)/1000),
			SizeBytes:   format.ContentLength,
			Label:       youtubeLabel(format),
			Backend:     y.Name(),
			Handle:      youtubeHandle{client: y.client, video: video, format: format},
		})
	}
	return renditions, nil
}

type youtubeHandle struct {
	client VideoClient
	video  *youtube.Video
	format youtube.Format
}

func (h youtubeHandle) Fetch(ctx context.Context, dir string) (string, error) {
	format := h.format
	stream, _, err := h.client.GetStreamContext(ctx, h.video, &format)
	if err != nil {
		return "", services.Wrap(services.ErrTransferFailed, "transfer", "youtube stream", "open stream", err)
	}
	defer stream.Close()

	path := filepath.Join(dir, fmt.Sprintf("%s_%d.mp4", safeID(h.video.ID), format.ItagNo))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	if _, err := io.Copy(file, stream); err != nil {
		_ = file.Close()
		return "", services.Wrap(services.ErrTransferFailed, "transfer", "youtube stream", "copy stream", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close download file: %w", err)
	}
	return path, nil
}

func youtubeLabel(f youtube.Format) string {
	label := f.QualityLabel
	if label == "" {
		label = f.Quality
	}
	return strings.TrimSpace(label + " mp4 (progressive)")
}

func safeID(id string) string {
	id = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/:*?"<>| `, r) {
			return -1
		}
		return r
	}, id)
	if id == "" {
		return "video"
	}
	return id
}
