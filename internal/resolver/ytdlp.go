package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"linkrelay/internal/services"
)

// YTDLP resolves links with the yt-dlp binary.
type YTDLP struct {
	binary string
	exec   Executor
}

// YTDLPOption configures the yt-dlp backend.
type YTDLPOption func(*YTDLP)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) YTDLPOption {
	return func(y *YTDLP) {
		if exec != nil {
			y.exec = exec
		}
	}
}

// NewYTDLP constructs the yt-dlp backend.
func NewYTDLP(binary string, opts ...YTDLPOption) *YTDLP {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	y := &YTDLP{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name implements Named.
func (y *YTDLP) Name() string { return "yt-dlp" }

type ytdlpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Height         int     `json:"height"`
	TBR            float64 `json:"tbr"`
	ABR            float64 `json:"abr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	FormatNote     string  `json:"format_note"`
	Protocol       string  `json:"protocol"`
}

type ytdlpInfo struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	WebpageURL     string        `json:"webpage_url"`
	FormatID       string        `json:"format_id"`
	Ext            string        `json:"ext"`
	Height         int           `json:"height"`
	Filesize       int64         `json:"filesize"`
	FilesizeApprox int64         `json:"filesize_approx"`
	Formats        []ytdlpFormat `json:"formats"`
}

// Resolve implements Resolver.
func (y *YTDLP) Resolve(ctx context.Context, link string) ([]Rendition, error) {
	args := []string{"-J", "--no-playlist", "--no-warnings", "--skip-download", link}
	out, err := y.exec.Output(ctx, y.binary, args)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "resolve", "yt-dlp metadata", "yt-dlp failed", err)
	}
	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	return y.renditions(link, info), nil
}

func (y *YTDLP) renditions(link string, info ytdlpInfo) []Rendition {
	var (
		renditions []Rendition
		videoOnly  []ytdlpFormat
		audio      *ytdlpFormat
	)
	for i := range info.Formats {
		f := info.Formats[i]
		if f.FormatID == "" || f.Protocol == "mhtml" {
			continue
		}
		hasVideo := codecPresent(f.VCodec)
		hasAudio := codecPresent(f.ACodec)
		switch {
		case hasVideo && hasAudio:
			renditions = append(renditions, y.rendition(link, f.FormatID, f.Height, f.TBR, formatSize(f), labelFor(f, "muxed")))
		case hasVideo:
			videoOnly = append(videoOnly, f)
		case hasAudio:
			if audio == nil || betterAudio(f, *audio) {
				audio = &info.Formats[i]
			}
		}
	}
	if audio != nil {
		audioSize := formatSize(*audio)
		for _, v := range videoOnly {
			size := int64(0)
			if vs := formatSize(v); vs > 0 && audioSize > 0 {
				size = vs + audioSize
			}
			selector := v.FormatID + "+" + audio.FormatID
			renditions = append(renditions, y.rendition(link, selector, v.Height, v.TBR+audio.ABR, size, labelFor(v, "merged")))
		}
	}
	if len(renditions) == 0 && len(info.Formats) == 0 {
		selector := info.FormatID
		if selector == "" {
			selector = "best"
		}
		size := info.Filesize
		if size == 0 {
			size = info.FilesizeApprox
		}
		label := strings.TrimSpace(fmt.Sprintf("%dp %s", info.Height, info.Ext))
		renditions = append(renditions, y.rendition(link, selector, info.Height, 0, size, label))
	}
	return renditions
}

func (y *YTDLP) rendition(link, selector string, height int, tbr float64, size int64, label string) Rendition {
	return Rendition{
		QualityRank: rank(height, tbr),
		SizeBytes:   size,
		Label:       label,
		Backend:     y.Name(),
		Handle:      ytdlpHandle{y: y, link: link, selector: selector},
	}
}

type ytdlpHandle struct {
	y        *YTDLP
	link     string
	selector string
}

func (h ytdlpHandle) Fetch(ctx context.Context, dir string) (string, error) {
	args := []string{
		"--no-playlist", "--no-warnings", "--no-progress",
		"-f", h.selector,
		"--merge-output-format", "mp4",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		h.link,
	}
	out, err := h.y.exec.Output(ctx, h.y.binary, args)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transfer", "yt-dlp download", "yt-dlp failed", err)
	}
	if path := lastLine(string(out)); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return singleFile(dir)
}

func codecPresent(codec string) bool {
	codec = strings.TrimSpace(codec)
	return codec != "" && codec != "none"
}

func betterAudio(a, b ytdlpFormat) bool {
	aM4A, bM4A := a.Ext == "m4a", b.Ext == "m4a"
	if aM4A != bM4A {
		return aM4A
	}
	return a.ABR > b.ABR
}

func formatSize(f ytdlpFormat) int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}

func labelFor(f ytdlpFormat, kind string) string {
	if f.Height > 0 {
		return fmt.Sprintf("%dp %s (%s)", f.Height, f.Ext, kind)
	}
	if f.FormatNote != "" {
		return fmt.Sprintf("%s %s (%s)", f.FormatNote, f.Ext, kind)
	}
	return fmt.Sprintf("%s %s (%s)", f.FormatID, f.Ext, kind)
}

// rank orders by height first, then bitrate.
func rank(height int, bitrateKbps float64) int {
	br := int(math.Min(math.Max(bitrateKbps, 0), 99_999))
	return height*100_000 + br
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func singleFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read download dir: %w", err)
	}
	var found []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		found = append(found, filepath.Join(dir, entry.Name()))
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return "", errors.New("download produced no file")
	default:
		return "", fmt.Errorf("download produced %d files", len(found))
	}
}
