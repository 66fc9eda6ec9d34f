// Package checkpoint renders snapshots of the remaining queue.
//
// A checkpoint file is newline-delimited UTF-8 with one link per line and no
// header, so it can be uploaded back to the relay as a batch file.
package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Reason records why a checkpoint was taken.
type Reason string

const (
	ReasonPeriodic  Reason = "periodic"
	ReasonRequested Reason = "requested"
)

// Checkpoint is the remaining work at a point in time.
type Checkpoint struct {
	Links      []string  `json:"links"`
	Completed  int       `json:"completed"`
	BatchTotal int       `json:"batch_total"`
	LastLink   string    `json:"last_link,omitempty"`
	Reason     Reason    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Remaining returns the number of links in the checkpoint.
func (c Checkpoint) Remaining() int {
	return len(c.Links)
}

// Encode returns the file body. Empty checkpoints encode to an empty slice.
func (c Checkpoint) Encode() []byte {
	if len(c.Links) == 0 {
		return []byte{}
	}
	var b strings.Builder
	for _, link := range c.Links {
		b.WriteString(link)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// FileName returns remain_links_<remaining>_<YYYYMMDD_HHMMSS>.txt.
func (c Checkpoint) FileName() string {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return fmt.Sprintf("remain_links_%d_%s.txt", c.Remaining(), created.Format("20060102_150405"))
}

// Caption summarises progress for the operator.
func (c Checkpoint) Caption() string {
	var lines []string
	switch c.Reason {
	case ReasonPeriodic:
		lines = append(lines, fmt.Sprintf("Automatic checkpoint after %d delivered", c.Completed))
	default:
		lines = append(lines, "Remaining links")
	}
	if c.BatchTotal > 0 {
		lines = append(lines, fmt.Sprintf("Progress: %d/%d", c.BatchTotal-c.Remaining(), c.BatchTotal))
	}
	lines = append(lines, fmt.Sprintf("Remaining: %d", c.Remaining()))
	if c.LastLink != "" {
		lines = append(lines, "Last processed: "+c.LastLink)
	}
	return strings.Join(lines, "\n")
}

// Exporter persists or delivers a checkpoint. It returns a location
// description, which may be empty.
type Exporter interface {
	Export(ctx context.Context, cp Checkpoint) (string, error)
}

// DirExporter writes checkpoint files into Dir. An empty Dir disables it.
type DirExporter struct {
	Dir string
}

// Export writes the checkpoint file and returns its path.
func (e DirExporter) Export(ctx context.Context, cp Checkpoint) (string, error) {
	if strings.TrimSpace(e.Dir) == "" {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create checkpoint dir: %w", err)
	}
	path := filepath.Join(e.Dir, cp.FileName())
	if err := os.WriteFile(path, cp.Encode(), 0o644); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	return path, nil
}
