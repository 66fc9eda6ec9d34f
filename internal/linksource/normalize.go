package linksource

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"linkrelay/internal/services"
)

const maxLineBytes = 1 << 20

// FromMessage returns the trimmed link when text starts with http:// or
// https://.
func FromMessage(text string) ([]string, error) {
	link := strings.TrimSpace(text)
	lower := strings.ToLower(link)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return nil, services.Wrap(services.ErrInvalidInput, "linksource", "parse message", "message is not an http(s) link", nil)
	}
	return []string{link}, nil
}

// FromBatch splits r into trimmed non-empty lines in order.
func FromBatch(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var links []string
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, "linksource", "read batch", "unreadable batch file", err)
	}
	if len(links) == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "linksource", "read batch", "batch file contains no links", nil)
	}
	return links, nil
}

// Summary describes a parsed batch for operator replies.
func Summary(links []string) string {
	switch len(links) {
	case 0:
		return "no links"
	case 1:
		return "1 link"
	default:
		return fmt.Sprintf("%d links", len(links))
	}
}
