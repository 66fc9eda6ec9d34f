package queue

import (
	"strings"
	"time"
)

// Entry is one pending link.
type Entry struct {
	Link    string    `json:"link"`
	Caption string    `json:"caption,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Snapshot is a point-in-time view of queue state.
type Snapshot struct {
	Links         []string  `json:"links"`
	PendingSkips  int       `json:"pending_skips"`
	StagedCaption string    `json:"staged_caption,omitempty"`
	CaptionsLeft  int       `json:"captions_left"`
	OldestAddedAt time.Time `json:"oldest_added_at,omitzero"`
}

// Queue is the FIFO of pending entries with lazy skip and caption counters.
type Queue struct {
	entries       []Entry
	pendingSkips  int
	stagedCaption string
	captionsLeft  int
	now           func() time.Time
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{now: time.Now}
}

// Enqueue appends one entry per non-empty trimmed link in order and returns the
// number added. Duplicates are kept.
func (q *Queue) Enqueue(links []string) int {
	added := 0
	now := q.clock()
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		q.entries = append(q.entries, Entry{Link: link, AddedAt: now})
		added++
	}
	return added
}

// DequeueNext removes and returns the front entry.
func (q *Queue) DequeueNext() (Entry, bool) {
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	entry := q.entries[0]
	q.entries[0] = Entry{}
	q.entries = q.entries[1:]
	if len(q.entries) == 0 {
		q.entries = nil
	}
	return entry, true
}

// ApplySkip adds n pending skip units. Values below 1 are ignored.
func (q *Queue) ApplySkip(n int) {
	if n < 1 {
		return
	}
	q.pendingSkips += n
}

// ApplyCaption stages text for the next n non-skipped entries, replacing any
// previously staged caption and count.
func (q *Queue) ApplyCaption(n int, text string) {
	if n < 1 || strings.TrimSpace(text) == "" {
		return
	}
	q.stagedCaption = text
	q.captionsLeft = n
}

// ClearAll drops every entry and resets both counters. It returns the number
// of entries removed.
func (q *Queue) ClearAll() int {
	removed := len(q.entries)
	q.entries = nil
	q.pendingSkips = 0
	q.stagedCaption = ""
	q.captionsLeft = 0
	return removed
}

// ExportRemaining returns the pending links in queue order without mutating
// the queue.
func (q *Queue) ExportRemaining() []string {
	links := make([]string, len(q.entries))
	for i, entry := range q.entries {
		links[i] = entry.Link
	}
	return links
}

// TakeSkip consumes one pending skip unit and reports whether one was pending.
func (q *Queue) TakeSkip() bool {
	if q.pendingSkips == 0 {
		return false
	}
	q.pendingSkips--
	return true
}

// ClaimCaption consumes one caption use. The staged text is cleared when the
// count reaches zero. It reports false when no caption is staged.
func (q *Queue) ClaimCaption() (string, bool) {
	if q.captionsLeft == 0 {
		return "", false
	}
	text := q.stagedCaption
	q.captionsLeft--
	if q.captionsLeft == 0 {
		q.stagedCaption = ""
	}
	return text, true
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// PendingSkips returns the number of unconsumed skip units.
func (q *Queue) PendingSkips() int {
	return q.pendingSkips
}

// PendingCaption returns the staged caption and its remaining uses.
func (q *Queue) PendingCaption() (string, int) {
	return q.stagedCaption, q.captionsLeft
}

// Snapshot captures the current queue state.
func (q *Queue) Snapshot() Snapshot {
	snap := Snapshot{
		Links:         q.ExportRemaining(),
		PendingSkips:  q.pendingSkips,
		StagedCaption: q.stagedCaption,
		CaptionsLeft:  q.captionsLeft,
	}
	if len(q.entries) > 0 {
		snap.OldestAddedAt = q.entries[0].AddedAt
	}
	return snap
}

func (q *Queue) clock() time.Time {
	if q.now == nil {
		return time.Now()
	}
	return q.now()
}
