package queue_test

import (
	"reflect"
	"testing"

	"linkrelay/internal/queue"
)

func drain(q *queue.Queue) []string {
	var links []string
	for {
		entry, ok := q.DequeueNext()
		if !ok {
			return links
		}
		links = append(links, entry.Link)
	}
}

func TestEnqueuePreservesOrderAndDuplicates(t *testing.T) {
	q := queue.New()
	added := q.Enqueue([]string{" https://a ", "", "https://b", "https://a", "   "})
	if added != 3 {
		t.Fatalf("expected 3 added, got %d", added)
	}
	got := drain(q)
	want := []string{"https://a", "https://b", "https://a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dequeue order = %v, want %v", got, want)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q := queue.New()
	if _, ok := q.DequeueNext(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestSkipConsumesExactlyK(t *testing.T) {
	for k := 1; k <= 4; k++ {
		q := queue.New()
		q.Enqueue([]string{"1", "2", "3", "4", "5"})
		q.ApplySkip(k)

		var processed []string
		for {
			entry, ok := q.DequeueNext()
			if !ok {
				break
			}
			if q.TakeSkip() {
				continue
			}
			processed = append(processed, entry.Link)
		}
		if len(processed) != 5-k {
			t.Fatalf("skip %d: processed %v", k, processed)
		}
		if q.PendingSkips() != 0 {
			t.Fatalf("skip %d: %d skips left over", k, q.PendingSkips())
		}
	}
}

func TestSkipPersistsAcrossEmptyQueue(t *testing.T) {
	q := queue.New()
	q.ApplySkip(2)
	q.ApplySkip(1)
	if q.PendingSkips() != 3 {
		t.Fatalf("expected accumulated skips, got %d", q.PendingSkips())
	}
	q.Enqueue([]string{"later"})
	if _, ok := q.DequeueNext(); !ok {
		t.Fatal("expected entry")
	}
	if !q.TakeSkip() {
		t.Fatal("expected skip carried over to later entry")
	}
}

func TestCaptionLastWriteWinsAndClearsAtZero(t *testing.T) {
	q := queue.New()
	q.ApplyCaption(5, "first")
	q.ApplyCaption(2, "hello")

	text, left := q.PendingCaption()
	if text != "hello" || left != 2 {
		t.Fatalf("pending caption = %q/%d", text, left)
	}
	for i := 0; i < 2; i++ {
		got, ok := q.ClaimCaption()
		if !ok || got != "hello" {
			t.Fatalf("claim %d = %q, %v", i, got, ok)
		}
	}
	if got, ok := q.ClaimCaption(); ok || got != "" {
		t.Fatalf("expected caption exhausted, got %q", got)
	}
	if text, left := q.PendingCaption(); text != "" || left != 0 {
		t.Fatalf("expected cleared caption, got %q/%d", text, left)
	}
}

func TestApplyIgnoresInvalidDirectives(t *testing.T) {
	q := queue.New()
	q.ApplySkip(0)
	q.ApplySkip(-3)
	q.ApplyCaption(0, "x")
	q.ApplyCaption(2, "  ")
	if q.PendingSkips() != 0 {
		t.Fatalf("unexpected skips %d", q.PendingSkips())
	}
	if _, left := q.PendingCaption(); left != 0 {
		t.Fatalf("unexpected caption count %d", left)
	}
}

func TestClearAllThenEnqueueLeavesOne(t *testing.T) {
	q := queue.New()
	q.Enqueue([]string{"a", "b", "c"})
	q.ApplySkip(2)
	q.ApplyCaption(3, "cap")

	if removed := q.ClearAll(); removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	q.Enqueue([]string{"d"})
	if q.Len() != 1 {
		t.Fatalf("expected size 1, got %d", q.Len())
	}
	if q.PendingSkips() != 0 {
		t.Fatalf("expected skips reset, got %d", q.PendingSkips())
	}
	if text, left := q.PendingCaption(); text != "" || left != 0 {
		t.Fatalf("expected caption reset, got %q/%d", text, left)
	}
}

func TestExportRemainingDoesNotMutate(t *testing.T) {
	q := queue.New()
	q.Enqueue([]string{"a", "b"})
	first := q.ExportRemaining()
	first[0] = "mutated"
	second := q.ExportRemaining()
	if !reflect.DeepEqual(second, []string{"a", "b"}) {
		t.Fatalf("export mutated queue: %v", second)
	}
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	if got := queue.New().ExportRemaining(); len(got) != 0 {
		t.Fatalf("expected empty export, got %v", got)
	}
}

func TestSnapshotReportsCounters(t *testing.T) {
	q := queue.New()
	q.Enqueue([]string{"x", "y"})
	q.ApplySkip(1)
	q.ApplyCaption(2, "hi")

	snap := q.Snapshot()
	if !reflect.DeepEqual(snap.Links, []string{"x", "y"}) {
		t.Fatalf("unexpected links %v", snap.Links)
	}
	if snap.PendingSkips != 1 || snap.StagedCaption != "hi" || snap.CaptionsLeft != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.OldestAddedAt.IsZero() {
		t.Fatal("expected oldest added timestamp")
	}
}
