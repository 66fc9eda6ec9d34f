package workflow_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"linkrelay/internal/checkpoint"
	"linkrelay/internal/history"
	"linkrelay/internal/notifications"
	"linkrelay/internal/resolver"
	"linkrelay/internal/services"
	"linkrelay/internal/testsupport"
	"linkrelay/internal/workflow"
)

type stubResolver struct {
	mu      sync.Mutex
	calls   []string
	sizes   map[string]int64
	errs    map[string]error
	gates   map[string]chan struct{}
	started chan string
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		sizes:   map[string]int64{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 64),
	}
}

func (r *stubResolver) Resolve(ctx context.Context, link string) ([]resolver.Rendition, error) {
	r.mu.Lock()
	r.calls = append(r.calls, link)
	size, ok := r.sizes[link]
	err := r.errs[link]
	gate := r.gates[link]
	r.mu.Unlock()

	r.started <- link
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		size = 1 << 20
	}
	handle := resolver.HandleFunc(func(context.Context, string) (string, error) {
		return link, nil
	})
	return []resolver.Rendition{{QualityRank: 720, SizeBytes: size, Label: "720p", Backend: "stub", Handle: handle}}, nil
}

func (r *stubResolver) resolved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

type delivery struct {
	link    string
	caption string
}

type stubSink struct {
	mu         sync.Mutex
	deliveries []delivery
	attempts   map[string]int
	errs       map[string]error
}

func newStubSink() *stubSink {
	return &stubSink{attempts: map[string]int{}, errs: map[string]error{}}
}

func (s *stubSink) Deliver(ctx context.Context, handle resolver.Handle, caption string) (int64, error) {
	link, err := handle.Fetch(ctx, "")
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[link]++
	if err := s.errs[link]; err != nil {
		return 0, err
	}
	s.deliveries = append(s.deliveries, delivery{link: link, caption: caption})
	return 1 << 20, nil
}

func (s *stubSink) delivered() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deliveries)
}

func (s *stubSink) links() []string {
	var links []string
	for _, d := range s.delivered() {
		links = append(links, d.link)
	}
	return links
}

type published struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{event: event, payload: payload})
	return nil
}

func (n *recordingNotifier) payloads(event notifications.Event) []notifications.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifications.Payload
	for _, e := range n.events {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (n *recordingNotifier) count(event notifications.Event) int {
	return len(n.payloads(event))
}

type failingNotifier struct{}

func (failingNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return errors.New("ntfy unreachable")
}

type recordingExporter struct {
	mu          sync.Mutex
	checkpoints []checkpoint.Checkpoint
}

func (e *recordingExporter) Export(_ context.Context, cp checkpoint.Checkpoint) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkpoints = append(e.checkpoints, cp)
	return "", nil
}

func (e *recordingExporter) exported() []checkpoint.Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.checkpoints)
}

type harness struct {
	ctrl     *workflow.Controller
	resolver *stubResolver
	sink     *stubSink
	notifier *recordingNotifier
	exporter *recordingExporter
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	h := &harness{
		resolver: newStubResolver(),
		sink:     newStubSink(),
		notifier: &recordingNotifier{},
		exporter: &recordingExporter{},
	}
	ctrl, err := workflow.NewController(cfg, workflow.Dependencies{
		Resolver: h.resolver,
		Sink:     h.sink,
		Notifier: h.notifier,
		Exporter: h.exporter,
	}, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(ctrl.Stop)
	h.ctrl = ctrl
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) waitQueueEmpty(t *testing.T, runs int) notifications.Payload {
	t.Helper()
	waitFor(t, "queue empty", func() bool { return h.notifier.count(notifications.EventQueueEmpty) >= runs })
	payloads := h.notifier.payloads(notifications.EventQueueEmpty)
	return payloads[runs-1]
}

func (h *harness) status(t *testing.T) workflow.StatusSummary {
	t.Helper()
	status, err := h.ctrl.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	return status
}

func (h *harness) enqueuePaused(t *testing.T, links ...string) {
	t.Helper()
	ctx := context.Background()
	if err := h.ctrl.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, err := h.ctrl.Enqueue(ctx, links); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
}

func (h *harness) resume(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
}

func TestControllerDeliversInFIFOOrder(t *testing.T) {
	h := newHarness(t)
	added, err := h.ctrl.Enqueue(context.Background(), []string{"A", "B", "C"})
	if err != nil || added != 3 {
		t.Fatalf("Enqueue added=%d err=%v", added, err)
	}

	summary := h.waitQueueEmpty(t, 1)

	if got := h.sink.links(); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Fatalf("expected delivery order A,B,C, got %v", got)
	}
	if summary[notifications.KeyDelivered] != 3 || summary[notifications.KeyFailed] != 0 {
		t.Fatalf("unexpected run summary %+v", summary)
	}
	started := h.notifier.payloads(notifications.EventItemStarted)
	if len(started) != 3 {
		t.Fatalf("expected 3 item_started events, got %d", len(started))
	}
	for i, payload := range started {
		if payload[notifications.KeyIndex] != i+1 || payload[notifications.KeyTotal] != 3 {
			t.Fatalf("item_started %d has position %v/%v", i, payload[notifications.KeyIndex], payload[notifications.KeyTotal])
		}
	}
	succeeded := h.notifier.payloads(notifications.EventItemSucceeded)
	if last := succeeded[len(succeeded)-1]; last[notifications.KeyRemaining] != 0 {
		t.Fatalf("expected remaining 0 on last success, got %v", last[notifications.KeyRemaining])
	}
	status := h.status(t)
	if status.State != workflow.StateIdle || status.Run != nil {
		t.Fatalf("expected idle after drain, got %+v", status)
	}
}

func TestControllerSkipOneOfTwo(t *testing.T) {
	h := newHarness(t)
	h.enqueuePaused(t, "A", "B")
	if err := h.ctrl.Skip(context.Background(), 1); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	h.resume(t)

	summary := h.waitQueueEmpty(t, 1)

	if got := h.resolver.resolved(); !slices.Equal(got, []string{"B"}) {
		t.Fatalf("expected only B resolved, got %v", got)
	}
	if got := h.sink.links(); !slices.Equal(got, []string{"B"}) {
		t.Fatalf("expected only B delivered, got %v", got)
	}
	skipped := h.notifier.payloads(notifications.EventItemSkipped)
	if len(skipped) != 1 || skipped[0][notifications.KeyLink] != "A" {
		t.Fatalf("expected A skipped, got %+v", skipped)
	}
	if summary[notifications.KeySkipped] != 1 || summary[notifications.KeyDelivered] != 1 {
		t.Fatalf("unexpected run summary %+v", summary)
	}
}

func TestControllerSkipDiscardsExactlyK(t *testing.T) {
	h := newHarness(t)
	h.enqueuePaused(t, "1", "2", "3", "4", "5")
	if err := h.ctrl.Skip(context.Background(), 3); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	h.resume(t)
	h.waitQueueEmpty(t, 1)

	if got := h.sink.links(); !slices.Equal(got, []string{"4", "5"}) {
		t.Fatalf("expected 4,5 delivered, got %v", got)
	}
	if got := h.notifier.count(notifications.EventItemSkipped); got != 3 {
		t.Fatalf("expected 3 skipped, got %d", got)
	}
	if status := h.status(t); status.PendingSkips != 0 {
		t.Fatalf("expected skips consumed, got %d", status.PendingSkips)
	}
}

func TestControllerSkipCarriesOverOnEmptyQueue(t *testing.T) {
	h := newHarness(t)
	if err := h.ctrl.Skip(context.Background(), 2); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if _, err := h.ctrl.Enqueue(context.Background(), []string{"A", "B", "C"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	h.waitQueueEmpty(t, 1)
	if got := h.sink.links(); !slices.Equal(got, []string{"C"}) {
		t.Fatalf("expected only C delivered, got %v", got)
	}
}

func TestControllerOversizeOnlyRenditionFails(t *testing.T) {
	h := newHarness(t)
	h.resolver.sizes["big"] = 60_000_000
	if _, err := h.ctrl.Enqueue(context.Background(), []string{"big"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	summary := h.waitQueueEmpty(t, 1)

	if got := h.sink.delivered(); len(got) != 0 {
		t.Fatalf("expected no delivery, got %+v", got)
	}
	failed := h.notifier.payloads(notifications.EventItemFailed)
	if len(failed) != 1 {
		t.Fatalf("expected one failure, got %d", len(failed))
	}
	if failed[0][notifications.KeyReason] != services.ReasonTooLarge {
		t.Fatalf("expected too_large, got %v", failed[0][notifications.KeyReason])
	}
	if failed[0][notifications.KeySizeBytes] != int64(60_000_000) {
		t.Fatalf("expected offending size 60000000, got %v", failed[0][notifications.KeySizeBytes])
	}
	if failed[0][notifications.KeyCeiling] != int64(49*1024*1024) {
		t.Fatalf("unexpected ceiling %v", failed[0][notifications.KeyCeiling])
	}
	if summary[notifications.KeyFailed] != 1 {
		t.Fatalf("unexpected run summary %+v", summary)
	}
	if status := h.status(t); status.CompletedSinceCheckpoint != 0 {
		t.Fatalf("failure must not count toward checkpoint, got %d", status.CompletedSinceCheckpoint)
	}
}

func TestControllerCaptionNextTwoOfThree(t *testing.T) {
	h := newHarness(t)
	h.enqueuePaused(t, "X", "Y", "Z")
	if err := h.ctrl.CaptionNext(context.Background(), 2, "hello"); err != nil {
		t.Fatalf("CaptionNext: %v", err)
	}
	h.resume(t)
	h.waitQueueEmpty(t, 1)

	want := []delivery{{"X", "hello"}, {"Y", "hello"}, {"Z", ""}}
	if got := h.sink.delivered(); !slices.Equal(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	exhausted := h.notifier.payloads(notifications.EventCaptionExhausted)
	if len(exhausted) != 1 || exhausted[0][notifications.KeyCaption] != "hello" {
		t.Fatalf("expected one caption_exhausted, got %+v", exhausted)
	}
}

func TestControllerCaptionSkipsSkippedAndUnresolvedItems(t *testing.T) {
	h := newHarness(t)
	h.resolver.errs["B"] = errors.New("video unavailable")
	h.enqueuePaused(t, "A", "B", "C", "D", "E")
	ctx := context.Background()
	if err := h.ctrl.Skip(ctx, 1); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if err := h.ctrl.CaptionNext(ctx, 2, "tag"); err != nil {
		t.Fatalf("CaptionNext: %v", err)
	}
	h.resume(t)
	h.waitQueueEmpty(t, 1)

	want := []delivery{{"C", "tag"}, {"D", "tag"}, {"E", ""}}
	if got := h.sink.delivered(); !slices.Equal(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	failed := h.notifier.payloads(notifications.EventItemFailed)
	if len(failed) != 1 || failed[0][notifications.KeyReason] != services.ReasonResolutionFailed {
		t.Fatalf("expected B resolution failure, got %+v", failed)
	}
}

func TestControllerCaptionLastWriteWins(t *testing.T) {
	h := newHarness(t)
	h.enqueuePaused(t, "A", "B", "C")
	ctx := context.Background()
	if err := h.ctrl.CaptionNext(ctx, 3, "first"); err != nil {
		t.Fatalf("CaptionNext: %v", err)
	}
	if err := h.ctrl.CaptionNext(ctx, 1, "second"); err != nil {
		t.Fatalf("CaptionNext: %v", err)
	}
	h.resume(t)
	h.waitQueueEmpty(t, 1)

	want := []delivery{{"A", "second"}, {"B", ""}, {"C", ""}}
	if got := h.sink.delivered(); !slices.Equal(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestControllerClearAllThenEnqueue(t *testing.T) {
	h := newHarness(t)
	h.enqueuePaused(t, "A", "B", "C")
	ctx := context.Background()
	if err := h.ctrl.Skip(ctx, 2); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if err := h.ctrl.CaptionNext(ctx, 1, "x"); err != nil {
		t.Fatalf("CaptionNext: %v", err)
	}
	removed, err := h.ctrl.ClearAll(ctx)
	if err != nil || removed != 3 {
		t.Fatalf("ClearAll removed=%d err=%v", removed, err)
	}
	if _, err := h.ctrl.Enqueue(ctx, []string{"D"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	status := h.status(t)
	if status.QueueLength != 1 || status.PendingSkips != 0 || status.CaptionsLeft != 0 || status.StagedCaption != "" {
		t.Fatalf("expected fresh queue of one, got %+v", status)
	}
	if status.RunFlag {
		t.Fatalf("clear must not change the run flag")
	}

	h.resume(t)
	h.waitQueueEmpty(t, 1)
	if want := []delivery{{"D", ""}}; !slices.Equal(h.sink.delivered(), want) {
		t.Fatalf("expected %+v, got %+v", want, h.sink.delivered())
	}
}

func TestControllerExportsCheckpointEveryFiveSuccesses(t *testing.T) {
	h := newHarness(t)
	links := make([]string, 12)
	for i := range links {
		links[i] = string(rune('a' + i))
	}
	if _, err := h.ctrl.Enqueue(context.Background(), links); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	h.waitQueueEmpty(t, 1)

	exported := h.exporter.exported()
	if len(exported) != 2 {
		t.Fatalf("expected 2 checkpoints for 12 successes, got %d", len(exported))
	}
	if !slices.Equal(exported[0].Links, links[5:]) {
		t.Fatalf("first checkpoint links %v", exported[0].Links)
	}
	if !slices.Equal(exported[1].Links, links[10:]) {
		t.Fatalf("second checkpoint links %v", exported[1].Links)
	}
	if exported[0].Reason != checkpoint.ReasonPeriodic || exported[0].Completed != 5 || exported[0].BatchTotal != 12 {
		t.Fatalf("unexpected checkpoint %+v", exported[0])
	}
	if got := h.notifier.count(notifications.EventCheckpointExported); got != 2 {
		t.Fatalf("expected 2 checkpoint events, got %d", got)
	}
	if status := h.status(t); status.CompletedSinceCheckpoint != 2 {
		t.Fatalf("expected counter 2 after 12 successes, got %d", status.CompletedSinceCheckpoint)
	}
}

func TestControllerFailuresNeverCountTowardCheckpoint(t *testing.T) {
	h := newHarness(t)
	links := []string{"a", "x1", "b", "x2", "c", "x3", "d", "x4"}
	for _, link := range []string{"x1", "x2", "x3", "x4"} {
		h.resolver.errs[link] = errors.New("video unavailable")
	}
	if _, err := h.ctrl.Enqueue(context.Background(), links); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	summary := h.waitQueueEmpty(t, 1)

	if summary[notifications.KeyDelivered] != 4 || summary[notifications.KeyFailed] != 4 {
		t.Fatalf("unexpected run summary %+v", summary)
	}
	if got := len(h.exporter.exported()); got != 0 {
		t.Fatalf("expected no checkpoint before the fifth success, got %d", got)
	}
	if got := h.notifier.count(notifications.EventCheckpointExported); got != 0 {
		t.Fatalf("expected no checkpoint events, got %d", got)
	}
	if status := h.status(t); status.CompletedSinceCheckpoint != 4 {
		t.Fatalf("expected counter 4 after four successes, got %d", status.CompletedSinceCheckpoint)
	}

	h.resolver.mu.Lock()
	h.resolver.errs["x5"] = errors.New("video unavailable")
	h.resolver.mu.Unlock()
	if _, err := h.ctrl.Enqueue(context.Background(), []string{"x5", "e", "f"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	h.waitQueueEmpty(t, 2)

	exported := h.exporter.exported()
	if len(exported) != 1 {
		t.Fatalf("expected one checkpoint at the fifth success, got %d", len(exported))
	}
	if !slices.Equal(exported[0].Links, []string{"f"}) || exported[0].Completed != 5 {
		t.Fatalf("unexpected checkpoint %+v", exported[0])
	}
}

func TestControllerDrainsWhenNotifierFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sink := newStubSink()
	ctrl, err := workflow.NewController(cfg, workflow.Dependencies{
		Resolver: newStubResolver(),
		Sink:     sink,
		Notifier: failingNotifier{},
	}, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(ctrl.Stop)

	links := []string{"A", "B", "C", "D", "E", "F"}
	if _, err := ctrl.Enqueue(context.Background(), links); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "queue to drain", func() bool {
		status, err := ctrl.Status(context.Background())
		return err == nil && status.State == workflow.StateIdle && status.QueueLength == 0 && status.InFlight == nil
	})
	if got := sink.links(); !slices.Equal(got, links) {
		t.Fatalf("expected %v delivered despite notifier errors, got %v", links, got)
	}
}

func TestControllerPauseLetsInFlightItemFinish(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.resolver.gates["A"] = gate
	ctx := context.Background()
	if _, err := h.ctrl.Enqueue(ctx, []string{"A", "B"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if first := <-h.resolver.started; first != "A" {
		t.Fatalf("expected A to start, got %s", first)
	}
	if err := h.ctrl.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	status := h.status(t)
	if status.State != workflow.StatePaused || status.InFlight == nil || status.InFlight.Link != "A" {
		t.Fatalf("expected paused with A in flight, got %+v", status)
	}

	close(gate)
	waitFor(t, "in-flight item to finish", func() bool { return h.status(t).InFlight == nil })

	if got := h.sink.links(); !slices.Equal(got, []string{"A"}) {
		t.Fatalf("expected A delivered after pause, got %v", got)
	}
	if got := h.resolver.resolved(); slices.Contains(got, "B") {
		t.Fatalf("B must not start while paused, resolved %v", got)
	}
	status = h.status(t)
	if status.State != workflow.StatePaused || status.QueueLength != 1 {
		t.Fatalf("expected paused with B pending, got %+v", status)
	}
	if h.notifier.count(notifications.EventQueueEmpty) != 0 {
		t.Fatalf("queue_empty must not fire while paused")
	}

	h.resume(t)
	summary := h.waitQueueEmpty(t, 1)
	if summary[notifications.KeyDelivered] != 2 {
		t.Fatalf("expected the paused run to continue, got %+v", summary)
	}
}

func TestControllerPauseOnLastItemSettlesIdle(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.resolver.gates["A"] = gate
	ctx := context.Background()
	if _, err := h.ctrl.Enqueue(ctx, []string{"A"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-h.resolver.started
	if err := h.ctrl.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if status := h.status(t); status.State != workflow.StatePaused {
		t.Fatalf("expected paused while A in flight, got %s", status.State)
	}

	close(gate)
	waitFor(t, "in-flight item to finish", func() bool { return h.status(t).InFlight == nil })

	status := h.status(t)
	if status.State != workflow.StateIdle || status.RunFlag || status.Run != nil {
		t.Fatalf("expected idle with run flag cleared, got %+v", status)
	}
	if got := h.sink.links(); !slices.Equal(got, []string{"A"}) {
		t.Fatalf("expected A delivered, got %v", got)
	}
	if h.notifier.count(notifications.EventQueueEmpty) != 0 {
		t.Fatalf("queue_empty must not fire for a paused run")
	}
}

func TestControllerClearWhilePausedSettlesIdle(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.resolver.gates["A"] = gate
	ctx := context.Background()
	if _, err := h.ctrl.Enqueue(ctx, []string{"A", "B"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-h.resolver.started
	if err := h.ctrl.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	close(gate)
	waitFor(t, "in-flight item to finish", func() bool { return h.status(t).InFlight == nil })
	if status := h.status(t); status.State != workflow.StatePaused || status.QueueLength != 1 {
		t.Fatalf("expected paused with B pending, got %+v", status)
	}

	if _, err := h.ctrl.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if status := h.status(t); status.State != workflow.StateIdle || status.RunFlag {
		t.Fatalf("expected idle after clearing a paused queue, got %+v", status)
	}
}

func TestControllerCaptionAppliesToItemResolvingWhenIssued(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.resolver.gates["A"] = gate
	ctx := context.Background()
	if _, err := h.ctrl.Enqueue(ctx, []string{"A"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-h.resolver.started
	if err := h.ctrl.CaptionNext(ctx, 1, "late"); err != nil {
		t.Fatalf("CaptionNext: %v", err)
	}
	close(gate)
	h.waitQueueEmpty(t, 1)
	if want := []delivery{{"A", "late"}}; !slices.Equal(h.sink.delivered(), want) {
		t.Fatalf("expected %+v, got %+v", want, h.sink.delivered())
	}
}

func TestControllerTransferFailureIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.sink.errs["A"] = errors.New("bot was blocked")
	if _, err := h.ctrl.Enqueue(context.Background(), []string{"A", "B"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	summary := h.waitQueueEmpty(t, 1)

	h.sink.mu.Lock()
	attempts := h.sink.attempts["A"]
	h.sink.mu.Unlock()
	if attempts != 1 {
		t.Fatalf("expected one attempt for A, got %d", attempts)
	}
	failed := h.notifier.payloads(notifications.EventItemFailed)
	if len(failed) != 1 || failed[0][notifications.KeyReason] != services.ReasonTransferFailed {
		t.Fatalf("expected transfer failure, got %+v", failed)
	}
	if summary[notifications.KeyDelivered] != 1 || summary[notifications.KeyFailed] != 1 {
		t.Fatalf("unexpected run summary %+v", summary)
	}
	if status := h.status(t); status.LastError == "" {
		t.Fatalf("expected last error recorded")
	}
}

func TestControllerRemainingDoesNotMutate(t *testing.T) {
	h := newHarness(t)
	h.enqueuePaused(t, "A", "B")
	cp, err := h.ctrl.Remaining(context.Background())
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if !slices.Equal(cp.Links, []string{"A", "B"}) || cp.Reason != checkpoint.ReasonRequested {
		t.Fatalf("unexpected checkpoint %+v", cp)
	}
	if status := h.status(t); status.QueueLength != 2 {
		t.Fatalf("expected queue untouched, got %d", status.QueueLength)
	}
}

func TestControllerResumeOnEmptyQueueStaysIdle(t *testing.T) {
	h := newHarness(t)
	if err := h.ctrl.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if status := h.status(t); status.State != workflow.StateIdle || status.RunFlag {
		t.Fatalf("pause from idle should only clear the flag, got %+v", status)
	}
	h.resume(t)
	if status := h.status(t); status.State != workflow.StateIdle || !status.RunFlag {
		t.Fatalf("expected idle with run flag, got %+v", status)
	}
}

func TestControllerRejectsInvalidDirectives(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cases := map[string]error{
		"skip zero":     h.ctrl.Skip(ctx, 0),
		"caption zero":  h.ctrl.CaptionNext(ctx, 0, "x"),
		"caption empty": h.ctrl.CaptionNext(ctx, 2, "   "),
	}
	for name, err := range cases {
		if !errors.Is(err, services.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestControllerStartPaused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StartPaused = true
	res := newStubResolver()
	ctrl, err := workflow.NewController(cfg, workflow.Dependencies{Resolver: res, Sink: newStubSink()}, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ctrl.Stop()
	if _, err := ctrl.Enqueue(context.Background(), []string{"A"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	status, err := ctrl.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != workflow.StateIdle || status.RunFlag || status.QueueLength != 1 {
		t.Fatalf("expected idle and paused with A pending, got %+v", status)
	}
}

func TestControllerRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(context.Background())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()
	res := newStubResolver()
	res.sizes["big"] = 60_000_000
	notifier := &recordingNotifier{}
	ctrl, err := workflow.NewController(cfg, workflow.Dependencies{
		Resolver: res,
		Sink:     newStubSink(),
		Notifier: notifier,
		History:  store,
	}, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	ctx := context.Background()
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ctrl.Stop()
	if err := ctrl.Skip(ctx, 1); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if _, err := ctrl.Enqueue(ctx, []string{"skipped", "ok", "big"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "queue empty", func() bool { return notifier.count(notifications.EventQueueEmpty) == 1 })

	stats, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Delivered != 1 || stats.Failed != 1 || stats.Skipped != 1 {
		t.Fatalf("unexpected history stats %+v", stats)
	}
	recent, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Link != "big" || recent[0].Reason != services.ReasonTooLarge || recent[0].SizeBytes != 60_000_000 {
		t.Fatalf("unexpected latest record %+v", recent)
	}
}

func TestControllerDirectivesAfterStop(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Stop()
	if _, err := h.ctrl.Enqueue(context.Background(), []string{"A"}); !errors.Is(err, workflow.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
