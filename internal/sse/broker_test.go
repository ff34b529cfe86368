package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/notionhugo/internal/exporter"
)

// drain collects every frame currently buffered on ch.
func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestFrame(t *testing.T) {
	raw, err := frame(7, Event{Type: exporter.EventDocumentExported, Data: exporter.Event{Path: "posts/a/index.md", Warnings: 2}})
	if err != nil {
		t.Fatal(err)
	}
	want := "id: 7\nevent: document.exported\ndata: {\"path\":\"posts/a/index.md\",\"warnings\":2}\n\n"
	if string(raw) != want {
		t.Errorf("frame = %q, want %q", raw, want)
	}
}

func TestNotify_SequenceAndListingThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(exporter.Event{Kind: exporter.EventRunStarted})
	b.Notify(exporter.Event{Kind: exporter.EventDocumentExported, Path: "posts/a/index.md"})
	b.Notify(exporter.Event{Kind: exporter.EventDocumentExported, Path: "posts/b/index.md"})
	b.Notify(exporter.Event{Kind: exporter.EventDocumentFailed, DocumentID: "c", Error: "boom"})

	frames := drain(ch)
	var kinds []string
	for _, f := range frames {
		line := strings.SplitN(f, "\n", 3)[1]
		kinds = append(kinds, strings.TrimPrefix(line, "event: "))
	}
	want := "run.started,document.exported,listing.updated,document.exported,document.failed"
	if got := strings.Join(kinds, ","); got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
	if !strings.HasPrefix(frames[0], "id: 1\n") || !strings.HasPrefix(frames[4], "id: 5\n") {
		t.Errorf("ids not sequential: %q ... %q", frames[0], frames[4])
	}
	if !strings.Contains(frames[4], `"document_id":"c"`) || !strings.Contains(frames[4], `"error":"boom"`) {
		t.Errorf("failed frame = %q", frames[4])
	}
}

func TestSubscribe_ReplaysLastRun(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()

	b.Notify(exporter.Event{Kind: exporter.EventRunFinished, Exported: 3, Failed: 1})
	time.Sleep(20 * time.Millisecond)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	frames := drain(ch)
	if len(frames) != 1 || !strings.Contains(frames[0], "event: run.finished") || !strings.Contains(frames[0], `"exported":3`) {
		t.Errorf("replay = %q", frames)
	}
}

// syncRecorder guards the body so the test can read it while the handler runs.
type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	b.keepAlive = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Notify(exporter.Event{Kind: exporter.EventDocumentExported, Path: "posts/x/index.md"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: document.exported") {
		t.Errorf("handler output missing event: %q", body)
	}
	if !strings.Contains(body, ": keepalive\n\n") {
		t.Errorf("handler output missing keepalive: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
	// Reaching here without deadlock is the assertion.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}
	b.Notify(exporter.Event{Kind: exporter.EventRunFinished})
	b.Close()
}
