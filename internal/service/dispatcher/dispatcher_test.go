package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/domain"
)

// mockSender implements port.WebhookSender for testing
type mockSender struct {
	err        error
	deliveries []delivery
}

type delivery struct {
	body      []byte
	signature string
	timestamp int64
}

func (m *mockSender) Send(ctx context.Context, body []byte, signature string, timestamp int64) error {
	m.deliveries = append(m.deliveries, delivery{body, signature, timestamp})
	return m.err
}

// mockDeadLetterRepo implements port.DeadLetterRepository for testing
type mockDeadLetterRepo struct {
	entries []*domain.DeadLetterEntry
}

func (m *mockDeadLetterRepo) Append(entry *domain.DeadLetterEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockDeadLetterRepo) List(limit int) ([]*domain.DeadLetterEntry, error) {
	return m.entries, nil
}

func (m *mockDeadLetterRepo) DeleteOlderThan(cutoff time.Time) (int, error) {
	return 0, nil
}

func testDispatcherConfig() *Config {
	return &Config{
		FlushInterval: time.Hour,
		MaxBatch:      50,
		MaxRetries:    3,
		Secret:        "test-secret",
	}
}

func TestFlushDeliversSignedBatch(t *testing.T) {
	sender := &mockSender{}
	d := New(testDispatcherConfig(), sender, &mockDeadLetterRepo{}, zap.NewNop())

	d.Enqueue("/items/abc")
	d.Enqueue("/category/nature")
	d.Enqueue("/items/abc") // duplicate collapses
	d.Flush(context.Background())

	if len(sender.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(sender.deliveries))
	}
	sent := sender.deliveries[0]

	var body payload
	if err := json.Unmarshal(sent.body, &body); err != nil {
		t.Fatalf("invalid payload JSON: %v", err)
	}
	if len(body.Paths) != 2 {
		t.Errorf("paths = %v, want duplicates collapsed to 2", body.Paths)
	}
	if body.Timestamp != sent.timestamp {
		t.Errorf("header timestamp %d != payload timestamp %d", sent.timestamp, body.Timestamp)
	}
	if sent.signature != Sign(sent.body, "test-secret") {
		t.Error("signature does not match the delivered body")
	}
}

func TestFlushBoundedByMaxBatch(t *testing.T) {
	sender := &mockSender{}
	cfg := testDispatcherConfig()
	cfg.MaxBatch = 5
	d := New(cfg, sender, &mockDeadLetterRepo{}, zap.NewNop())

	for i := 0; i < 12; i++ {
		d.Enqueue(fmt.Sprintf("/items/%02d", i))
	}

	// Each flush takes at most MaxBatch paths; the surplus stays pending
	// with a follow-up kick armed.
	for _, want := range []int{5, 5, 2} {
		select {
		case <-d.kick:
		default:
			t.Fatal("follow-up flush not kicked while paths remain pending")
		}
		d.Flush(context.Background())
		sent := sender.deliveries[len(sender.deliveries)-1]
		var body payload
		if err := json.Unmarshal(sent.body, &body); err != nil {
			t.Fatalf("invalid payload JSON: %v", err)
		}
		if len(body.Paths) != want {
			t.Errorf("batch carried %d paths, want %d", len(body.Paths), want)
		}
		if !sort.StringsAreSorted(body.Paths) {
			t.Errorf("batch paths not sorted: %v", body.Paths)
		}
	}

	if d.pendingCount() != 0 {
		t.Errorf("pending = %d after draining, want 0", d.pendingCount())
	}
	if len(sender.deliveries) != 3 {
		t.Errorf("deliveries = %d, want 3", len(sender.deliveries))
	}
}

func TestFlushNothingPending(t *testing.T) {
	sender := &mockSender{}
	d := New(testDispatcherConfig(), sender, &mockDeadLetterRepo{}, zap.NewNop())

	d.Flush(context.Background())
	if len(sender.deliveries) != 0 {
		t.Errorf("empty flush should not deliver, got %d", len(sender.deliveries))
	}
}

func TestFailedFlushRequeues(t *testing.T) {
	sender := &mockSender{err: errors.New("endpoint down")}
	d := New(testDispatcherConfig(), sender, &mockDeadLetterRepo{}, zap.NewNop())

	d.Enqueue("/items/abc")
	d.Flush(context.Background())

	if d.pendingCount() != 1 {
		t.Errorf("pending = %d, failed path should be re-queued", d.pendingCount())
	}

	// Recovery delivers the re-queued path
	sender.err = nil
	d.Flush(context.Background())
	if d.pendingCount() != 0 {
		t.Errorf("pending = %d after successful delivery, want 0", d.pendingCount())
	}
	if len(sender.deliveries) != 2 {
		t.Errorf("deliveries = %d, want 2", len(sender.deliveries))
	}
}

func TestPathDeadLetteredAfterRetries(t *testing.T) {
	sender := &mockSender{err: errors.New("endpoint down")}
	deadLetters := &mockDeadLetterRepo{}
	d := New(testDispatcherConfig(), sender, deadLetters, zap.NewNop())

	d.Enqueue("/items/abc")
	for i := 0; i < 3; i++ {
		d.Flush(context.Background())
	}

	if len(deadLetters.entries) != 1 {
		t.Fatalf("dead letters = %d, want exactly 1", len(deadLetters.entries))
	}
	entry := deadLetters.entries[0]
	if entry.Path != "/items/abc" {
		t.Errorf("Path = %q", entry.Path)
	}
	if entry.ID == "" {
		t.Error("dead letter entry should carry an id")
	}
	if entry.Error == "" {
		t.Error("dead letter entry should carry the delivery error")
	}

	// Dropped from retry tracking: further flushes deliver nothing
	d.Flush(context.Background())
	if len(sender.deliveries) != 3 {
		t.Errorf("deliveries = %d, dead-lettered path must not be retried", len(sender.deliveries))
	}
	if len(deadLetters.entries) != 1 {
		t.Errorf("dead letters = %d, path must be dead-lettered exactly once", len(deadLetters.entries))
	}
}

func TestSuccessClearsRetryState(t *testing.T) {
	sender := &mockSender{err: errors.New("endpoint down")}
	deadLetters := &mockDeadLetterRepo{}
	d := New(testDispatcherConfig(), sender, deadLetters, zap.NewNop())

	d.Enqueue("/items/abc")
	d.Flush(context.Background())
	d.Flush(context.Background())

	// Delivery recovers before the retry limit
	sender.err = nil
	d.Flush(context.Background())

	// A later failure starts counting from zero again
	sender.err = errors.New("down again")
	d.Enqueue("/items/abc")
	d.Flush(context.Background())

	if len(deadLetters.entries) != 0 {
		t.Errorf("dead letters = %d, recovered path should reset its counter", len(deadLetters.entries))
	}
}

func TestNopSenderDrainsWithoutDeadLetters(t *testing.T) {
	deadLetters := &mockDeadLetterRepo{}
	d := New(testDispatcherConfig(), NopSender{}, deadLetters, zap.NewNop())

	d.Enqueue("/items/abc")
	d.Enqueue("/")
	d.Flush(context.Background())

	if d.pendingCount() != 0 {
		t.Errorf("pending = %d, nop delivery should drain the set", d.pendingCount())
	}
	if len(deadLetters.entries) != 0 {
		t.Errorf("dead letters = %d, nop delivery must never dead-letter", len(deadLetters.entries))
	}
}

func TestSignDeterministic(t *testing.T) {
	body := []byte(`{"paths":["/"],"timestamp":1700000000000}`)
	if Sign(body, "secret") != Sign(body, "secret") {
		t.Error("signature not deterministic")
	}
	if Sign(body, "secret") == Sign(body, "other") {
		t.Error("different secrets produced the same signature")
	}
}
