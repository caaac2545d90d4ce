package speech

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docuextract/docengine/internal/db"
	"github.com/docuextract/docengine/internal/domain"
)

type mockSynthesizer struct {
	audio   []byte
	err     error
	calls   atomic.Int32
	release chan struct{} // when non-nil, Synthesize blocks until closed
}

func (m *mockSynthesizer) Synthesize(_ context.Context, _ string) ([]byte, error) {
	m.calls.Add(1)
	if m.release != nil {
		<-m.release
	}
	return m.audio, m.err
}

func (m *mockSynthesizer) ContentType() string { return "audio/mpeg" }

// memStore is an in-memory KV store with the cache-miss semantics of the
// real driver.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func TestSpeak_EmptyText(t *testing.T) {
	svc := New(&mockSynthesizer{}, newMemStore(), "voice", time.Hour)

	if _, err := svc.Speak(context.Background(), "  \n "); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSpeak_DisabledBackend(t *testing.T) {
	svc := New(nil, newMemStore(), "voice", time.Hour)

	if _, err := svc.Speak(context.Background(), "hello"); !errors.Is(err, domain.ErrSynthesisUnavailable) {
		t.Fatalf("expected ErrSynthesisUnavailable, got %v", err)
	}
}

func TestSpeak_CachesResult(t *testing.T) {
	synth := &mockSynthesizer{audio: []byte("mp3bytes")}
	store := newMemStore()
	svc := New(synth, store, "voice", time.Hour)

	first, err := svc.Speak(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.Speak(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("cached bytes differ from synthesized bytes")
	}
	if n := synth.calls.Load(); n != 1 {
		t.Errorf("synthesis calls = %d, want 1 (second call must hit cache)", n)
	}
}

func TestSpeak_KeyIncludesVoiceConfig(t *testing.T) {
	synth := &mockSynthesizer{audio: []byte("a")}
	store := newMemStore()

	if _, err := New(synth, store, "voice-a", time.Hour).Speak(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := New(synth, store, "voice-b", time.Hour).Speak(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := synth.calls.Load(); n != 2 {
		t.Errorf("synthesis calls = %d, want 2 (different voice configs must not share cache)", n)
	}
}

func TestSpeak_SingleFlight(t *testing.T) {
	synth := &mockSynthesizer{
		audio:   []byte("shared-audio"),
		release: make(chan struct{}),
	}
	svc := New(synth, newMemStore(), "voice", time.Hour)

	const callers = 10
	results := make([][]byte, callers)
	errs := make([]error, callers)

	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			defer done.Done()
			started.Done()
			results[i], errs[i] = svc.Speak(context.Background(), "same text")
		}()
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond) // let callers reach the flight
	close(synth.release)
	done.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], []byte("shared-audio")) {
			t.Errorf("caller %d got %q", i, results[i])
		}
	}
	if n := synth.calls.Load(); n != 1 {
		t.Errorf("synthesis calls = %d, want exactly 1", n)
	}
}

func TestSpeak_FailureNotCached(t *testing.T) {
	synth := &mockSynthesizer{err: errors.New("backend down")}
	store := newMemStore()
	svc := New(synth, store, "voice", time.Hour)

	if _, err := svc.Speak(context.Background(), "hello"); err == nil {
		t.Fatal("expected synthesis error")
	}
	if store.sets != 0 {
		t.Error("failed synthesis must not be cached")
	}

	// Backend recovers; the next call synthesizes again.
	synth.err = nil
	synth.audio = []byte("ok")
	if _, err := svc.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("recovered call: %v", err)
	}
	if n := synth.calls.Load(); n != 2 {
		t.Errorf("synthesis calls = %d, want 2", n)
	}
}
