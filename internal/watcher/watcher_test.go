package watcher

import (
	"sync"
	"testing"
	"time"

	"github.com/user/scriptforge/internal/workspace"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) callback(files []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, files)
}

func (r *recorder) wait(t *testing.T, want int) [][]string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		n := len(r.calls)
		r.mu.Unlock()
		if n >= want {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) < want {
		t.Fatalf("expected at least %d callbacks, got %d", want, len(r.calls))
	}
	out := make([][]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func startWatcher(t *testing.T) (*workspace.Store, *recorder) {
	t.Helper()
	store := workspace.New(t.TempDir())
	if err := store.Write("seed.py", "x"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := New(store, rec.callback)
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(w.Stop)
	return store, rec
}

func TestWatcher_NotifiesOnWrite(t *testing.T) {
	store, rec := startWatcher(t)

	if err := store.Write("new.py", "content"); err != nil {
		t.Fatal(err)
	}

	calls := rec.wait(t, 1)
	last := calls[len(calls)-1]
	if len(last) != 2 || last[0] != "new.py" || last[1] != "seed.py" {
		t.Errorf("unexpected listing %v", last)
	}
}

func TestWatcher_NotifiesOnDelete(t *testing.T) {
	store, rec := startWatcher(t)

	if err := store.Delete("seed.py"); err != nil {
		t.Fatal(err)
	}

	calls := rec.wait(t, 1)
	last := calls[len(calls)-1]
	if len(last) != 0 {
		t.Errorf("expected empty listing, got %v", last)
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	store, rec := startWatcher(t)

	for i := 0; i < 5; i++ {
		if err := store.Write("burst.py", "rev"); err != nil {
			t.Fatal(err)
		}
	}

	rec.wait(t, 1)
	time.Sleep(debounceInterval * 2)

	rec.mu.Lock()
	n := len(rec.calls)
	rec.mu.Unlock()
	if n > 2 {
		t.Errorf("expected burst collapsed to at most 2 callbacks, got %d", n)
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w := New(workspace.New(t.TempDir()), nil)
	w.Stop()
}
