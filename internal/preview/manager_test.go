package preview

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/scriptforge/internal/workspace"
)

func shLaunch(script string) func(path string, port int) *exec.Cmd {
	return func(path string, port int) *exec.Cmd {
		return exec.Command("/bin/sh", "-c", script)
	}
}

func fastOptions(launch func(string, int) *exec.Cmd) Options {
	return Options{
		BasePort:        18502,
		MaxPortAttempts: 20,
		StartupGrace:    100 * time.Millisecond,
		TerminateGrace:  200 * time.Millisecond,
		KillGrace:       time.Second,
		Launch:          launch,
	}
}

func newManager(t *testing.T, launch func(string, int) *exec.Cmd) (*Manager, *workspace.Store) {
	t.Helper()
	store := workspace.New(t.TempDir())
	if err := store.Write("app.py", "print('hi')\n"); err != nil {
		t.Fatal(err)
	}
	m := NewManager(store, fastOptions(launch))
	t.Cleanup(m.Stop)
	return m, store
}

func TestStart_InvalidTarget(t *testing.T) {
	m, store := newManager(t, shLaunch("sleep 30"))

	if _, err := m.Start("missing.py"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("missing file: expected ErrInvalidTarget, got %v", err)
	}

	// A present file with the wrong extension is not previewable either.
	if err := os.WriteFile(filepath.Join(store.Root(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start("notes.txt"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("wrong extension: expected ErrInvalidTarget, got %v", err)
	}
}

func TestStartStop(t *testing.T) {
	m, _ := newManager(t, shLaunch("sleep 30"))

	info, err := m.Start("app.py")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if info.Filename != "app.py" || info.Port < 18502 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.URL != fmt.Sprintf("http://localhost:%d", info.Port) {
		t.Errorf("unexpected url %q", info.URL)
	}
	if !m.Alive() {
		t.Fatal("expected preview alive after start")
	}
	if m.Filename() != "app.py" {
		t.Errorf("unexpected filename %q", m.Filename())
	}

	m.Stop()
	if m.Alive() {
		t.Error("expected preview dead after stop")
	}
	if _, ok := m.Snapshot(); ok {
		t.Error("expected no snapshot after stop")
	}
}

func TestStart_EarlyExitSurfacesOutput(t *testing.T) {
	m, _ := newManager(t, shLaunch("echo boom >&2; exit 1"))

	_, err := m.Start("app.py")
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected child output in error, got %v", err)
	}
	if m.Alive() {
		t.Error("failed start must leave no running preview")
	}
}

func TestStop_KillsStubbornProcess(t *testing.T) {
	m, _ := newManager(t, shLaunch(`trap "" TERM; sleep 30`))

	if _, err := m.Start("app.py"); err != nil {
		t.Fatalf("start: %v", err)
	}

	start := time.Now()
	m.Stop()
	if m.Alive() {
		t.Error("expected preview dead after kill escalation")
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("expected terminate grace to elapse before kill, took %v", elapsed)
	}
}

func TestStop_Idempotent(t *testing.T) {
	m, _ := newManager(t, shLaunch("sleep 30"))
	m.Stop()
	m.Stop()
}

func TestAlive_ReclaimsExitedProcess(t *testing.T) {
	m, _ := newManager(t, shLaunch("sleep 0.3"))

	if _, err := m.Start("app.py"); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.Alive() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if m.Alive() {
		t.Fatal("expected process to have exited")
	}
	if m.Filename() != "" {
		t.Error("expected state reclaimed after self-exit")
	}
}

func TestStart_ReplacesRunningPreview(t *testing.T) {
	m, store := newManager(t, shLaunch("sleep 30"))
	if err := store.Write("other.py", "x"); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Start("app.py"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := m.Start("other.py"); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if m.Filename() != "other.py" {
		t.Errorf("expected new preview to own the slot, got %q", m.Filename())
	}
}

func TestFindAvailablePort(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	taken := l.Addr().(*net.TCPAddr).Port

	port, err := findAvailablePort(taken, 5)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if port == taken {
		t.Errorf("probe returned the occupied port %d", port)
	}

	if _, err := findAvailablePort(taken, 1); !errors.Is(err, ErrNoPortAvailable) {
		t.Errorf("expected ErrNoPortAvailable, got %v", err)
	}
}
