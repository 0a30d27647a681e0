// Package preview supervises the single child process serving a live
// preview of one workspace script. At most one preview runs at a time;
// starting a new one replaces the old.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/user/scriptforge/internal/types"
	"github.com/user/scriptforge/internal/workspace"
)

var (
	ErrInvalidTarget   = errors.New("not a previewable file")
	ErrNoPortAvailable = errors.New("no available port for preview")
	ErrStartFailed     = errors.New("preview process failed to start")
)

const (
	defaultBasePort        = 8502
	defaultMaxPortAttempts = 100
	defaultStartupGrace    = 5 * time.Second
	defaultTerminateGrace  = 3 * time.Second
	defaultKillGrace       = 2 * time.Second

	// restartPause lets the replaced process release its port before the
	// probe for the new one runs.
	restartPause = 500 * time.Millisecond
)

// Options tunes the Manager. Zero values select defaults.
type Options struct {
	PythonBin       string
	BasePort        int
	MaxPortAttempts int
	StartupGrace    time.Duration
	TerminateGrace  time.Duration
	KillGrace       time.Duration

	// Launch overrides how the child command is built. Used by tests; when
	// nil the manager runs `python -m streamlit run` with headless flags.
	Launch func(path string, port int) *exec.Cmd
}

func (o *Options) setDefaults() {
	if o.PythonBin == "" {
		o.PythonBin = "python3"
	}
	if o.BasePort == 0 {
		o.BasePort = defaultBasePort
	}
	if o.MaxPortAttempts == 0 {
		o.MaxPortAttempts = defaultMaxPortAttempts
	}
	if o.StartupGrace == 0 {
		o.StartupGrace = defaultStartupGrace
	}
	if o.TerminateGrace == 0 {
		o.TerminateGrace = defaultTerminateGrace
	}
	if o.KillGrace == 0 {
		o.KillGrace = defaultKillGrace
	}
}

// Info describes a running preview.
type Info struct {
	Filename string `json:"filename"`
	Port     int    `json:"port"`
	URL      string `json:"url"`
}

// proc pairs the child with a channel closed when Wait returns, so
// liveness checks never race the reaper goroutine.
type proc struct {
	cmd    *exec.Cmd
	done   chan struct{}
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (p *proc) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Manager owns the preview child process and its identity. All methods are
// safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	store types.WorkspaceStore
	opts  Options

	proc     *proc
	filename string
	port     int
}

// NewManager creates a Manager over the given workspace.
func NewManager(store types.WorkspaceStore, opts Options) *Manager {
	opts.setDefaults()
	return &Manager{store: store, opts: opts}
}

// Start launches a preview of the named workspace file, replacing any
// running preview first. It returns once the child has survived the
// startup grace period.
func (m *Manager) Start(filename string) (Info, error) {
	if !strings.HasSuffix(filename, workspace.Extension) || !m.store.Exists(filename) {
		slog.Error("preview rejected", "filename", filename)
		return Info{}, fmt.Errorf("%w: %s", ErrInvalidTarget, filename)
	}
	path, err := m.store.Path(filename)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s", ErrInvalidTarget, filename)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.proc != nil {
		slog.Info("stopping existing preview before starting new one", "filename", m.filename)
		m.stopLocked()
		time.Sleep(restartPause)
	}

	port, err := findAvailablePort(m.opts.BasePort, m.opts.MaxPortAttempts)
	if err != nil {
		return Info{}, err
	}

	cmd := m.buildCommand(path, port)
	p := &proc{cmd: cmd, done: make(chan struct{})}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	slog.Info("starting preview", "filename", filename, "port", port, "command", strings.Join(cmd.Args, " "))
	if err := cmd.Start(); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	go func() {
		cmd.Wait()
		close(p.done)
	}()

	// Early exit within the grace period means the child never came up;
	// surviving it counts as running.
	select {
	case <-p.done:
		out := strings.TrimSpace(p.stdout.String() + "\n" + p.stderr.String())
		slog.Error("preview exited during startup", "filename", filename, "output", out)
		if out != "" {
			return Info{}, fmt.Errorf("%w: %s", ErrStartFailed, out)
		}
		return Info{}, ErrStartFailed
	case <-time.After(m.opts.StartupGrace):
	}

	m.proc = p
	m.filename = filename
	m.port = port
	info := m.infoLocked()
	slog.Info("preview running", "filename", filename, "url", info.URL, "pid", cmd.Process.Pid)
	return info, nil
}

// Stop terminates the running preview, if any. The child gets a SIGTERM and
// a grace period, then a SIGKILL. Preview state is cleared unconditionally.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	p := m.proc
	if p == nil {
		return
	}
	defer m.clearLocked()

	if p.exited() {
		slog.Warn("preview had already exited", "filename", m.filename)
		return
	}

	pid := p.cmd.Process.Pid
	slog.Info("stopping preview", "filename", m.filename, "pid", pid)
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		slog.Warn("terminate signal failed", "pid", pid, "error", err)
	}
	select {
	case <-p.done:
		slog.Info("preview terminated gracefully", "pid", pid)
		return
	case <-time.After(m.opts.TerminateGrace):
	}

	slog.Warn("preview did not terminate gracefully, killing", "pid", pid)
	if err := p.cmd.Process.Kill(); err != nil {
		slog.Warn("kill signal failed", "pid", pid, "error", err)
	}
	select {
	case <-p.done:
		slog.Info("preview killed", "pid", pid)
	case <-time.After(m.opts.KillGrace):
		slog.Error("preview did not die after kill", "pid", pid)
	}
}

func (m *Manager) clearLocked() {
	m.proc = nil
	m.filename = ""
	m.port = 0
}

// Alive reports whether the preview child is still running, reclaiming
// state when it has exited on its own.
func (m *Manager) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc == nil {
		return false
	}
	if m.proc.exited() {
		slog.Warn("preview exited on its own", "filename", m.filename)
		m.clearLocked()
		return false
	}
	return true
}

// Filename returns the previewed file's name, or "" when nothing runs.
func (m *Manager) Filename() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filename
}

// Snapshot returns the running preview's details. ok is false when no
// preview runs.
func (m *Manager) Snapshot() (info Info, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc == nil {
		return Info{}, false
	}
	return m.infoLocked(), true
}

func (m *Manager) infoLocked() Info {
	return Info{
		Filename: m.filename,
		Port:     m.port,
		URL:      fmt.Sprintf("http://localhost:%d", m.port),
	}
}

func (m *Manager) buildCommand(path string, port int) *exec.Cmd {
	if m.opts.Launch != nil {
		return m.opts.Launch(path, port)
	}
	return exec.Command(m.opts.PythonBin,
		"-m", "streamlit", "run", path,
		"--server.port", strconv.Itoa(port),
		"--server.headless", "true",
		"--server.runOnSave", "false",
		"--server.fileWatcherType", "none",
		"--client.toolbarMode", "minimal",
	)
}

// findAvailablePort probes ports by binding, starting at base.
func findAvailablePort(base, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := base + i
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			slog.Debug("port in use", "port", port)
			continue
		}
		l.Close()
		slog.Info("found available port", "port", port)
		return port, nil
	}
	slog.Error("port probe exhausted", "base", base, "attempts", maxAttempts)
	return 0, fmt.Errorf("%w: %d attempts from %d", ErrNoPortAvailable, maxAttempts, base)
}
