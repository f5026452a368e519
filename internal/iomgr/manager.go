package iomgr

import (
	"bufio"
	"io"
	"sync"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"go.uber.org/zap"
)

const drainChunk = 32 * 1024

type procIO struct {
	stdout *stream
	stderr *stream

	stdinMu     sync.Mutex
	stdin       io.WriteCloser
	stdinClosed bool
}

// Manager tracks capture buffers and stdin handles for every live managed
// pid. One Manager is shared by the whole supervisor.
type Manager struct {
	log *zap.Logger

	mu  sync.RWMutex
	ios map[uint32]*procIO
}

func New(log *zap.Logger) *Manager {
	return &Manager{
		log: log.Named("iomgr"),
		ios: make(map[uint32]*procIO),
	}
}

// Attach registers capture for a newly spawned process. stdoutR/stderrR may
// be nil when output capture was not requested; stdinW may be nil when the
// child's stdin was not piped.
func (m *Manager) Attach(pid uint32, stdoutR, stderrR io.Reader, stdinW io.WriteCloser) {
	pio := &procIO{stdout: &stream{}, stderr: &stream{}, stdin: stdinW}

	m.mu.Lock()
	m.ios[pid] = pio
	m.mu.Unlock()

	if stdoutR != nil {
		go m.drain(pid, "stdout", stdoutR, pio.stdout)
	}
	if stderrR != nil {
		go m.drain(pid, "stderr", stderrR, pio.stderr)
	}
}

func (m *Manager) drain(pid uint32, name string, r io.Reader, dst *stream) {
	br := bufio.NewReaderSize(r, drainChunk)
	buf := make([]byte, drainChunk)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			_, _ = dst.Write(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				m.log.Debug("capture stream closed", zap.Uint32("pid", pid), zap.String("stream", name), zap.Error(err))
			}
			return
		}
	}
}

// Detach drops the capture state for a pid once it has been fully
// unregistered; any buffered bytes already read via GetOutput are
// unaffected since callers receive copies.
func (m *Manager) Detach(pid uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ios, pid)
}

func (m *Manager) get(pid uint32) (*procIO, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.ios[pid]
	return p, ok
}

// WriteStdin implements spec §4.5's writeStdin. The Open Question on
// buffer-full handling (spec §9b) is resolved here as "first successful
// Write call wins": a short write through a backpressured pipe is retried
// until all bytes are accepted, then WriteStdin returns, without waiting
// for anything downstream of the pipe to finish consuming the data.
func (m *Manager) WriteStdin(pid uint32, data []byte) (int, error) {
	pio, ok := m.get(pid)
	if !ok || pio.stdin == nil {
		return 0, errs.New(errs.StdinNotAvailable, "process has no stdin pipe")
	}

	pio.stdinMu.Lock()
	defer pio.stdinMu.Unlock()
	if pio.stdinClosed {
		return 0, errs.New(errs.StdinNotWritable, "stdin has been closed")
	}

	written := 0
	for written < len(data) {
		n, err := pio.stdin.Write(data[written:])
		written += n
		if err != nil {
			return written, errs.Wrap(errs.StdinWriteFailed, "write to child stdin failed", err)
		}
		if n == 0 {
			break
		}
	}
	return written, nil
}

// CloseStdin implements spec §4.5's closeStdin: idempotent EOF signaling.
func (m *Manager) CloseStdin(pid uint32) error {
	pio, ok := m.get(pid)
	if !ok || pio.stdin == nil {
		return nil
	}
	pio.stdinMu.Lock()
	defer pio.stdinMu.Unlock()
	if pio.stdinClosed {
		return nil
	}
	pio.stdinClosed = true
	return pio.stdin.Close()
}

// GetStdout, GetStderr, and GetOutput materialize buffered bytes into UTF-8
// text plus the raw byte count (spec §4.5 retrieval contract).
func (m *Manager) GetStdout(pid uint32) (text string, byteCount int, err error) {
	pio, ok := m.get(pid)
	if !ok {
		return "", 0, errs.New(errs.ProcessNotFound, "no capture state for pid")
	}
	b := pio.stdout.Bytes()
	return string(b), len(b), nil
}

func (m *Manager) GetStderr(pid uint32) (text string, byteCount int, err error) {
	pio, ok := m.get(pid)
	if !ok {
		return "", 0, errs.New(errs.ProcessNotFound, "no capture state for pid")
	}
	b := pio.stderr.Bytes()
	return string(b), len(b), nil
}

// GetOutput returns both streams together.
func (m *Manager) GetOutput(pid uint32) (stdout, stderr string, stdoutBytes, stderrBytes int, err error) {
	pio, ok := m.get(pid)
	if !ok {
		return "", "", 0, 0, errs.New(errs.ProcessNotFound, "no capture state for pid")
	}
	out := pio.stdout.Bytes()
	errb := pio.stderr.Bytes()
	return string(out), string(errb), len(out), len(errb), nil
}

// ClearBuffers empties both streams for pid without affecting stdin state.
func (m *Manager) ClearBuffers(pid uint32) error {
	pio, ok := m.get(pid)
	if !ok {
		return errs.New(errs.ProcessNotFound, "no capture state for pid")
	}
	pio.stdout.Clear()
	pio.stderr.Clear()
	return nil
}
