package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrProcessRunning means the pid file belongs to a live process.
	ErrProcessRunning = errors.New("process already running")
	// ErrNoProcess means the pid file is missing or names a dead process.
	ErrNoProcess = errors.New("no running process")
)

// PIDFile records the pid of a running provider so the reload command can
// signal it.
type PIDFile struct {
	path string
}

func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

func (p *PIDFile) Path() string { return p.path }

// Read returns the pid stored in the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s does not exist", ErrNoProcess, p.path)
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s: %q", p.path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Write stores the current pid. A file left behind by a dead process is
// overwritten; one owned by another live process is not.
func (p *PIDFile) Write() error {
	if pid, err := p.Read(); err == nil && pid != os.Getpid() && alive(pid) {
		return fmt.Errorf("%w: pid %d in %s", ErrProcessRunning, pid, p.path)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// Remove deletes the file if it still holds the current pid.
func (p *PIDFile) Remove() error {
	pid, err := p.Read()
	if err != nil {
		if errors.Is(err, ErrNoProcess) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return os.Remove(p.path)
}

// Signal sends sig to the process named in the file.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return err
	}
	if !alive(pid) {
		return fmt.Errorf("%w: pid %d", ErrNoProcess, pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("process not found: %w", err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	return nil
}

func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
