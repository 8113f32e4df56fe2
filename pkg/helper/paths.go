// Package helper resolves where the provider finds its files.
package helper

import (
	"os"
	"path/filepath"
)

const (
	DefaultConfigDir = "/etc/mdprovider"
	DefaultPIDPath   = "/var/run/mdprovider.pid"
)

// GetCfgPath returns the configuration file to load: an absolute filename as
// is, else the first existing ./{filename} or ./configs/{filename}, else the
// file under DefaultConfigDir.
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	if p, ok := firstExisting(filename, filepath.Join("configs", filename)); ok {
		return p
	}
	return filepath.Join(DefaultConfigDir, filename)
}

// GetPIDPath returns where the PID file goes: an absolute filename as is,
// else filename under the working directory when its parent exists, else
// DefaultPIDPath.
func GetPIDPath(filename string) string {
	if filename == "" {
		return DefaultPIDPath
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return DefaultPIDPath
	}
	if _, err := os.Stat(filepath.Dir(abs)); err != nil {
		return DefaultPIDPath
	}
	return abs
}

func firstExisting(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if _, err := os.Stat(c); err != nil {
			continue
		}
		if abs, err := filepath.Abs(c); err == nil {
			return abs, true
		}
	}
	return "", false
}
