// Package utils contains the file logger, filesystem path layout, and NAT
// helpers shared by the qsec binaries.
package utils

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Paths resolves filesystem locations used by qsec.
type Paths struct {
	RootPath string `json:"root_path" yaml:"root_path"`
}

// NewPaths constructs Paths rooted at the specified directory.
func NewPaths(rootPath string) *Paths {
	return &Paths{RootPath: rootPath}
}

// LogsDir returns the logs directory.
func (p *Paths) LogsDir() string {
	return filepath.Join(p.RootPath, "logs")
}

// LogFile returns the API server log file path.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogsDir(), "qsec.log")
}

// AgentLogFile returns the polling agent log file path.
func (p *Paths) AgentLogFile() string {
	return filepath.Join(p.LogsDir(), "qsec-agent.log")
}

// Resolve locates a file named in the configuration. Absolute paths are
// returned cleaned; relative ones are taken from the root and must stay
// inside it.
func (p *Paths) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("empty path")
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	if strings.TrimSpace(p.RootPath) == "" {
		return "", errors.New("root path is not set")
	}
	root := filepath.Clean(p.RootPath)
	candidate := filepath.Join(root, name)
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s escapes root %s", name, root)
	}
	return candidate, nil
}
