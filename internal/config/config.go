package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"kestrel/internal/limits"
)

// FileName is the manifest looked up by FindAndLoad.
const FileName = "kestrel.toml"

type Manifest struct {
	Project Project     `toml:"project"`
	Limits  LimitConfig `toml:"limits"`
	Log     LogConfig   `toml:"log"`

	// Dir is the absolute directory holding the manifest.
	Dir string `toml:"-"`
}

type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// LimitConfig mirrors limits.Limits. Zero keeps the VM default.
type LimitConfig struct {
	MaxFrames int   `toml:"max_frames"`
	StackSize int   `toml:"stack_size"`
	MaxSteps  int64 `toml:"max_steps"`
	MaxMemory int64 `toml:"max_memory"`
}

type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) validate() error {
	l := m.Limits
	switch {
	case l.MaxFrames < 0:
		return errors.New("limits.max_frames must not be negative")
	case l.StackSize < 0:
		return errors.New("limits.stack_size must not be negative")
	case l.MaxSteps < 0:
		return errors.New("limits.max_steps must not be negative")
	case l.MaxMemory < 0:
		return errors.New("limits.max_memory must not be negative")
	}
	return nil
}

// FindAndLoad walks up from dir looking for kestrel.toml. Without one it
// returns an empty manifest rooted at dir.
func FindAndLoad(dir string) (*Manifest, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for cur := start; ; {
		path := filepath.Join(cur, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadManifest(path)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return &Manifest{Dir: start}, nil
		}
		cur = parent
	}
}

// EntryPath is the project's entry script, or "" when none is configured.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Project.Entry) {
		return m.Project.Entry
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

// VMLimits fills unset fields from limits.Default.
func (m *Manifest) VMLimits() limits.Limits {
	l := limits.Default()
	if m.Limits.MaxFrames > 0 {
		l.MaxFrames = m.Limits.MaxFrames
	}
	if m.Limits.StackSize > 0 {
		l.StackSize = m.Limits.StackSize
	}
	l.MaxSteps = m.Limits.MaxSteps
	l.MaxMemory = m.Limits.MaxMemory
	return l
}
