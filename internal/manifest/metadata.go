package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/openmined/gamebox/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	PlatformWindows = "windows"
	PlatformLinux   = "linux"
	PlatformMacOS   = "darwin"
)

// Metadata describes a game beyond its file list. It is stored as YAML next
// to the manifest on the server and travels as JSON.
type Metadata struct {
	Name        string            `yaml:"name" json:"name"`
	Engine      EngineKind        `yaml:"engine" json:"engine"`
	Executables map[string]string `yaml:"executables,omitempty" json:"executables,omitempty"`
	SyncFolders []string          `yaml:"sync_folders,omitempty" json:"sync_folders,omitempty"`
	Excludes    []string          `yaml:"excludes,omitempty" json:"excludes,omitempty"`
}

// Folders returns the declared sync folder templates, falling back to the
// engine defaults.
func (m *Metadata) Folders() []string {
	if len(m.SyncFolders) > 0 {
		return m.SyncFolders
	}
	return m.Engine.DefaultSyncFolders(m.Name)
}

// ExcludePatterns returns declared excludes plus the engine defaults.
func (m *Metadata) ExcludePatterns() []string {
	return append(append([]string(nil), m.Excludes...), m.Engine.DefaultExcludes()...)
}

// Executable returns the executable for a platform (GOOS value).
func (m *Metadata) Executable(platform string) (string, bool) {
	exe, ok := m.Executables[platform]
	return exe, ok && exe != ""
}

// WindowsOnly reports whether the game ships only a Windows executable.
func (m *Metadata) WindowsOnly() bool {
	if _, ok := m.Executable(PlatformWindows); !ok {
		return false
	}
	for platform, exe := range m.Executables {
		if platform != PlatformWindows && exe != "" {
			return false
		}
	}
	return true
}

func DecodeMetadata(r io.Reader) (*Metadata, error) {
	var m Metadata
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return &m, nil
		}
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &m, nil
}

func LoadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeMetadata(f)
}

// Save writes the metadata as YAML.
func (m *Metadata) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, time.Time{}, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
}
