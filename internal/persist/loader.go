package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/xtding233/heelshift/internal/model"
)

// Paths helper for the config file, backups and history database.
type Paths struct {
	BaseDir string // base directory, e.g., /opt/heelshift/config
}

func (p Paths) ConfigPath() string {
	return filepath.Join(p.BaseDir, "heels.yaml")
}
func (p Paths) BackupDir() string {
	return filepath.Join(p.BaseDir, "backups")
}
func (p Paths) HistoryPath() string {
	return filepath.Join(p.BaseDir, "history.db")
}

// Loader reads and writes the YAML configuration document.
type Loader struct {
	paths Paths

	mu sync.Mutex // serializes writes
}

// NewLoader creates a config loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{paths: Paths{BaseDir: baseDir}}
}

func (l *Loader) Paths() Paths { return l.paths }

// Load reads the document. A missing file yields the default document.
// The result is schema checked, validated and normalized.
func (l *Loader) Load() (model.Document, error) {
	b, err := os.ReadFile(l.paths.ConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.DefaultDocument(), nil
		}
		return model.Document{}, err
	}
	doc, err := decode(b)
	if err != nil {
		return model.Document{}, fmt.Errorf("heels.yaml: %w", err)
	}
	return doc, nil
}

// Save validates doc and writes it atomically.
func (l *Loader) Save(doc model.Document) error {
	b, err := encode(doc)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return writeFileAtomic(l.paths.ConfigPath(), b)
}

func decode(b []byte) (model.Document, error) {
	if err := CheckSchema(b); err != nil {
		return model.Document{}, err
	}
	doc := model.DefaultDocument()
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return model.Document{}, err
	}
	if err := Validate(doc); err != nil {
		return model.Document{}, err
	}
	Normalize(&doc)
	return doc, nil
}

func encode(doc model.Document) ([]byte, error) {
	if doc.Version == 0 {
		doc.Version = model.DocumentVersion
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// Normalize repairs invariants that may be broken in hand-edited files.
func Normalize(doc *model.Document) {
	if doc.Characters == nil {
		doc.Characters = make(map[model.WorldID]map[string]*model.EntityConfig)
	}
	for world, chars := range doc.Characters {
		for name, cfg := range chars {
			if cfg == nil {
				delete(chars, name)
				continue
			}
			cfg.Normalize()
		}
		if len(chars) == 0 {
			delete(doc.Characters, world)
		}
	}
	groups := doc.Groups[:0]
	for _, g := range doc.Groups {
		if g == nil {
			continue
		}
		g.Normalize()
		groups = append(groups, g)
	}
	doc.Groups = groups
}

func writeFileAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
