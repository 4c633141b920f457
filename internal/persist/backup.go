package persist

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/xtding233/heelshift/internal/model"
)

const (
	backupPrefix = "heels-"
	backupSuffix = ".yaml.zst"
)

var ErrBackupName = errors.New("invalid backup name")

// Backup writes doc as zstd compressed YAML into the backup directory and
// returns the file path.
func (l *Loader) Backup(doc model.Document, now time.Time) (string, error) {
	b, err := encode(doc)
	if err != nil {
		return "", err
	}
	dir := l.paths.BackupDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, backupPrefix+now.UTC().Format("20060102-150405.000")+backupSuffix)

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return "", err
	}
	if _, err := enc.Write(b); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}

// LoadBackup reads a document written by Backup.
func LoadBackup(path string) (model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Document{}, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return model.Document{}, err
	}
	defer dec.Close()
	b, err := io.ReadAll(dec)
	if err != nil {
		return model.Document{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	doc, err := decode(b)
	if err != nil {
		return model.Document{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// Backups lists the backup file names, newest first. A missing backup
// directory yields an empty list.
func (l *Loader) Backups() ([]string, error) {
	entries, err := os.ReadDir(l.paths.BackupDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && validBackupName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	// timestamps sort lexically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// OpenBackup loads the backup called name from the backup directory.
func (l *Loader) OpenBackup(name string) (model.Document, error) {
	if !validBackupName(name) {
		return model.Document{}, fmt.Errorf("%q: %w", name, ErrBackupName)
	}
	return LoadBackup(filepath.Join(l.paths.BackupDir(), name))
}

func validBackupName(name string) bool {
	return name == filepath.Base(name) &&
		strings.HasPrefix(name, backupPrefix) &&
		strings.HasSuffix(name, backupSuffix)
}
