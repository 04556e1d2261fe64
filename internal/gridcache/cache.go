package gridcache

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/i474232898/offshore-forecast/internal/modelrun"
)

const ext = ".grib2"

// GridFile is one cached forecast-hour file.
type GridFile struct {
	Product string
	Target  string
	Run     modelrun.Run
	Hour    int
	Path    string
}

// Cache maps (product, target, run, hour) to files in a flat directory.
// A file's presence is the only validity signal; writes are atomic so a
// present file is always complete.
type Cache struct {
	dir string
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create grid cache dir %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Dir is the cache directory.
func (c *Cache) Dir() string { return c.dir }

// PathFor returns the deterministic path for a forecast-hour file, e.g.
// gfs_wind_44025_20240501_12z_f003.grib2.
func (c *Cache) PathFor(product, target string, run modelrun.Run, hour int) string {
	name := fmt.Sprintf("%s_%s_%s_f%03d%s", product, sanitize(target), run.Key(), hour, ext)
	return filepath.Join(c.dir, name)
}

// Valid reports whether path holds a cached file.
func (c *Cache) Valid(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Save writes content to path through a temporary file and a rename, so readers
// and cleanup never see a partially written grid file.
func (c *Cache) Save(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".part-" + uuid.NewString()
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Remove deletes a cached file, e.g. one that turned out to be undecodable so
// that the next acquisition fetches it again.
func (c *Cache) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Cleanup deletes every cached grid file that belongs to none of the keep runs.
// In-flight temporary files are left alone. It returns the number of files removed.
func (c *Cache) Cleanup(keep ...modelrun.Run) int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		log.Printf("ERROR: gridcache: cleanup read %s: %v", c.dir, err)
		return 0
	}

	deleted := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) || belongsTo(name, keep) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
			log.Printf("ERROR: gridcache: delete %s: %v", name, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		log.Printf("INFO: gridcache: cleaned up %d files from previous model runs", deleted)
	}
	return deleted
}

func belongsTo(name string, runs []modelrun.Run) bool {
	for _, r := range runs {
		if strings.Contains(name, "_"+r.Key()+"_f") {
			return true
		}
	}
	return false
}

// sanitize keeps target identifiers usable as a single path element.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
