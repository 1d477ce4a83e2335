package tag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MirrorEntry is one tag's denormalized projection in the known-tags file.
// Timestamps are deliberately absent; the bridge only needs descriptive
// fields.
type MirrorEntry struct {
	Alias      string `json:"alias"`
	AliasGroup string `json:"alias_group"`
	RoomNumber string `json:"room_number"`
	Notes      string `json:"notes"`
	Status     string `json:"status"`
}

// Mirror reads and rewrites the known-tags JSON file shared with the
// reader bridge. All access goes through an advisory lock on a sidecar
// <path>.lock file: shared for reads, exclusive for writes. The lock file
// carries no content, it exists purely as a locking handle.
type Mirror struct {
	path string
}

// NewMirror creates a mirror handle for the given file path.
func NewMirror(path string) *Mirror {
	return &Mirror{path: path}
}

// Path returns the mirror file location.
func (m *Mirror) Path() string {
	return m.path
}

func (m *Mirror) lockPath() string {
	return m.path + ".lock"
}

// acquireLock opens the sidecar lock file and takes the requested flock.
// The caller must Close the returned file, which releases the lock.
func (m *Mirror) acquireLock(how int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(m.lockPath()), 0o750); err != nil {
		return nil, fmt.Errorf("creating mirror directory: %w", err)
	}

	f, err := os.OpenFile(m.lockPath(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening mirror lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking mirror: %w", err)
	}
	return f, nil
}

// Read loads the mirror under a shared lock. A missing file or malformed
// JSON yields an empty map, never an error: the store is the source of
// truth and a broken mirror must not block boot.
func (m *Mirror) Read() (map[string]MirrorEntry, error) {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		return map[string]MirrorEntry{}, nil
	}

	lock, err := m.acquireLock(unix.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer lock.Close()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]MirrorEntry{}, nil
		}
		return nil, fmt.Errorf("reading mirror: %w", err)
	}

	var entries map[string]MirrorEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Malformed mirror content is treated as empty.
		return map[string]MirrorEntry{}, nil
	}
	if entries == nil {
		entries = map[string]MirrorEntry{}
	}
	return entries, nil
}

// Write replaces the mirror with the full new content under an exclusive
// lock. The sequence — temp file in the same directory, fsync, rename over
// the target, directory fsync — guarantees a concurrent reader sees either
// the old document or the new one, never a partial write, and that the
// replacement survives power loss.
func (m *Mirror) Write(entries map[string]MirrorEntry) error {
	lock, err := m.acquireLock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer lock.Close()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding mirror: %w", err)
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating mirror temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing mirror temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing mirror temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing mirror temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o640); err != nil {
		return fmt.Errorf("setting mirror permissions: %w", err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		return fmt.Errorf("replacing mirror: %w", err)
	}

	// Sync the directory so the rename itself is durable.
	dirFile, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening mirror directory: %w", err)
	}
	defer dirFile.Close()
	if err := dirFile.Sync(); err != nil {
		return fmt.Errorf("syncing mirror directory: %w", err)
	}

	return nil
}
