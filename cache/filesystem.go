package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileBackend stores one file per key under dir/<shard>/<name>, where shard
// is the first two characters of the name ("00" for shorter names).
//
// Each file holds a JSON document with the absolute expiry in float seconds
// since the epoch and the encoded value. Writes go to a temporary file in
// the shard directory and are renamed into place, so readers never observe
// a partial entry. There is no size bound; growth is left to the operator.
type FileBackend struct {
	dir string
	now func() time.Time
}

type fileEntry struct {
	ExpiresAt float64 `json:"expires_at"`
	Value     []byte  `json:"value"`
}

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// NewFileBackend creates a filesystem backend rooted at dir, creating the
// directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: filesystem backend requires a directory", ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrBackendUnavailable, dir, err)
	}
	return &FileBackend{dir: dir, now: time.Now}, nil
}

// Kind returns KindFilesystem.
func (f *FileBackend) Kind() Kind { return KindFilesystem }

// Dir returns the root directory.
func (f *FileBackend) Dir() string { return f.dir }

// Path returns the file that holds key.
func (f *FileBackend) Path(key string) string {
	name := fileName(key)
	return filepath.Join(f.dir, shardOf(name), name)
}

// Get reads the entry for key. Expired and undecodable files are removed;
// the latter are reported as ErrCorrupted.
func (f *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := f.Path(key)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, false, fmt.Errorf("%w: read %s: %w", ErrBackendUnavailable, path, err)
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(path)
		return nil, false, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}

	if expired(f.now(), fromEpochSeconds(entry.ExpiresAt)) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Set writes the entry for key, creating its shard directory if absent.
func (f *FileBackend) Set(_ context.Context, key string, payload []byte, expiresAt time.Time) error {
	data, err := json.Marshal(fileEntry{ExpiresAt: toEpochSeconds(expiresAt), Value: payload})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}

	path := f.Path(key)
	shard := filepath.Dir(path)
	if err := os.MkdirAll(shard, dirPerm); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrBackendUnavailable, shard, err)
	}

	tmp, err := os.CreateTemp(shard, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %w", ErrBackendUnavailable, tmpPath, err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: rename %s: %w", ErrBackendUnavailable, path, err)
	}
	return nil
}

// Delete removes the file for key and reports whether it existed.
func (f *FileBackend) Delete(_ context.Context, key string) (bool, error) {
	err := os.Remove(f.Path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
}

// Clear removes everything under the root directory, keeping the root.
func (f *FileBackend) Clear(context.Context) error {
	children, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	var errs []error
	for _, child := range children {
		if err := os.RemoveAll(filepath.Join(f.dir, child.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return nil
}

// Ping verifies the root directory is writable.
func (f *FileBackend) Ping(context.Context) error {
	probe, err := os.CreateTemp(f.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return nil
}

// Close is a no-op; entries persist for the next instance.
func (f *FileBackend) Close() error { return nil }

// fileName maps a normalized key to a single safe path element. Escaping
// is injective, so distinct keys never share a file. ASCII capitals are
// escaped too, so names stay distinct on case-insensitive filesystems. The
// names "", "." and "..", which escaping leaves unchanged, are replaced by a
// digest behind a "%_" prefix; escaping always follows '%' with two
// uppercase hex digits.
func fileName(key string) string {
	name := escapeUpper(url.PathEscape(key))
	switch name {
	case "", ".", "..":
		sum := md5.Sum([]byte(key))
		return "%_" + hex.EncodeToString(sum[:])
	}
	return name
}

// escapeUpper percent-encodes ASCII capitals in an already escaped name,
// leaving existing %XX sequences intact.
func escapeUpper(name string) string {
	if !strings.ContainsFunc(name, isUpperASCII) {
		return name
	}
	var b strings.Builder
	b.Grow(len(name) + 8)
	for i := 0; i < len(name); i++ {
		switch c := name[i]; {
		case c == '%' && i+2 < len(name):
			b.WriteString(name[i : i+3])
			i += 2
		case isUpperASCII(rune(c)):
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isUpperASCII(r rune) bool { return 'A' <= r && r <= 'Z' }

func shardOf(name string) string {
	if len(name) < 2 {
		return "00"
	}
	return name[:2]
}

func toEpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpochSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

var (
	_ Backend = (*FileBackend)(nil)
	_ Pinger  = (*FileBackend)(nil)
)
