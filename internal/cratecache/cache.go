// Package cratecache keeps downloaded crate archives on disk, keyed by crate
// name and version, and unpacks them into build directories.
package cratecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/hochfrequenz/revdep-regress/internal/domain"
	"github.com/hochfrequenz/revdep-regress/internal/failure"
)

// ArchiveExt is the extension of cached crate archives
const ArchiveExt = ".crate"

// Downloader fetches the archive bytes of one crate version
type Downloader interface {
	Download(ctx context.Context, name, version string) ([]byte, error)
}

// Config configures the cache
type Config struct {
	Root  string
	Debug bool
}

// Cache is an on-disk archive cache. Entries are created on first fetch and
// never invalidated. Two workers fetching the same missing entry at the same
// time may both download it; the last rename wins.
type Cache struct {
	config     Config
	downloader Downloader
}

// New creates a cache rooted at config.Root
func New(config Config, downloader Downloader) *Cache {
	return &Cache{config: config, downloader: downloader}
}

// Path returns where the archive for rd is stored.
func (c *Cache) Path(rd domain.RevDep) string {
	return filepath.Join(c.config.Root, rd.Name, fmt.Sprintf("%s-%s%s", rd.Name, rd.Version, ArchiveExt))
}

// Fetch returns a handle to the archive for rd, downloading it only when it
// is not cached yet.
func (c *Cache) Fetch(ctx context.Context, rd domain.RevDep) (*Handle, error) {
	path := c.Path(rd)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, failure.IO("creating cache dir "+dir, err)
	}

	if _, err := os.Stat(path); err == nil {
		if c.config.Debug {
			log.Printf("[cache] hit %s", path)
		}
		return &Handle{path: path}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, failure.IO("stat "+path, err)
	}

	body, err := c.downloader.Download(ctx, rd.Name, rd.Version)
	if err != nil {
		return nil, err
	}
	if c.config.Debug {
		log.Printf("[cache] downloaded %s (%s)", rd, humanize.Bytes(uint64(len(body))))
	}

	if err := writeAtomic(path, body); err != nil {
		return nil, err
	}
	return &Handle{path: path}, nil
}

// writeAtomic writes data next to path and renames it into place so a reader
// never sees a partial archive.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return failure.IO("creating "+path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return failure.IO("writing "+tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return failure.IO("closing "+tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return failure.IO("renaming "+tmpName, err)
	}
	return nil
}

// Handle refers to a cached archive
type Handle struct {
	path string
}

// Path returns the archive location.
func (h *Handle) Path() string {
	return h.path
}

// UnpackTo extracts the archive into dst, dropping the single top-level
// directory crate archives wrap their content in.
func (h *Handle) UnpackTo(ctx context.Context, dst string) error {
	cmd := exec.CommandContext(ctx, "tar", "xzf", h.path, "--strip-components=1", "-C", dst)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return failure.Process("tar xzf "+h.path, stderr.String())
	}
	return failure.IO("running tar", err)
}
