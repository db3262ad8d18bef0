package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	mathrand "math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"chryso-hq/forms/pkg/retention"
)

// FileArchiver writes archives to the local filesystem. Each archive is a
// new file named <collection>-<organization>-<ulid>.<ext> inside the
// policy's archive location.
type FileArchiver struct {
	// root resolves relative archive locations and confines absolute
	// ones. Empty means the working directory, with absolute locations
	// unconfined.
	root string

	entropyMu sync.Mutex
	entropy   io.Reader

	now    func() time.Time
	logger *slog.Logger
}

// NewFileArchiver creates a file archiver rooted at root.
func NewFileArchiver(root string) *FileArchiver {
	return &FileArchiver{
		root:    root,
		entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
		now:     time.Now,
		logger:  slog.Default().With("component", "retention.archive"),
	}
}

// Archive serializes req.Records and writes them atomically: the data goes
// to a temporary file that is renamed into place only after a successful
// sync. The result reports the bytes on disk.
func (a *FileArchiver) Archive(ctx context.Context, req *retention.ArchiveRequest) (*retention.ArchiveResult, error) {
	if strings.TrimSpace(req.Location) == "" {
		return nil, fmt.Errorf("archive location is empty")
	}

	exporter, err := NewExporter(req.Format)
	if err != nil {
		return nil, err
	}

	dir, err := a.resolve(req.Location)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, retention.NewStorageError("file", "mkdir", err)
	}

	name := fmt.Sprintf("%s-%s-%s.%s",
		sanitize(req.Collection), sanitize(req.OrganizationID), a.newID(), exporter.Extension())
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".archive-*")
	if err != nil {
		return nil, retention.NewStorageError("file", "create", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	cw := &countingWriter{w: tmp}
	if err := exporter.Export(ctx, req.Records, cw); err != nil {
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		return nil, retention.NewStorageError("file", "sync", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, retention.NewStorageError("file", "close", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, retention.NewStorageError("file", "rename", err)
	}
	committed = true

	a.logger.Info("records archived",
		"archive_file", path,
		"format", req.Format,
		"record_count", len(req.Records),
		"bytes", cw.n,
	)

	return &retention.ArchiveResult{
		Path:    path,
		Bytes:   cw.n,
		Records: len(req.Records),
	}, nil
}

// resolve maps a location to a directory inside the archive root. With no
// root configured, absolute locations are used as given and relative ones
// must stay below the working directory.
func (a *FileArchiver) resolve(location string) (string, error) {
	location = strings.TrimPrefix(location, "file://")

	if !filepath.IsAbs(location) {
		if !filepath.IsLocal(location) {
			return "", retention.NewConfigurationError("", "archiveLocation",
				fmt.Sprintf("location %q escapes the archive root", location))
		}
		return filepath.Join(a.root, location), nil
	}
	if a.root == "" {
		return filepath.Clean(location), nil
	}

	root, err := filepath.Abs(a.root)
	if err != nil {
		return "", retention.NewStorageError("file", "resolve", err)
	}
	rel, err := filepath.Rel(root, location)
	if err != nil || (rel != "." && !filepath.IsLocal(rel)) {
		return "", retention.NewConfigurationError("", "archiveLocation",
			fmt.Sprintf("location %q is outside the archive root %s", location, root))
	}
	return filepath.Join(root, rel), nil
}

func (a *FileArchiver) newID() string {
	a.entropyMu.Lock()
	defer a.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(a.now()), a.entropy).String()
}

// sanitize keeps file names portable.
func sanitize(s string) string {
	if s == "" {
		return "all"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
