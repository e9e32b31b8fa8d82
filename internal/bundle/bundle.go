// Package bundle reads files from the TrayMinder package: either an unpacked
// directory or a zip archive (.zip, .xpi). Any entry may instead be stored
// gzip-compressed under "<name>.gz".
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

const (
	// HelperDir is the directory inside the bundle holding the helper.
	HelperDir = "helper"
	// IconName is the tray icon shipped next to the helper.
	IconName = "icon.ico"

	gzSuffix = ".gz"
)

// ErrNotFound is returned when an entry is missing from the bundle.
var ErrNotFound = errors.New("bundle entry not found")

// HelperExeName returns the helper executable name for goos.
func HelperExeName(goos string) string {
	if goos == "windows" {
		return "trayhelper.exe"
	}
	return "trayhelper"
}

// Bundle is a read-only view of the package contents.
type Bundle struct {
	path  string
	isDir bool
}

// Open opens a bundle directory or archive.
func Open(p string) (*Bundle, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	if info.IsDir() {
		return &Bundle{path: p, isDir: true}, nil
	}

	// Validate the archive up front so a broken package fails at startup.
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle archive %s: %w", p, err)
	}
	zr.Close()
	return &Bundle{path: p}, nil
}

// Path returns where the bundle lives on disk.
func (b *Bundle) Path() string {
	return b.path
}

// ReadFile returns the contents of the slash-separated entry name.
func (b *Bundle) ReadFile(name string) ([]byte, error) {
	name = path.Clean(strings.TrimPrefix(name, "/"))

	data, err := b.readRaw(name)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	compressed, gzErr := b.readRaw(name + gzSuffix)
	if gzErr != nil {
		if errors.Is(gzErr, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, gzErr
	}
	return gunzip(compressed)
}

func (b *Bundle) readRaw(name string) ([]byte, error) {
	if b.isDir {
		data, err := os.ReadFile(filepath.Join(b.path, filepath.FromSlash(name)))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return data, err
	}

	zr, err := zip.OpenReader(b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, ErrNotFound
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// Extract copies the entry name to dst, replacing any existing file.
func (b *Bundle) Extract(name, dst string, perm os.FileMode) error {
	data, err := b.ReadFile(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	// Remove first: a previous helper may still be mapped read-only.
	_ = os.Remove(dst)
	if err := os.WriteFile(dst, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// ExtractHelper copies the helper executable and its icon into dir and
// returns the executable path.
func (b *Bundle) ExtractHelper(dir string) (string, error) {
	log := logger.WithComponent("bundle")

	exe := HelperExeName(runtime.GOOS)
	exePath := filepath.Join(dir, exe)
	if err := b.Extract(path.Join(HelperDir, exe), exePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to extract helper: %w", err)
	}
	if err := b.Extract(path.Join(HelperDir, IconName), filepath.Join(dir, IconName), 0o644); err != nil {
		// The helper falls back to a built-in icon.
		log.Warn().Err(err).Msg("failed to extract tray icon")
	}

	log.Debug().Str("path", exePath).Str("bundle", b.path).Msg("helper extracted")
	return exePath, nil
}
