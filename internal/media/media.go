// Package media prepares media files for upload.
package media

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/image/webp"

	"postar/internal/transport"
)

// KindOf picks the upload method from the file extension.
func KindOf(path string) transport.MediaKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return transport.MediaVideo
	case ".gif":
		return transport.MediaAnimation
	case ".jpg", ".jpeg", ".png", ".webp":
		return transport.MediaPhoto
	default:
		return transport.MediaDocument
	}
}

// Prepared is a file ready for upload. Cleanup removes any temporary file and is
// always safe to call.
type Prepared struct {
	Path    string
	Kind    transport.MediaKind
	Cleanup func()
}

// Converter turns source media into something the transport accepts.
type Converter struct {
	Fs afero.Fs
	// TempDir receives converted files. Empty means os.TempDir().
	TempDir string
}

// Prepare returns path unchanged unless it is a WebP image, which is re-encoded as a
// temporary PNG.
func (c Converter) Prepare(path string) (Prepared, error) {
	if strings.ToLower(filepath.Ext(path)) != ".webp" {
		return Prepared{Path: path, Kind: KindOf(path), Cleanup: func() {}}, nil
	}
	out, err := c.webpToPNG(path)
	if err != nil {
		return Prepared{}, err
	}
	fs := c.fs()
	return Prepared{
		Path:    out,
		Kind:    transport.MediaPhoto,
		Cleanup: func() { _ = fs.Remove(out) },
	}, nil
}

func (c Converter) fs() afero.Fs {
	if c.Fs == nil {
		return afero.NewOsFs()
	}
	return c.Fs
}

func (c Converter) webpToPNG(path string) (string, error) {
	fs := c.fs()
	in, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	img, err := webp.Decode(in)
	if err != nil {
		return "", fmt.Errorf("decode webp %s: %w", path, err)
	}

	dir := c.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out, err := afero.TempFile(fs, dir, "postar-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp png: %w", err)
	}
	name := out.Name()
	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		_ = fs.Remove(name)
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = fs.Remove(name)
		return "", err
	}
	return name, nil
}
