package content

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// MediaExtensions lists the accepted media file extensions (lower case).
var MediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".webp": true, ".tiff": true, ".svg": true, ".heic": true, ".mp4": true,
}

// IsMedia reports whether name has an accepted extension.
func IsMedia(name string) bool {
	return MediaExtensions[strings.ToLower(filepath.Ext(name))]
}

// ListMedia returns the media files directly inside dir, sorted by name.
func ListMedia(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("list media %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsMedia(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no media files in %s", ErrNoContent, dir)
	}
	return out, nil
}
