package content

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"postar/internal/config"
	logx "postar/pkg/logx"
)

// Library is everything loaded from disk at startup.
type Library struct {
	Posts []Post
	// Media maps post type to media files. Types without a directory are absent.
	Media map[string][]string
	// Dirs maps post type to the directory it was loaded from.
	Dirs map[string]string
}

// MediaDir returns the directory configured for a post type, falling back to the
// default directory.
func MediaDir(cfg config.MediaConfig, postType string) string {
	if d := strings.TrimSpace(cfg.Categories[postType]); d != "" {
		return d
	}
	return strings.TrimSpace(cfg.DefaultDir)
}

// Load reads the posts file and the media directory of every post type in use.
// Missing or empty media directories are errors: a post without media to pair with
// would be skipped every time it is drawn.
func Load(fs afero.Fs, cfg config.ContentConfig, log logx.Logger) (*Library, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	posts, err := LoadPosts(fs, cfg.PostsFile)
	if err != nil {
		return nil, err
	}
	lib := &Library{Posts: posts, Media: map[string][]string{}, Dirs: map[string]string{}}

	cache := map[string][]string{}
	for _, typ := range Types(posts) {
		dir := MediaDir(cfg.Media, typ)
		if dir == "" {
			log.Warn("post type has no media directory; its posts will be skipped", logx.String("type", typ))
			continue
		}
		files, ok := cache[dir]
		if !ok {
			files, err = ListMedia(fs, dir)
			if err != nil {
				return nil, fmt.Errorf("post type %s: %w", typ, err)
			}
			cache[dir] = files
		}
		lib.Media[typ] = files
		lib.Dirs[typ] = dir
	}
	log.Info("content loaded",
		logx.Int("posts", len(posts)),
		logx.Strings("types", lib.Types()),
		logx.Int("media_dirs", len(cache)))
	return lib, nil
}

// Types returns the post types that have media, sorted.
func (l *Library) Types() []string {
	out := make([]string, 0, len(l.Media))
	for t := range l.Media {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// PostItems returns the posts pool.
func (l *Library) PostItems() []string {
	out := make([]string, len(l.Posts))
	for i, p := range l.Posts {
		out[i] = p.Item()
	}
	return out
}
