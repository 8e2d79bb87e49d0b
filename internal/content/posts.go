package content

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/spf13/afero"
)

// DefaultType is the type of posts without a type tag.
const DefaultType = "default"

// ErrNoContent is returned when a pool source yields no items.
var ErrNoContent = errors.New("no content")

// Post is one post block.
type Post struct {
	Type string
	Text string
}

var (
	blockRe = regexp.MustCompile(`(?s)--[ \t]*INICIO(.*?)--[ \t]*FIM`)
	typeRe  = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)
)

// ParsePosts extracts every INICIO/FIM block of data. Empty blocks are skipped.
//
// The first word after INICIO is the type when more text follows it, on the same
// line or below; a lone word is the text of an untyped post.
func ParsePosts(data string) []Post {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	var out []Post
	for _, m := range blockRe.FindAllStringSubmatch(data, -1) {
		body := m[1]
		typ := DefaultType
		if word, rest := splitType(body); word != "" {
			typ, body = word, rest
		}
		text := strings.TrimSpace(body)
		if text == "" {
			continue
		}
		out = append(out, Post{Type: typ, Text: text})
	}
	return out
}

// splitType takes the type word off the INICIO line.
func splitType(body string) (word, rest string) {
	head, below, found := strings.Cut(body, "\n")
	head = strings.TrimLeft(head, " \t")
	word, rest = head, ""
	if end := strings.IndexFunc(head, unicode.IsSpace); end >= 0 {
		word, rest = head[:end], head[end:]
	}
	if found {
		rest += "\n" + below
	}
	if word == "" || !typeRe.MatchString(word) || strings.TrimSpace(rest) == "" {
		return "", ""
	}
	return word, rest
}

// LoadPosts reads and parses the posts file.
func LoadPosts(fs afero.Fs, path string) ([]Post, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read posts %s: %w", path, err)
	}
	posts := ParsePosts(string(b))
	if len(posts) == 0 {
		return nil, fmt.Errorf("%w: no posts in %s", ErrNoContent, path)
	}
	return posts, nil
}

// Item encodes p as a pool item ("type:text").
func (p Post) Item() string { return p.Type + ":" + p.Text }

// DecodePost reverses Post.Item.
func DecodePost(item string) (Post, bool) {
	typ, text, ok := strings.Cut(item, ":")
	if !ok || typ == "" {
		return Post{}, false
	}
	return Post{Type: typ, Text: text}, true
}

// Types returns the distinct post types in first-seen order.
func Types(posts []Post) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range posts {
		if !seen[p.Type] {
			seen[p.Type] = true
			out = append(out, p.Type)
		}
	}
	return out
}
