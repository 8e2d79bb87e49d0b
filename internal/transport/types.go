package transport

import "context"

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// MediaKind tells the transport which upload method to use for a file.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaAnimation MediaKind = "animation"
	MediaDocument  MediaKind = "document"
)

// Media is a local file to upload together with an optional caption.
type Media struct {
	Path    string
	Kind    MediaKind
	Caption string
}

// ChatInfo is what the transport could resolve about a destination chat.
type ChatInfo struct {
	ID       int64
	Title    string
	Username string
	Type     string
}

// Name returns the most readable label for the chat.
func (c ChatInfo) Name() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Username != "":
		return "@" + c.Username
	default:
		return "unknown"
	}
}

// TextSender is the narrow port used by log sinks.
type TextSender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// Sender delivers posts to a destination chat.
type Sender interface {
	TextSender
	SendMedia(ctx context.Context, to ChatTarget, m Media, opt *SendOptions) (MessageRef, error)
	ResolveChat(ctx context.Context, chatID int64) (ChatInfo, error)
}
