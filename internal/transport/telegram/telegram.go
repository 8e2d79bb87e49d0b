package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"postar/internal/transport"
	logx "postar/pkg/logx"
)

type Config struct {
	Token string
	// URL overrides the Bot API endpoint (tests, local bot API servers).
	URL string
	// RatePerSec caps API calls. <= 0 means 1/s.
	RatePerSec int
	// MaxFloodWait bounds how long a flood-wait retry may sleep. Default 60s.
	MaxFloodWait time.Duration
	HTTPClient   *http.Client
}

type Adapter struct {
	cfg     Config
	log     logx.Logger
	bot     *tele.Bot
	limiter *rate.Limiter
}

var _ transport.Sender = (*Adapter)(nil)

// New creates an offline bot: no getMe call, no polling.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.URL,
		Token:   cfg.Token,
		Client:  client,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	if cfg.MaxFloodWait <= 0 {
		cfg.MaxFloodWait = 60 * time.Second
	}
	return &Adapter{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// SendText sends text, split into several messages when it exceeds Telegram's limit.
// The reference of the first message is returned.
func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	chunks := splitText(text, textLimit, opt.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: to.ChatID}
	var first transport.MessageRef
	for i, chunk := range chunks {
		msg, err := a.send(ctx, chat, chunk, sendOptions(to, opt))
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// SendMedia uploads a local file with its caption.
func (a *Adapter) SendMedia(ctx context.Context, to transport.ChatTarget, m transport.Media, opt *transport.SendOptions) (transport.MessageRef, error) {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	if strings.TrimSpace(m.Path) == "" {
		return transport.MessageRef{}, errors.New("media path is empty")
	}
	file := tele.FromDisk(m.Path)

	var what any
	switch m.Kind {
	case transport.MediaPhoto:
		what = &tele.Photo{File: file, Caption: m.Caption}
	case transport.MediaVideo:
		what = &tele.Video{File: file, Caption: m.Caption, FileName: filepath.Base(m.Path)}
	case transport.MediaAnimation:
		what = &tele.Animation{File: file, Caption: m.Caption, FileName: filepath.Base(m.Path)}
	default:
		what = &tele.Document{File: file, Caption: m.Caption, FileName: filepath.Base(m.Path)}
	}

	msg, err := a.send(ctx, &tele.Chat{ID: to.ChatID}, what, sendOptions(to, opt))
	if err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}

// ResolveChat looks the chat up with getChat.
func (a *Adapter) ResolveChat(ctx context.Context, chatID int64) (transport.ChatInfo, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return transport.ChatInfo{}, err
	}
	c, err := a.bot.ChatByID(chatID)
	if err != nil {
		return transport.ChatInfo{}, fmt.Errorf("resolve chat %d: %w", chatID, err)
	}
	title := c.Title
	if title == "" {
		title = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	return transport.ChatInfo{ID: c.ID, Title: title, Username: c.Username, Type: string(c.Type)}, nil
}

func sendOptions(to transport.ChatTarget, opt *transport.SendOptions) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
}

// send waits for the limiter and retries once after a flood-wait response.
func (a *Adapter) send(ctx context.Context, to tele.Recipient, what any, opt *tele.SendOptions) (*tele.Message, error) {
	for attempt := 0; ; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		msg, err := a.bot.Send(to, what, opt)
		if err == nil {
			return msg, nil
		}
		var flood tele.FloodError
		if attempt > 0 || !errors.As(err, &flood) {
			return nil, err
		}
		wait := time.Duration(flood.RetryAfter) * time.Second
		if wait <= 0 || wait > a.cfg.MaxFloodWait {
			return nil, err
		}
		a.log.Warn("telegram flood wait", logx.Duration("retry_after", wait))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
