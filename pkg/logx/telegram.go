package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"postar/internal/transport"
)

const (
	alertMaxLen   = 3500
	alertFieldLen = 500
	flushTimeout  = 2 * time.Second
)

type alert struct {
	to   transport.ChatTarget
	text string
}

// telegramSink is a zerolog.LevelWriter that forwards lines at or above a
// minimum level to a chat. Writes never block: excess lines are dropped.
type telegramSink struct {
	sender transport.TextSender
	host   string
	queue  chan alert

	mu       sync.Mutex
	to       transport.ChatTarget
	minLevel zerolog.Level
	limiter  *rate.Limiter

	start  sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func newTelegramSink(sender transport.TextSender) *telegramSink {
	host, _ := os.Hostname()
	return &telegramSink{
		sender: sender,
		host:   host,
		queue:  make(chan alert, 128),
		done:   make(chan struct{}),
	}
}

func (t *telegramSink) configure(cfg TelegramConfig) {
	rps := max(1, cfg.RatePerSec)
	t.mu.Lock()
	t.to = transport.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID}
	t.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	t.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	t.mu.Unlock()
	if cfg.Enabled {
		t.start.Do(t.run)
	}
}

func (t *telegramSink) run() {
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	go func() {
		defer close(t.done)
		for {
			select {
			case <-ctx.Done():
				t.flush()
				return
			case a := <-t.queue:
				t.send(context.Background(), a)
			}
		}
	}()
}

// flush sends whatever is queued, bounded by flushTimeout overall.
func (t *telegramSink) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case a := <-t.queue:
			t.send(ctx, a)
		default:
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (t *telegramSink) send(ctx context.Context, a alert) {
	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, _ = t.sender.SendText(sctx, a.to, a.text, &transport.SendOptions{DisablePreview: true})
}

func (t *telegramSink) close() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-t.done
}

func (t *telegramSink) Write(p []byte) (int, error) {
	return t.WriteLevel(zerolog.InfoLevel, p)
}

func (t *telegramSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	t.mu.Lock()
	to, minLevel, lim := t.to, t.minLevel, t.limiter
	t.mu.Unlock()

	if to.ChatID == 0 || level < minLevel || (lim != nil && !lim.Allow()) {
		return len(p), nil
	}
	text := formatAlert(t.host, p)
	if text == "" {
		return len(p), nil
	}
	select {
	case t.queue <- alert{to: to, text: text}:
	default:
	}
	return len(p), nil
}

// formatAlert renders one JSON log line as a short chat message:
//
//	[WARN host] message
//	key: value
func formatAlert(host string, p []byte) string {
	line := strings.TrimSpace(string(p))
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return clip(line, alertMaxLen)
	}

	var b strings.Builder
	level, _ := m["level"].(string)
	tag := strings.TrimSpace(strings.ToUpper(level) + " " + host)
	if tag != "" {
		b.WriteString("[" + tag + "] ")
	}
	msg, _ := m["message"].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message", zerolog.CallerFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, clip(fmt.Sprint(m[k]), alertFieldLen))
	}
	return clip(b.String(), alertMaxLen)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
