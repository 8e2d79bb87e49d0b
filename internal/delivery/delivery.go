// Package delivery turns a schedule firing into a sent message: draw a post, draw
// media for its type, prepare the file, send, record the outcome.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"postar/internal/content"
	"postar/internal/media"
	"postar/internal/schedule"
	"postar/internal/selector"
	"postar/internal/storage"
	"postar/internal/transport"
	logx "postar/pkg/logx"
)

// ErrNoMedia is recorded when a post type has no media pool.
var ErrNoMedia = errors.New("no media pool for post type")

// Drawer is the part of selector.Registry used here.
type Drawer interface {
	Draw(ctx context.Context, key string) (string, error)
	Has(key string) bool
}

// Auditor records delivery outcomes.
type Auditor interface {
	AppendDelivery(ctx context.Context, rec storage.DeliveryRecord) error
}

// Preparer turns a media path into an uploadable file.
type Preparer interface {
	Prepare(path string) (media.Prepared, error)
}

// Observer receives one call per finished delivery.
type Observer interface {
	Delivered(postType string, withMedia bool, err error)
}

type Config struct {
	Target       transport.ChatTarget
	CaptionLimit int // runes; longer posts go out as text only
}

type Service struct {
	cfg     Config
	pools   Drawer
	sender  transport.Sender
	prep    Preparer
	audit   Auditor
	obs     Observer
	log     logx.Logger
	now     func() time.Time
	newUUID func() string
}

func New(cfg Config, pools Drawer, sender transport.Sender, prep Preparer, audit Auditor, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.CaptionLimit <= 0 {
		cfg.CaptionLimit = 1024
	}
	return &Service{
		cfg:     cfg,
		pools:   pools,
		sender:  sender,
		prep:    prep,
		audit:   audit,
		log:     log,
		now:     time.Now,
		newUUID: uuid.NewString,
	}
}

// SetObserver installs o. Call before the first Deliver.
func (s *Service) SetObserver(o Observer) { s.obs = o }

// Deliver implements schedule.DeliverFunc.
//
// State persist failures are logged and do not abort the delivery: the item was
// drawn and the in-memory cycle stays correct.
func (s *Service) Deliver(ctx context.Context, f schedule.Fire) error {
	start := s.now()
	rec := storage.DeliveryRecord{
		ID:      s.newUUID(),
		At:      start,
		Trigger: f.Label,
		ChatID:  s.cfg.Target.ChatID,
	}
	err := s.deliver(ctx, &rec)
	rec.TookMS = s.now().Sub(start).Milliseconds()
	rec.OK = err == nil
	if err != nil {
		rec.Error = err.Error()
	}
	if s.audit != nil {
		if aerr := s.audit.AppendDelivery(ctx, rec); aerr != nil {
			s.log.Warn("delivery audit failed", logx.Err(aerr))
		}
	}
	if s.obs != nil {
		s.obs.Delivered(rec.PostType, rec.WithMedia, err)
	}
	if errors.Is(err, ErrNoMedia) {
		// Skipped, not failed: the post type is simply not routed.
		s.log.Warn("post skipped", logx.String("type", rec.PostType), logx.Err(err))
		return nil
	}
	return err
}

func (s *Service) deliver(ctx context.Context, rec *storage.DeliveryRecord) error {
	item, err := s.draw(ctx, selector.PostsKey)
	if err != nil {
		return err
	}
	post, ok := content.DecodePost(item)
	if !ok {
		return fmt.Errorf("malformed post item %q", truncate(item, 40))
	}
	rec.PostType = post.Type
	rec.PostHash = hashText(post.Text)

	mediaKey := selector.MediaKey(post.Type)
	if !s.pools.Has(mediaKey) {
		return fmt.Errorf("%w: %s", ErrNoMedia, post.Type)
	}
	path, err := s.draw(ctx, mediaKey)
	if err != nil {
		return err
	}
	rec.Media = path

	log := s.log.With(logx.String("type", post.Type), logx.String("media", path))
	log.Info("selected", logx.String("post", truncate(post.Text, 50)))

	withMedia := utf8.RuneCountInString(post.Text) <= s.cfg.CaptionLimit
	if !withMedia {
		log.Info("post exceeds caption limit; sending text only", logx.Int("limit", s.cfg.CaptionLimit))
	}

	var prepared media.Prepared
	if withMedia {
		prepared, err = s.prep.Prepare(path)
		if err != nil {
			log.Warn("media conversion failed; sending text only", logx.Err(err))
			withMedia = false
		} else {
			defer prepared.Cleanup()
		}
	}

	var ref transport.MessageRef
	if withMedia {
		ref, err = s.sender.SendMedia(ctx, s.cfg.Target, transport.Media{
			Path:    prepared.Path,
			Kind:    prepared.Kind,
			Caption: post.Text,
		}, nil)
	} else {
		ref, err = s.sender.SendText(ctx, s.cfg.Target, post.Text, nil)
	}
	rec.WithMedia = withMedia
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	rec.MessageID = ref.MessageID
	log.Info("delivered", logx.Bool("with_media", withMedia), logx.Int("message_id", ref.MessageID))
	return nil
}

func (s *Service) draw(ctx context.Context, key string) (string, error) {
	item, err := s.pools.Draw(ctx, key)
	if err != nil {
		if item == "" {
			return "", err
		}
		s.log.Warn("cycle progress not persisted", logx.String("pool", key), logx.Err(err))
	}
	return item, nil
}

func hashText(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
