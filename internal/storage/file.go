package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	logx "postar/pkg/logx"
)

const defaultStatePath = "./state.json"

// fileStore keeps the state in a single JSON document.
//
// Files:
//   - <path>                      (state, rewritten via <path>.tmp + rename)
//   - <prefix>.deliveries.jsonl   (append-only JSON Lines)
type fileStore struct {
	log logx.Logger
	fs  afero.Fs

	path         string
	deliveryPath string
	deliveryMu   sync.Mutex
	deliveryFile afero.File
	saveMu       sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultStatePath
	}
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	deliveryPath := prefix + ".deliveries.jsonl"
	df, err := fs.OpenFile(deliveryPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open delivery log: %w", err)
	}

	return &fileStore{
		log:          log,
		fs:           fs,
		path:         path,
		deliveryPath: deliveryPath,
		deliveryFile: df,
	}, nil
}

func (s *fileStore) Load(ctx context.Context) State {
	_ = ctx
	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("state unreadable; starting fresh", logx.String("path", s.path), logx.Err(err))
		}
		return State{}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return State{}
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		s.log.Warn("state corrupt; starting fresh", logx.String("path", s.path), logx.Err(err))
		return State{}
	}
	if st == nil {
		st = State{}
	}
	return st
}

func (s *fileStore) Save(ctx context.Context, st State) error {
	_ = ctx
	if st == nil {
		st = State{}
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStatePersist, err)
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	tmp := s.path + ".tmp"
	if err := writeSync(s.fs, tmp, append(b, '\n')); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStatePersist, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: rename: %v", ErrStatePersist, err)
	}
	return nil
}

func writeSync(fs afero.Fs, path string, b []byte) error {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *fileStore) AppendDelivery(ctx context.Context, rec DeliveryRecord) error {
	_ = ctx
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.deliveryMu.Lock()
	defer s.deliveryMu.Unlock()
	if s.deliveryFile == nil {
		return errors.New("delivery log closed")
	}
	_, err = s.deliveryFile.Write(append(b, '\n'))
	return err
}

// RecentDeliveries returns up to limit records, newest first.
// Malformed lines are skipped.
func (s *fileStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	_ = ctx
	if limit <= 0 {
		return nil, nil
	}
	s.deliveryMu.Lock()
	defer s.deliveryMu.Unlock()

	f, err := s.fs.Open(s.deliveryPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	ring := make([]DeliveryRecord, 0, limit)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec DeliveryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if len(ring) == limit {
			copy(ring, ring[1:])
			ring = ring[:limit-1]
		}
		ring = append(ring, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	out := make([]DeliveryRecord, 0, len(ring))
	for i := len(ring) - 1; i >= 0; i-- {
		out = append(out, ring[i])
	}
	return out, nil
}

func (s *fileStore) Close() error {
	s.deliveryMu.Lock()
	defer s.deliveryMu.Unlock()
	if s.deliveryFile == nil {
		return nil
	}
	err := s.deliveryFile.Close()
	s.deliveryFile = nil
	return err
}
