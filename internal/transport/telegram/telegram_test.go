package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postar/internal/transport"
	logx "postar/pkg/logx"
)

// fakeAPI records Bot API method names and answers with canned results.
type fakeAPI struct {
	mu      sync.Mutex
	methods []string
	floods  atomic.Int32
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		f.mu.Lock()
		f.methods = append(f.methods, method)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if f.floods.Load() > 0 {
			f.floods.Add(-1)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`))
			return
		}
		if method == "getChat" {
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":-100,"type":"supergroup","title":"Promo Group","username":"promo"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100,"type":"supergroup"}` + mediaPayload[method] + `}}`))
	})
}

// mediaPayload is the media field the Bot API returns for each send method.
var mediaPayload = map[string]string{
	"sendPhoto":     `,"photo":[{"file_id":"p1","file_unique_id":"up1","width":10,"height":10,"file_size":16}]`,
	"sendVideo":     `,"video":{"file_id":"v1","file_unique_id":"uv1","width":10,"height":10,"duration":1}`,
	"sendAnimation": `,"animation":{"file_id":"g1","file_unique_id":"ug1","width":10,"height":10,"duration":1}`,
	"sendDocument":  `,"document":{"file_id":"d1","file_unique_id":"ud1","file_name":"a.png"}`,
}

func (f *fakeAPI) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	a, err := New(Config{Token: "123:abc", URL: srv.URL, RatePerSec: 100}, logx.Nop())
	require.NoError(t, err)
	return a, api
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Config{}, logx.Nop())
	assert.Error(t, err)
}

func TestAdapter_SendText(t *testing.T) {
	a, api := newTestAdapter(t)
	ref, err := a.SendText(context.Background(), transport.ChatTarget{ChatID: -100}, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, ref.MessageID)
	assert.Equal(t, int64(-100), ref.ChatID)
	assert.Equal(t, []string{"sendMessage"}, api.calls())
}

func TestAdapter_SendTextSplitsLongMessages(t *testing.T) {
	a, api := newTestAdapter(t)
	long := strings.Repeat("x", textLimit+10)
	_, err := a.SendText(context.Background(), transport.ChatTarget{ChatID: -100}, long, nil)
	require.NoError(t, err)
	assert.Len(t, api.calls(), 2)
}

func TestAdapter_SendMediaKinds(t *testing.T) {
	a, api := newTestAdapter(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(path, []byte("not really a png"), 0o600))

	to := transport.ChatTarget{ChatID: -100}
	for _, k := range []transport.MediaKind{transport.MediaPhoto, transport.MediaVideo, transport.MediaAnimation, transport.MediaDocument} {
		_, err := a.SendMedia(context.Background(), to, transport.Media{Path: path, Kind: k, Caption: "hi"}, nil)
		require.NoError(t, err, k)
	}
	assert.Equal(t, []string{"sendPhoto", "sendVideo", "sendAnimation", "sendDocument"}, api.calls())

	_, err := a.SendMedia(context.Background(), to, transport.Media{}, nil)
	assert.Error(t, err)
}

func TestAdapter_ResolveChat(t *testing.T) {
	a, _ := newTestAdapter(t)
	info, err := a.ResolveChat(context.Background(), -100)
	require.NoError(t, err)
	assert.Equal(t, "Promo Group", info.Name())
	assert.Equal(t, "promo", info.Username)
	assert.Equal(t, "supergroup", info.Type)
}

func TestAdapter_RetriesOnceAfterFloodWait(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for retry_after")
	}
	a, api := newTestAdapter(t)
	api.floods.Store(1)
	_, err := a.SendText(context.Background(), transport.ChatTarget{ChatID: -100}, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sendMessage", "sendMessage"}, api.calls())

	api.floods.Store(2)
	_, err = a.SendText(context.Background(), transport.ChatTarget{ChatID: -100}, "hi", nil)
	assert.Error(t, err)
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitText("short", 10, ""))

	parts := splitText("aaaa\nbbbb\ncccc", 10, "")
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, parts)

	// never cut inside a tag
	parts = splitText("abcdef <b>bold</b>", 9, "HTML")
	assert.Equal(t, []string{"abcdef ", "<b>bold", "</b>"}, parts)
}
