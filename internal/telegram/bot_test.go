package telegram_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rfidattend/internal/telegram"
)

// fakeBotAPI answers getMe and records sendMessage/setMyCommands calls.
type fakeBotAPI struct {
	mu      sync.Mutex
	calls   map[string][]map[string]string
	pending string // next getUpdates result
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	params := map[string]string{}
	for k := range r.Form {
		params[k] = r.Form.Get(k)
	}
	f.mu.Lock()
	f.calls[method] = append(f.calls[method], params)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Attendance","username":"attendance_bot"}}`)
	case "sendMessage":
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":%s,"type":"private"},"text":"ok"}}`, params["chat_id"])
	case "getUpdates":
		f.mu.Lock()
		result := f.pending
		f.pending = ""
		f.mu.Unlock()
		if result == "" {
			result = "[]"
		}
		fmt.Fprintf(w, `{"ok":true,"result":%s}`, result)
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func newFakeBot(t *testing.T) (*telegram.Bot, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{calls: map[string][]map[string]string{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	bot, err := telegram.NewBot("TOKEN", srv.URL+"/bot%s/%s", zap.NewNop())
	require.NoError(t, err)
	return bot, api
}

func TestBot_Send(t *testing.T) {
	bot, api := newFakeBot(t)

	require.NoError(t, bot.Send(context.Background(), 42, "Ali 🟢 وارد شد"))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.calls["sendMessage"], 1)
	assert.Equal(t, "42", api.calls["sendMessage"][0]["chat_id"])
	assert.Equal(t, "Ali 🟢 وارد شد", api.calls["sendMessage"][0]["text"])
}

func TestBot_SetCommands(t *testing.T) {
	bot, api := newFakeBot(t)
	require.NoError(t, bot.SetCommands())

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.calls["setMyCommands"], 1)
	assert.Contains(t, api.calls["setMyCommands"][0]["commands"], "weekly_report")
}

func (f *fakeBotAPI) sent() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.calls["sendMessage"]...)
}

func TestBot_RunAnswersUpdates(t *testing.T) {
	bot, api := newFakeBot(t)
	api.pending = `[{"update_id":1,"message":{"message_id":1,"date":0,` +
		`"chat":{"id":42,"type":"private"},"from":{"id":42,"is_bot":false,"first_name":"Sara"},"text":"/help"}}]`

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := telegram.NewHandler(&fakeGate{authorized: map[int64]bool{}}, fakeReports{}, zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx, h) }()

	require.Eventually(t, func() bool { return len(api.sent()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "42", api.sent()[0]["chat_id"])
	assert.Contains(t, api.sent()[0]["text"], "/weekly_report")

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop")
	}
}
