package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu    sync.Mutex
	sent  []map[string]string
	getMe int
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		f.mu.Lock()
		f.getMe++
		f.mu.Unlock()

		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"medreminder","username":"medreminder_bot"}}`)

	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			r.ParseForm()
		}

		values := map[string]string{}
		for key := range r.Form {
			values[key] = r.Form.Get(key)
		}

		f.mu.Lock()
		f.sent = append(f.sent, values)
		f.mu.Unlock()

		if values["chat_id"] == "13" {
			fmt.Fprint(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
			return
		}

		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":%s,"type":"private"}}}`, values["chat_id"])

	default:
		http.NotFound(w, r)
	}
}

func newTestTelegram(t *testing.T) (*Telegram, *fakeBotAPI) {
	t.Helper()

	api := &fakeBotAPI{}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	return NewTelegram("123:abc", server.URL+"/bot%s/%s"), api
}

func TestTelegramCard(t *testing.T) {
	tg, api := newTestTelegram(t)
	assert.Equal(t, "telegram", tg.Name())

	payload, err := Render(Request{Kind: KindMedicationReminder, Message: "💊 Aspirin (100mg)\n⏰ 08:00"})
	require.NoError(t, err)

	require.NoError(t, tg.Push(context.Background(), "42", payload))
	require.Len(t, api.sent, 1)

	sent := api.sent[0]
	assert.Equal(t, "42", sent["chat_id"])
	assert.Equal(t, "HTML", sent["parse_mode"])
	assert.Contains(t, sent["text"], "<b>🔔 Time for your medication</b>")
	assert.Contains(t, sent["text"], "Aspirin (100mg)")

	var markup struct {
		InlineKeyboard [][]struct {
			Text         string `json:"text"`
			CallbackData string `json:"callback_data"`
		} `json:"inline_keyboard"`
	}
	require.NoError(t, json.Unmarshal([]byte(sent["reply_markup"]), &markup))
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "Taken", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "taken", markup.InlineKeyboard[0][0].CallbackData)
}

func TestTelegramText(t *testing.T) {
	tg, api := newTestTelegram(t)

	require.NoError(t, tg.Push(context.Background(), "42", Payload{Text: "plain <report>"}))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "plain <report>", api.sent[0]["text"])
	assert.Empty(t, api.sent[0]["parse_mode"])
}

func TestTelegramRejected(t *testing.T) {
	tg, _ := newTestTelegram(t)

	err := tg.Push(context.Background(), "13", Payload{Text: "hi"})

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected), "%v", err)
	assert.Equal(t, 403, rejected.Status)
	assert.Contains(t, rejected.Body, "blocked")
}

func TestTelegramInvalidChatID(t *testing.T) {
	tg, api := newTestTelegram(t)

	err := tg.Push(context.Background(), "not-a-chat", Payload{Text: "hi"})

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, 400, rejected.Status)
	assert.Empty(t, api.sent)
}

func TestTelegramNoHandshake(t *testing.T) {
	tg, api := newTestTelegram(t)

	require.NoError(t, tg.Push(context.Background(), "42", Payload{Text: "hi"}))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Zero(t, api.getMe)
}

func TestTelegramUnreachable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	tg := NewTelegram("123:abc", server.URL+"/bot%s/%s")
	assert.Zero(t, calls.Load())

	err := tg.Push(context.Background(), "42", Payload{Text: "hi"})
	require.Error(t, err)

	var rejected *RejectedError
	assert.False(t, errors.As(err, &rejected))
	assert.Equal(t, int32(1), calls.Load())
}
