package telegram

import (
	"context"
	"encoding/json"
	"io"
	"ironfly/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	t *testing.T

	mutex   sync.Mutex
	sent    []map[string]any
	offsets []string
	updates [][]map[string]any
	failFor map[string]bool
}

func (f *fakeBotAPI) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	require.NoError(f.t, json.NewEncoder(w).Encode(body))
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	switch r.URL.Path {
	case "/botTOKEN/sendMessage":
		raw, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)
		var payload map[string]any
		require.NoError(f.t, json.Unmarshal(raw, &payload))
		f.sent = append(f.sent, payload)

		if f.failFor[string(mustJSON(f.t, payload["chat_id"]))] {
			f.reply(w, http.StatusForbidden, map[string]any{
				"ok":          false,
				"description": "Forbidden: bot was blocked by the user",
			})
			return
		}
		f.reply(w, http.StatusOK, map[string]any{"ok": true, "result": map[string]any{}})
	case "/botTOKEN/getUpdates":
		require.Equal(f.t, "100", r.URL.Query().Get("limit"))
		f.offsets = append(f.offsets, r.URL.Query().Get("offset"))
		var batch []map[string]any
		if len(f.updates) > 0 {
			batch = f.updates[0]
			f.updates = f.updates[1:]
		}
		f.reply(w, http.StatusOK, map[string]any{"ok": true, "result": batch})
	default:
		http.NotFound(w, r)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	out, err := json.Marshal(v)
	require.NoError(t, err)
	return out
}

func setup(t *testing.T) (*Client, *fakeBotAPI) {
	api := &fakeBotAPI{t: t, failFor: map[string]bool{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{Token: "TOKEN", APIURL: srv.URL}, telemetry.NewRecorder())
	require.NoError(t, err)
	return client, api
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(Options{}, telemetry.NewRecorder())
	require.ErrorIs(t, err, ErrNoToken)
}

func TestSendDeduplicates(t *testing.T) {
	client, api := setup(t)

	err := client.Send(context.Background(), []string{"100", "-200", "100"}, "<b>hi</b>")
	require.NoError(t, err)

	require.Len(t, api.sent, 2)
	require.Equal(t, float64(100), api.sent[0]["chat_id"])
	require.Equal(t, float64(-200), api.sent[1]["chat_id"])
	require.Equal(t, "<b>hi</b>", api.sent[0]["text"])
	require.Equal(t, "HTML", api.sent[0]["parse_mode"])
}

func TestSendStringChatID(t *testing.T) {
	client, api := setup(t)

	require.NoError(t, client.Send(context.Background(), []string{"@ironfly"}, "hi"))
	require.Equal(t, "@ironfly", api.sent[0]["chat_id"])
}

func TestSendContinuesAfterFailure(t *testing.T) {
	client, api := setup(t)
	api.failFor["100"] = true

	err := client.Send(context.Background(), []string{"100", "200"}, "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked by the user")
	require.Len(t, api.sent, 2)
}

func TestPollTracksOffset(t *testing.T) {
	client, api := setup(t)
	api.updates = [][]map[string]any{
		{
			{"update_id": 10, "message": map[string]any{"text": "start te26", "chat": map[string]any{"id": 100}}},
			{"update_id": 11, "edited_message": map[string]any{}},
			{"update_id": 12, "message": map[string]any{"chat": map[string]any{"id": 100}}},
			{"update_id": 13, "message": map[string]any{"text": "stop te26", "chat": map[string]any{"id": -200}}},
		},
		{},
	}

	commands, err := client.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Command{
		{ChatID: "100", Text: "start te26"},
		{ChatID: "-200", Text: "stop te26"},
	}, commands)

	commands, err = client.Poll(context.Background())
	require.NoError(t, err)
	require.Empty(t, commands)

	require.Equal(t, []string{"", "14"}, api.offsets)
}

func TestPollAPIError(t *testing.T) {
	api := &fakeBotAPI{t: t}
	srv := httptest.NewServer(api)
	defer srv.Close()

	client, err := NewClient(Options{Token: "WRONG", APIURL: srv.URL}, telemetry.NewRecorder())
	require.NoError(t, err)

	_, err = client.Poll(context.Background())
	require.Error(t, err)
}
