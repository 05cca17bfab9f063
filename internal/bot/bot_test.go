package bot

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/edu-assistant/internal/gateway"
	"github.com/xaenox/edu-assistant/internal/profile"
	"github.com/xaenox/edu-assistant/internal/reasoner"
	"github.com/xaenox/edu-assistant/internal/server"
	"github.com/xaenox/edu-assistant/internal/session"
	"github.com/xaenox/edu-assistant/internal/storage"
	"go.uber.org/zap"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type harness struct {
	bot     *Bot
	api     *fakeAPI
	storage *storage.MemoryStorage
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := storage.NewMemoryStorage()
	srv := httptest.NewServer(server.NewRouter(store, reasoner.NewOffline(), zap.NewNop()))
	t.Cleanup(srv.Close)

	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	client := gateway.NewClient(srv.URL, 5*time.Second, zap.NewNop())
	b := newBot(api, client, profile.NewMemoryStore(), session.Options{}, zap.NewNop())
	return &harness{bot: b, api: api, storage: store}
}

func message(chatID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID},
	}
	if strings.HasPrefix(text, "/") {
		command, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	}
	return msg
}

func (h *harness) say(chatID int64, text string) string {
	h.bot.handleMessage(context.Background(), message(chatID, text))
	return h.api.lastText()
}

func TestBot_TextNeedsMode(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.say(1, "hello"), "Choose a mode first")
}

func TestBot_QuizFlow(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "Quiz mode. Send me a topic.", h.say(1, "/quiz"))
	reply := h.say(1, "sets")
	assert.True(t, strings.HasPrefix(reply, `Quiz on "sets"`), reply)

	h.api.mu.Lock()
	require.NotEmpty(t, h.api.requests)
	_, typing := h.api.requests[0].(tgbotapi.ChatActionConfig)
	h.api.mu.Unlock()
	assert.True(t, typing)

	c, err := h.bot.chatFor(context.Background(), 1)
	require.NoError(t, err)
	id := c.session.CurrentConversationID()
	conv, err := h.storage.GetConversation(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func TestBot_ModeWithArguments(t *testing.T) {
	h := newHarness(t)
	reply := h.say(1, "/task graphs")
	assert.True(t, strings.HasPrefix(reply, `Task on "graphs"`), reply)
}

func TestBot_ChatsAreIsolated(t *testing.T) {
	h := newHarness(t)
	h.say(1, "/question what is a set?")
	h.say(2, "/question what is a graph?")

	c1, err := h.bot.chatFor(context.Background(), 1)
	require.NoError(t, err)
	c2, err := h.bot.chatFor(context.Background(), 2)
	require.NoError(t, err)
	assert.NotEqual(t, c1.session.OwnerID(), c2.session.OwnerID())
	assert.NotEqual(t, c1.session.CurrentConversationID(), c2.session.CurrentConversationID())
	assert.Equal(t, "tg-1", c1.session.Settings().Profile())
}

func TestBot_HistoryOpenRenameDelete(t *testing.T) {
	h := newHarness(t)
	h.say(1, "/quiz sets")

	c, err := h.bot.chatFor(context.Background(), 1)
	require.NoError(t, err)
	id := c.session.CurrentConversationID()
	idText := strconv.FormatInt(id, 10)

	history := h.say(1, "/history")
	assert.Contains(t, history, "#"+idText)
	assert.Contains(t, history, "[quiz] ◀")

	assert.Contains(t, h.say(1, "/rename "+idText+" Set theory"), `renamed to "Set theory"`)
	assert.Equal(t, "Usage: /rename <id> <title>", h.say(1, "/rename "+idText))

	assert.Contains(t, h.say(1, "/new"), "Started over")
	assert.Empty(t, c.session.Messages())

	opened := h.say(1, "/open "+idText)
	assert.Contains(t, opened, "(quiz), 2 messages")
	assert.Len(t, c.session.Messages(), 2)

	assert.Contains(t, h.say(1, "/delete "+idText), "deleted")
	assert.Zero(t, c.session.CurrentConversationID())
	assert.Equal(t, "You don't have any conversations yet.", h.say(1, "/history"))

	assert.Equal(t, "Usage: /open <id>", h.say(1, "/open abc"))
	assert.Contains(t, h.say(1, "/open 999"), "Couldn't open conversation")
}

func TestBot_Export(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "Nothing to export yet.", h.say(1, "/export"))

	h.say(1, "/question what is a set?")
	h.bot.handleMessage(context.Background(), message(1, "/export"))

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	doc, ok := h.api.sent[len(h.api.sent)-1].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(file.Name, "dialog_1_"), file.Name)
	assert.NotEmpty(t, file.Bytes)
}

func TestBot_UnknownCommand(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.say(1, "/dance"), "Unknown command")
}

func TestBot_StartStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.bot.Start(ctx) }()

	h.api.updates <- tgbotapi.Update{Message: message(1, "/help")}
	require.Eventually(t, func() bool {
		return strings.HasPrefix(h.api.lastText(), "Available commands")
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	h.api.mu.Lock()
	assert.True(t, h.api.stopped)
	h.api.mu.Unlock()
}

func TestParseID(t *testing.T) {
	tests := []struct {
		args    string
		id      int64
		rest    string
		wantErr bool
	}{
		{args: "12", id: 12},
		{args: "#12 New title ", id: 12, rest: "New title"},
		{args: "", wantErr: true},
		{args: "abc", wantErr: true},
		{args: "-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			id, rest, err := parseID(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitText("short", 10))

	chunks := splitText("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc"}, chunks)

	chunks = splitText(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, chunks)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `Couldn't open conversation \#3\.`, escapeMarkdown("Couldn't open conversation #3."))
}
