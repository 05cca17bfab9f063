// Package bot is the Telegram front-end. Every chat gets its own session,
// persisted under the profile tg-<chat id>.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/edu-assistant/internal/export"
	"github.com/xaenox/edu-assistant/internal/models"
	"github.com/xaenox/edu-assistant/internal/profile"
	"github.com/xaenox/edu-assistant/internal/session"
	"go.uber.org/zap"
)

// maxMessageLength is Telegram's limit for one text message.
const maxMessageLength = 4096

const historyPageSize = 10

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type chat struct {
	session  *session.Session
	exporter *export.Exporter
}

type Bot struct {
	api      telegramAPI
	backend  session.Backend
	profiles profile.Store
	opts     session.Options
	logger   *zap.Logger

	mu    sync.Mutex
	chats map[int64]*chat
}

func New(token string, backend session.Backend, profiles profile.Store, opts session.Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))
	return newBot(api, backend, profiles, opts, logger), nil
}

func newBot(api telegramAPI, backend session.Backend, profiles profile.Store, opts session.Options, logger *zap.Logger) *Bot {
	return &Bot{
		api:      api,
		backend:  backend,
		profiles: profiles,
		opts:     opts,
		logger:   logger,
		chats:    make(map[int64]*chat),
	}
}

// Start polls for updates until ctx is cancelled or the channel closes.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			wg.Add(1)
			go func(message *tgbotapi.Message) {
				defer wg.Done()
				b.handleMessage(ctx, message)
			}(update.Message)
		}
	}
}

func profileName(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

// chatFor returns the chat's session, creating it on first contact.
func (b *Bot) chatFor(ctx context.Context, chatID int64) (*chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.chats[chatID]; ok {
		return c, nil
	}

	settings := profile.NewSettings(b.profiles, profileName(chatID))
	logger := b.logger.With(zap.Int64("chat_id", chatID))
	store, err := session.NewStore(ctx, settings, logger)
	if err != nil {
		return nil, err
	}

	c := &chat{
		session:  session.New(store, b.backend, b.opts, logger),
		exporter: export.NewExporter("", settings, logger),
	}
	c.session.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventLoadingChanged && ev.Loading {
			b.sendTyping(chatID)
		}
	})
	b.chats[chatID] = c
	return c, nil
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	c, err := b.chatFor(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to open session",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "Sorry, I couldn't open your session. Please try again.")
		return
	}

	// Handle commands
	if message.IsCommand() {
		b.handleCommand(ctx, c, message)
		return
	}

	b.send(ctx, c, chatID, message.Text)
}

func (b *Bot) send(ctx context.Context, c *chat, chatID int64, text string) {
	if c.session.CurrentType() == "" {
		b.sendMessage(chatID, "Choose a mode first: /question, /quiz or /task.")
		return
	}

	reply, err := c.session.Send(ctx, text)
	switch {
	case err == nil:
		b.sendMessage(chatID, reply.Content)
	case errors.Is(err, session.ErrBusy):
		b.sendMessage(chatID, "I'm still working on your previous message.")
	case errors.Is(err, session.ErrEmptyInput):
		b.sendMessage(chatID, "Send me some text.")
	case errors.Is(err, session.ErrConversationCreateFailed):
		b.sendErrorMessage(chatID, "Couldn't start a conversation. Please try again.")
	default:
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "Something went wrong. Please try again.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, c *chat, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "question", "quiz", "task":
		b.handleMode(ctx, c, chatID, models.MessageType(message.Command()), args)
	case "new":
		c.session.ClearMessages()
		b.sendMessage(chatID, "Started over. Choose a mode: /question, /quiz or /task.")
	case "history":
		b.handleHistory(ctx, c, chatID, args)
	case "open":
		b.handleOpen(ctx, c, chatID, args)
	case "delete":
		b.handleDelete(ctx, c, chatID, args)
	case "rename":
		b.handleRename(ctx, c, chatID, args)
	case "export":
		b.handleExport(ctx, c, chatID)
	default:
		b.sendMessage(chatID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(chatID int64) {
	welcome := `Welcome to the study assistant! 📚
I can answer questions, quiz you on a topic and set you study tasks.

Pick a mode with /question, /quiz or /task, then send me your text.
Use /help to see all available commands.`

	b.sendMessage(chatID, welcome)
}

func (b *Bot) handleHelp(chatID int64) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/question [text] - Ask questions
/quiz [topic] - Get quiz questions on a topic
/task [topic] - Get a study task on a topic
/new - Start a new conversation
/history [search] - List your conversations
/open <id> - Continue a conversation
/delete <id> - Delete a conversation
/rename <id> <title> - Rename a conversation
/export - Download this dialog as a spreadsheet`

	b.sendMessage(chatID, help)
}

var modeNames = map[models.MessageType]string{
	models.TypeQuestion: "Question mode. Ask me anything.",
	models.TypeQuiz:     "Quiz mode. Send me a topic.",
	models.TypeTask:     "Task mode. Send me a topic.",
}

func (b *Bot) handleMode(ctx context.Context, c *chat, chatID int64, t models.MessageType, args string) {
	c.session.SetCurrentType(t)
	if args == "" {
		b.sendMessage(chatID, modeNames[t])
		return
	}
	b.send(ctx, c, chatID, args)
}

func (b *Bot) handleHistory(ctx context.Context, c *chat, chatID int64, search string) {
	page, err := c.session.ListConversations(ctx, models.ConversationFilter{
		Limit:  historyPageSize,
		Search: search,
	})
	if err != nil {
		b.sendErrorMessage(chatID, "Sorry, I couldn't retrieve your conversations.")
		return
	}
	if len(page.Conversations) == 0 {
		b.sendMessage(chatID, "You don't have any conversations yet.")
		return
	}

	b.sendMessage(chatID, formatHistory(page, c.session.CurrentConversationID()))
}

func formatHistory(page *models.ConversationPage, current int64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your conversations (%d of %d):\n", len(page.Conversations), page.Total)
	for _, conv := range page.Conversations {
		marker := ""
		if conv.ID == current {
			marker = " ◀"
		}
		fmt.Fprintf(&sb, "\n#%d %s [%s]%s", conv.ID, conv.Title, conv.ConversationType, marker)
	}
	sb.WriteString("\n\nUse /open <id> to continue one.")
	return sb.String()
}

func parseID(args string) (int64, string, error) {
	idText, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	id, err := strconv.ParseInt(strings.TrimPrefix(idText, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid conversation id %q", idText)
	}
	return id, strings.TrimSpace(rest), nil
}

func (b *Bot) handleOpen(ctx context.Context, c *chat, chatID int64, args string) {
	id, _, err := parseID(args)
	if err != nil {
		b.sendMessage(chatID, "Usage: /open <id>")
		return
	}
	if err := c.session.LoadConversation(ctx, id); err != nil {
		b.sendErrorMessage(chatID, fmt.Sprintf("Couldn't open conversation #%d.", id))
		return
	}

	messages := c.session.Messages()
	text := fmt.Sprintf("Opened conversation #%d (%s), %d messages.", id, c.session.CurrentType(), len(messages))
	if n := len(messages); n > 0 {
		text += "\n\nLast message:\n" + messages[n-1].Content
	}
	b.sendMessage(chatID, text)
}

func (b *Bot) handleDelete(ctx context.Context, c *chat, chatID int64, args string) {
	id, _, err := parseID(args)
	if err != nil {
		b.sendMessage(chatID, "Usage: /delete <id>")
		return
	}
	if err := c.session.DeleteConversation(ctx, id); err != nil {
		b.sendErrorMessage(chatID, fmt.Sprintf("Couldn't delete conversation #%d.", id))
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("Conversation #%d deleted.", id))
}

func (b *Bot) handleRename(ctx context.Context, c *chat, chatID int64, args string) {
	id, title, err := parseID(args)
	if err != nil || title == "" {
		b.sendMessage(chatID, "Usage: /rename <id> <title>")
		return
	}
	if err := c.session.RenameConversation(ctx, id, title); err != nil {
		b.sendErrorMessage(chatID, fmt.Sprintf("Couldn't rename conversation #%d.", id))
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("Conversation #%d renamed to %q.", id, title))
}

func (b *Bot) handleExport(ctx context.Context, c *chat, chatID int64) {
	messages := c.session.Messages()
	if len(messages) == 0 {
		b.sendMessage(chatID, "Nothing to export yet.")
		return
	}

	name, buf, err := c.exporter.RenderDialog(ctx, messages)
	if err != nil {
		b.logger.Error("Failed to render dialog",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "Sorry, I couldn't build the export.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: buf.Bytes()})
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error("Failed to send export",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

// splitText breaks text into chunks Telegram accepts, preferring line breaks.
func splitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// Add this helper function to escape special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	for _, chunk := range splitText(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if _, err := b.api.Send(msg); err != nil {
			b.logger.Error("Failed to send message",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
			return
		}
	}
}

func (b *Bot) sendTyping(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("Failed to send typing action",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+escapeMarkdown(text))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
