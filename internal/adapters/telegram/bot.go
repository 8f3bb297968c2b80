// Package telegram connects the post-publishing dialogue to Telegram.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
)

const msgInternalError = "Something went wrong on my side. Please try again."

// Messenger is the subset of the Telegram API the adapter needs.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

type Bot struct {
	api      *bot.Bot
	handlers *UpdateHandler
	chats    *ChatWatcher
}

// New connects to Telegram. The dialogue handler is attached with Run, which
// lets the post publisher be built from the same connection first.
func New(token string) (*Bot, error) {
	b := &Bot{handlers: &UpdateHandler{}}
	api, err := bot.New(token, bot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	b.api = api
	b.handlers.messenger = api
	return b, nil
}

// Publisher posts approved content to groupChatID through this bot.
func (b *Bot) Publisher(groupChatID string) *Publisher {
	return NewPublisher(b.api, groupChatID)
}

// Run polls for updates until ctx is done.
func (b *Bot) Run(ctx context.Context, dialogue ports.DialogueHandler) {
	b.handlers.dialogue = dialogue
	slog.Info("telegram_bot_started")
	b.api.Start(ctx)
}

// WatchChats reports every chat the bot hears from instead of running the
// dialogue. Adding the bot to the target group and posting there reveals
// the group chat id.
func (b *Bot) WatchChats(ctx context.Context, report func(ChatInfo)) {
	b.chats = NewChatWatcher(report)
	slog.Info("telegram_chat_watch_started")
	b.api.Start(ctx)
}

func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if b.chats != nil {
		b.chats.Handle(update)
		return
	}
	b.handlers.Handle(ctx, update)
}

type ChatInfo struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// ChatWatcher reports each chat once.
type ChatWatcher struct {
	mu     sync.Mutex
	seen   map[int64]struct{}
	report func(ChatInfo)
}

func NewChatWatcher(report func(ChatInfo)) *ChatWatcher {
	return &ChatWatcher{seen: make(map[int64]struct{}), report: report}
}

func (w *ChatWatcher) Handle(update *models.Update) {
	chat, ok := chatFromUpdate(update)
	if !ok {
		return
	}
	w.mu.Lock()
	_, dup := w.seen[chat.ID]
	w.seen[chat.ID] = struct{}{}
	w.mu.Unlock()
	if !dup {
		w.report(chat)
	}
}

func chatFromUpdate(update *models.Update) (ChatInfo, bool) {
	if update == nil {
		return ChatInfo{}, false
	}
	var chat models.Chat
	switch {
	case update.Message != nil:
		chat = update.Message.Chat
	case update.ChannelPost != nil:
		chat = update.ChannelPost.Chat
	case update.MyChatMember != nil:
		chat = update.MyChatMember.Chat
	default:
		return ChatInfo{}, false
	}
	return ChatInfo{ID: chat.ID, Type: string(chat.Type), Title: chat.Title, Username: chat.Username}, true
}

// UpdateHandler turns Telegram updates into dialogue events.
type UpdateHandler struct {
	messenger Messenger
	dialogue  ports.DialogueHandler
}

func NewUpdateHandler(messenger Messenger, dialogue ports.DialogueHandler) *UpdateHandler {
	return &UpdateHandler{messenger: messenger, dialogue: dialogue}
}

func (h *UpdateHandler) Handle(ctx context.Context, update *models.Update) {
	if update == nil || update.Message == nil || h.dialogue == nil {
		return
	}
	message := update.Message
	event, ok := eventFromMessage(message)
	if !ok {
		return
	}

	conversationID := strconv.FormatInt(message.Chat.ID, 10)
	reply, err := h.dialogue.Handle(ctx, conversationID, event)
	if err != nil {
		slog.Error("telegram_dialogue_failed", "chat_id", message.Chat.ID, "error", err)
		reply = domain.DialogueReply{Text: msgInternalError}
	}
	if reply.Text == "" {
		return
	}

	if _, err := h.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: message.Chat.ID,
		Text:   reply.Text,
	}); err != nil {
		slog.Error("telegram_send_failed", "chat_id", message.Chat.ID, "error", err)
	}
}

func eventFromMessage(message *models.Message) (domain.DialogueEvent, bool) {
	switch {
	case len(message.Photo) > 0:
		largest := message.Photo[len(message.Photo)-1]
		return domain.DialogueEvent{ImageRef: largest.FileID}, true
	case strings.HasPrefix(message.Text, "/"):
		command := strings.Fields(message.Text)[0]
		command = strings.TrimPrefix(command, "/")
		if at := strings.IndexByte(command, '@'); at >= 0 {
			command = command[:at]
		}
		return domain.DialogueEvent{Command: strings.ToLower(command)}, true
	case message.Text != "":
		return domain.DialogueEvent{Text: message.Text}, true
	default:
		return domain.DialogueEvent{}, false
	}
}

// Publisher implements ports.PostPublisher for a Telegram group or channel.
type Publisher struct {
	messenger Messenger
	chatID    any
}

// NewPublisher accepts a numeric chat id or an @channel username.
func NewPublisher(messenger Messenger, groupChatID string) *Publisher {
	groupChatID = strings.TrimSpace(groupChatID)
	var chatID any = groupChatID
	if id, err := strconv.ParseInt(groupChatID, 10, 64); err == nil {
		chatID = id
	}
	return &Publisher{messenger: messenger, chatID: chatID}
}

func (p *Publisher) PublishPost(ctx context.Context, imageRef, caption string) error {
	if p.chatID == "" {
		return domain.WrapError(domain.ErrInvalidConfiguration, "telegram.publish_post", fmt.Errorf("group chat id is not configured"))
	}
	if _, err := p.messenger.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  p.chatID,
		Photo:   &models.InputFileString{Data: imageRef},
		Caption: caption,
	}); err != nil {
		return domain.WrapError(domain.ErrTemporary, "telegram.publish_post", err)
	}
	return nil
}
