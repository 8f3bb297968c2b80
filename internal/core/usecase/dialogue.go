package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
)

const CommandStart = "start"

const (
	msgWelcome        = "Welcome! What tone do you want for your post? (e.g., formal, casual)"
	msgAskImage       = "Please upload an image to be attached to the post."
	msgAskAIChoice    = "Do you want the caption to be AI generated? (yes/no)"
	msgAskLength      = "How long do you want the caption to be? (e.g., short, medium, long)"
	msgAskCaption     = "Please provide the caption for the post."
	msgPublished      = "Post has been made to the group!"
	msgRejected       = "Post not approved. Please start over with /start."
	msgSendStart      = "Send /start to create a new post."
	msgCaptionFailed  = "I couldn't generate a caption right now. How long do you want the caption to be? (e.g., short, medium, long)"
	approvalTemplate  = "Here is your post:\n\nCaption: %s\n\nDo you approve? (yes/no)"
	affirmativeAnswer = "yes"
)

// DialogueUseCase drives the post-publishing conversation. The session is
// loaded and saved around every event. Events of one conversation are
// handled one at a time; different conversations run in parallel.
type DialogueUseCase struct {
	sessions  ports.SessionStore
	captions  ports.CaptionService
	publisher ports.PostPublisher
	locks     conversationLocks
	now       func() time.Time
}

type conversationLocks struct {
	mu   sync.Mutex
	held map[string]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until the conversation is free and returns its unlock func.
// Entries are dropped once no goroutine holds or waits for them.
func (l *conversationLocks) lock(conversationID string) func() {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]*conversationLock)
	}
	entry, ok := l.held[conversationID]
	if !ok {
		entry = &conversationLock{}
		l.held[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.held, conversationID)
		}
		l.mu.Unlock()
	}
}

func NewDialogueUseCase(
	sessions ports.SessionStore,
	captions ports.CaptionService,
	publisher ports.PostPublisher,
) *DialogueUseCase {
	return &DialogueUseCase{
		sessions:  sessions,
		captions:  captions,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *DialogueUseCase) Handle(ctx context.Context, conversationID string, event domain.DialogueEvent) (domain.DialogueReply, error) {
	unlock := uc.locks.lock(conversationID)
	defer unlock()
	return uc.handle(ctx, conversationID, event)
}

func (uc *DialogueUseCase) handle(ctx context.Context, conversationID string, event domain.DialogueEvent) (domain.DialogueReply, error) {
	if event.Command == CommandStart {
		session := &domain.DialogueSession{ConversationID: conversationID, State: domain.DialogueAwaitTone}
		if err := uc.save(ctx, session, domain.DialogueIdle); err != nil {
			return domain.DialogueReply{}, err
		}
		return domain.DialogueReply{Text: msgWelcome}, nil
	}

	session, err := uc.sessions.Load(ctx, conversationID)
	if err != nil {
		return domain.DialogueReply{}, fmt.Errorf("load dialogue session: %w", err)
	}
	if session == nil || session.State == domain.DialogueIdle {
		return domain.DialogueReply{Text: msgSendStart}, nil
	}

	previous := session.State
	text := strings.TrimSpace(event.Text)

	switch session.State {
	case domain.DialogueAwaitTone:
		if text == "" {
			return domain.DialogueReply{Text: msgWelcome}, nil
		}
		session.Tone = text
		session.State = domain.DialogueAwaitImage
		return uc.reply(ctx, session, previous, msgAskImage)

	case domain.DialogueAwaitImage:
		if event.ImageRef == "" {
			return domain.DialogueReply{Text: msgAskImage}, nil
		}
		session.ImageRef = event.ImageRef
		session.State = domain.DialogueAwaitAIChoice
		return uc.reply(ctx, session, previous, msgAskAIChoice)

	case domain.DialogueAwaitAIChoice:
		if text == "" {
			return domain.DialogueReply{Text: msgAskAIChoice}, nil
		}
		if isAffirmative(text) {
			session.State = domain.DialogueAwaitLength
			return uc.reply(ctx, session, previous, msgAskLength)
		}
		session.State = domain.DialogueAwaitCaption
		return uc.reply(ctx, session, previous, msgAskCaption)

	case domain.DialogueAwaitLength:
		if text == "" {
			return domain.DialogueReply{Text: msgAskLength}, nil
		}
		caption, err := uc.captions.GenerateCaption(ctx, domain.CaptionRequest{Tone: session.Tone, Length: text})
		if err != nil || caption.Error || strings.TrimSpace(caption.Text) == "" {
			slog.Warn("dialogue_caption_failed", "conversation_id", conversationID, "error", err)
			return domain.DialogueReply{Text: msgCaptionFailed}, nil
		}
		session.Length = text
		session.Caption = caption.Text
		session.State = domain.DialogueAwaitApproval
		return uc.reply(ctx, session, previous, fmt.Sprintf(approvalTemplate, session.Caption))

	case domain.DialogueAwaitCaption:
		if text == "" {
			return domain.DialogueReply{Text: msgAskCaption}, nil
		}
		session.Caption = text
		session.State = domain.DialogueAwaitApproval
		return uc.reply(ctx, session, previous, fmt.Sprintf(approvalTemplate, session.Caption))

	case domain.DialogueAwaitApproval:
		if text == "" {
			return domain.DialogueReply{Text: fmt.Sprintf(approvalTemplate, session.Caption)}, nil
		}
		return uc.finish(ctx, session, isAffirmative(text))
	}

	return domain.DialogueReply{Text: msgSendStart}, nil
}

func (uc *DialogueUseCase) finish(ctx context.Context, session *domain.DialogueSession, approved bool) (domain.DialogueReply, error) {
	if approved {
		if err := uc.publisher.PublishPost(ctx, session.ImageRef, session.Caption); err != nil {
			return domain.DialogueReply{}, fmt.Errorf("publish post: %w", err)
		}
	}
	if err := uc.sessions.Delete(ctx, session.ConversationID); err != nil {
		return domain.DialogueReply{}, fmt.Errorf("delete dialogue session: %w", err)
	}
	slog.Info("dialogue_transition",
		"conversation_id", session.ConversationID,
		"from", string(session.State),
		"to", string(domain.DialogueIdle),
		"approved", approved,
	)
	if approved {
		return domain.DialogueReply{Text: msgPublished, Published: true}, nil
	}
	return domain.DialogueReply{Text: msgRejected}, nil
}

func (uc *DialogueUseCase) reply(ctx context.Context, session *domain.DialogueSession, previous domain.DialogueState, text string) (domain.DialogueReply, error) {
	if err := uc.save(ctx, session, previous); err != nil {
		return domain.DialogueReply{}, err
	}
	return domain.DialogueReply{Text: text}, nil
}

func (uc *DialogueUseCase) save(ctx context.Context, session *domain.DialogueSession, previous domain.DialogueState) error {
	session.UpdatedAt = uc.now()
	if err := uc.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("save dialogue session: %w", err)
	}
	slog.Debug("dialogue_transition",
		"conversation_id", session.ConversationID,
		"from", string(previous),
		"to", string(session.State),
	)
	return nil
}

func isAffirmative(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), affirmativeAnswer)
}
