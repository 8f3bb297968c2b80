package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
)

const DefaultApologyText = "Sorry, I'm having trouble answering right now. Please try again in a moment."

// AnswerObserver is notified of every terminal outcome.
type AnswerObserver interface {
	ObserveAnswer(outcome domain.AnswerOutcome)
}

type AnswerConfig struct {
	GenerationTimeout time.Duration
	ApologyText       string
}

// AnswerUseCase runs retrieve, compose and generate. It degrades to a
// contextless fallback call and finally to a fixed apology; it never fails.
type AnswerUseCase struct {
	retriever ports.Retriever
	primary   ports.Generator
	fallback  ports.Generator
	observer  AnswerObserver
	cfg       AnswerConfig
}

func NewAnswerUseCase(
	retriever ports.Retriever,
	primary ports.Generator,
	fallback ports.Generator,
	observer AnswerObserver,
	cfg AnswerConfig,
) *AnswerUseCase {
	if fallback == nil {
		fallback = primary
	}
	if strings.TrimSpace(cfg.ApologyText) == "" {
		cfg.ApologyText = DefaultApologyText
	}
	return &AnswerUseCase{
		retriever: retriever,
		primary:   primary,
		fallback:  fallback,
		observer:  observer,
		cfg:       cfg,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, userInput string) domain.AnswerOutcome {
	outcome := uc.run(ctx, userInput)
	if uc.observer != nil {
		uc.observer.ObserveAnswer(outcome)
	}
	return outcome
}

func (uc *AnswerUseCase) run(ctx context.Context, userInput string) domain.AnswerOutcome {
	result, err := uc.retriever.Retrieve(ctx, userInput)
	if err != nil {
		return uc.degrade(ctx, userInput, "retrieval", err)
	}

	text, err := uc.generate(ctx, uc.primary, "", ComposePrompt(userInput, result))
	if err != nil {
		return uc.degrade(ctx, userInput, "primary_generation", err)
	}

	return domain.AnswerOutcome{
		State:       domain.StateGrounded,
		Text:        text,
		UsedContext: result.QueryUnderstood,
		TopScore:    result.TopScore,
		Sources:     result.Contexts,
	}
}

func (uc *AnswerUseCase) degrade(ctx context.Context, userInput, reason string, cause error) domain.AnswerOutcome {
	level := slog.LevelWarn
	if domain.IsKind(cause, domain.ErrInvalidConfiguration) {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "answer_degraded", "reason", reason, "error", cause)

	text, err := uc.generate(ctx, uc.fallback, FallbackFraming, userInput)
	if err != nil {
		slog.Error("answer_apology", "reason", reason, "error", err, "cause", cause)
		return domain.AnswerOutcome{
			State:    domain.StateApology,
			Text:     uc.cfg.ApologyText,
			Degraded: true,
			Error:    true,
		}
	}
	return domain.AnswerOutcome{
		State:    domain.StateFallback,
		Text:     text,
		Degraded: true,
	}
}

func (uc *AnswerUseCase) generate(ctx context.Context, generator ports.Generator, system, prompt string) (string, error) {
	if uc.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.GenerationTimeout)
		defer cancel()
	}
	text, err := generator.Generate(ctx, system, prompt)
	if err != nil {
		return "", domain.WrapCallError(domain.ErrGenerationFailure, "answer.generate", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrGenerationFailure, "answer.generate", errors.New("empty completion"))
	}
	return text, nil
}
