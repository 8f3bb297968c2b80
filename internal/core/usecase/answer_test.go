package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

type observerFake struct {
	outcomes []domain.AnswerOutcome
}

func (f *observerFake) ObserveAnswer(outcome domain.AnswerOutcome) {
	f.outcomes = append(f.outcomes, outcome)
}

func TestAnswerGrounded(t *testing.T) {
	retriever := &retrieverFake{result: domain.NewRetrievalResult([]domain.RetrievalContext{
		{Text: "Visa renewal requires form V-12.", Score: 0.82},
	})}
	primary := &generatorFake{text: "Use form V-12."}
	fallback := &generatorFake{text: "unused"}
	observer := &observerFake{}
	uc := NewAnswerUseCase(retriever, primary, fallback, observer, AnswerConfig{})

	outcome := uc.Answer(context.Background(), "How do I renew my visa?")

	if outcome.State != domain.StateGrounded || outcome.Degraded || outcome.Error {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !outcome.UsedContext || outcome.TopScore != 0.82 {
		t.Fatalf("expected context usage with top score, got %+v", outcome)
	}
	if len(primary.calls) != 1 || !strings.Contains(primary.calls[0].prompt, "[Relevance: 0.82]") {
		t.Fatalf("unexpected primary calls: %+v", primary.calls)
	}
	if len(fallback.calls) != 0 {
		t.Fatalf("fallback must not be called")
	}
	if len(observer.outcomes) != 1 {
		t.Fatalf("expected observer notification")
	}
}

func TestAnswerWithoutContextStaysGrounded(t *testing.T) {
	primary := &generatorFake{text: "General answer."}
	uc := NewAnswerUseCase(&retrieverFake{result: domain.NewRetrievalResult(nil)}, primary, nil, nil, AnswerConfig{})

	outcome := uc.Answer(context.Background(), "Tell me a joke")

	if outcome.State != domain.StateGrounded || outcome.UsedContext || outcome.Degraded {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !strings.Contains(primary.calls[0].prompt, "couldn't find specific information") {
		t.Fatalf("expected no-context prompt, got %q", primary.calls[0].prompt)
	}
}

func TestAnswerRetrievalFailureDegrades(t *testing.T) {
	retriever := &retrieverFake{err: domain.WrapError(domain.ErrRetrievalFailure, "retrieve", errors.New("embedding down"))}
	primary := &generatorFake{text: "unused"}
	fallback := &generatorFake{text: "Raw answer."}
	uc := NewAnswerUseCase(retriever, primary, fallback, nil, AnswerConfig{})

	outcome := uc.Answer(context.Background(), "How do I renew my visa?")

	if outcome.State != domain.StateFallback || !outcome.Degraded || outcome.Error {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.Text != "Raw answer." {
		t.Fatalf("unexpected text: %q", outcome.Text)
	}
	if len(primary.calls) != 0 {
		t.Fatalf("primary must not be called after retrieval failure")
	}
	if len(fallback.calls) != 1 || fallback.calls[0].prompt != "How do I renew my visa?" || fallback.calls[0].system != FallbackFraming {
		t.Fatalf("expected raw input fallback call, got %+v", fallback.calls)
	}
}

func TestAnswerEmbeddingExhaustionDegrades(t *testing.T) {
	embedder := &embedderFake{err: domain.WrapError(domain.ErrEmbeddingFailure, "embed", errors.New("attempts exhausted"))}
	retriever := NewRetrieverUseCase(embedder, &indexFake{}, nil, RetrieverConfig{})
	fallback := &generatorFake{text: "Raw answer."}
	uc := NewAnswerUseCase(retriever, &generatorFake{text: "unused"}, fallback, nil, AnswerConfig{})

	outcome := uc.Answer(context.Background(), "How do I renew my visa?")

	if !outcome.Degraded || outcome.State != domain.StateFallback {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestAnswerPrimaryFailureDegrades(t *testing.T) {
	retriever := &retrieverFake{result: domain.NewRetrievalResult(nil)}
	primary := &generatorFake{err: context.DeadlineExceeded}
	fallback := &generatorFake{text: "Raw answer."}
	uc := NewAnswerUseCase(retriever, primary, fallback, nil, AnswerConfig{})

	outcome := uc.Answer(context.Background(), "q")

	if outcome.State != domain.StateFallback || !outcome.Degraded {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestAnswerEmptyCompletionDegrades(t *testing.T) {
	retriever := &retrieverFake{result: domain.NewRetrievalResult(nil)}
	uc := NewAnswerUseCase(retriever, &generatorFake{text: "  "}, &generatorFake{text: "Raw answer."}, nil, AnswerConfig{})

	outcome := uc.Answer(context.Background(), "q")

	if outcome.State != domain.StateFallback {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestAnswerDoubleFailureApologizes(t *testing.T) {
	retriever := &retrieverFake{result: domain.NewRetrievalResult(nil)}
	primary := &generatorFake{err: errors.New("primary down")}
	fallback := &generatorFake{err: errors.New("fallback down")}
	observer := &observerFake{}
	uc := NewAnswerUseCase(retriever, primary, fallback, observer, AnswerConfig{})

	outcome := uc.Answer(context.Background(), "q")

	if outcome.State != domain.StateApology || !outcome.Degraded || !outcome.Error {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.Text != DefaultApologyText {
		t.Fatalf("unexpected apology text: %q", outcome.Text)
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0].State != domain.StateApology {
		t.Fatalf("expected apology to be observed")
	}
}

func TestAnswerCustomApologyText(t *testing.T) {
	retriever := &retrieverFake{err: errors.New("down")}
	failing := &generatorFake{err: errors.New("down")}
	uc := NewAnswerUseCase(retriever, failing, nil, nil, AnswerConfig{ApologyText: "Try later."})

	outcome := uc.Answer(context.Background(), "q")

	if outcome.Text != "Try later." {
		t.Fatalf("unexpected apology text: %q", outcome.Text)
	}
	if len(failing.calls) != 1 {
		t.Fatalf("expected primary reused as fallback once, got %d calls", len(failing.calls))
	}
}
