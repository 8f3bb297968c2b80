package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
)

type CaptionUseCase struct {
	answerer ports.Answerer
}

func NewCaptionUseCase(answerer ports.Answerer) *CaptionUseCase {
	return &CaptionUseCase{answerer: answerer}
}

func (uc *CaptionUseCase) GenerateCaption(ctx context.Context, req domain.CaptionRequest) (domain.Caption, error) {
	tone := strings.TrimSpace(req.Tone)
	length := strings.TrimSpace(req.Length)
	if tone == "" || length == "" {
		return domain.Caption{}, domain.WrapError(domain.ErrInvalidInput, "caption.generate", errors.New("tone and length are required"))
	}

	outcome := uc.answerer.Answer(ctx, CaptionInstruction(tone, length))
	return domain.Caption{
		Text:     outcome.Text,
		Degraded: outcome.Degraded,
		Error:    outcome.Error,
	}, nil
}

func CaptionInstruction(tone, length string) string {
	return fmt.Sprintf("Generate a %s caption in a %s tone.", length, tone)
}
