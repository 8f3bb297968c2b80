package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrEmbeddingFailure     = errors.New("embedding failure")
	ErrIndexWriteFailure    = errors.New("index write failure")
	ErrIndexQueryFailure    = errors.New("index query failure")
	ErrRetrievalFailure     = errors.New("retrieval failure")
	ErrGenerationFailure    = errors.New("generation failure")
	ErrProviderTimeout      = errors.New("provider timeout")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// WrapCallError is WrapError for outbound calls: a deadline overrun is
// additionally tagged as ErrProviderTimeout.
func WrapCallError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrProviderTimeout) {
		err = fmt.Errorf("%w: %w", ErrProviderTimeout, err)
	}
	return WrapError(kind, operation, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
