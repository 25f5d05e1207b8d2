package kb

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline's fatal and caller-facing failure
// modes. Per-URL and per-batch failures are absorbed locally and never
// surface as these.
var (
	ErrNoContentExtracted    = errors.New("no content extracted from website")
	ErrQAGenerationFailed    = errors.New("qa generation produced no facts")
	ErrJobNotFound           = errors.New("job not found")
	ErrEmptyEmbeddingInput   = errors.New("empty text provided for embedding")
	ErrContentTooThin        = errors.New("page content below minimum word count")
	ErrKnowledgeBaseNotReady = errors.New("knowledge base is not ready")
)

// NotReadyError reports a query against a knowledge base whose job has
// not reached the completed state. It carries the job's current status
// and progress so callers can decide when to retry.
type NotReadyError struct {
	Status   string
	Progress int
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("knowledge base is not ready: status=%s progress=%d", e.Status, e.Progress)
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrKnowledgeBaseNotReady
}
