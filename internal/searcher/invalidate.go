package searcher

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/kafka"
)

// InvalidateMessage is published on the corpus invalidation topic when a
// corpus changes upstream. An empty CorpusKey drops everything.
type InvalidateMessage struct {
	CorpusKey string `json:"corpus_key"`
}

// InvalidationHandler applies InvalidateMessages to s. Malformed messages are
// logged and skipped.
func (s *Service) InvalidationHandler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		msg, err := kafka.DecodeJSON[InvalidateMessage](value)
		if err != nil {
			s.logger.Error("failed to decode invalidation message", "error", err)
			return nil
		}
		s.logger.Info("invalidation received", "corpus", msg.CorpusKey)
		return s.Invalidate(ctx, msg.CorpusKey)
	}
}
