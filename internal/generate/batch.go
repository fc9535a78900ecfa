package generate

import (
	"context"
	"log/slog"
	"time"

	"github.com/furkankasim16/knowledge-bot/internal/model"
	"github.com/furkankasim16/knowledge-bot/internal/store"
)

// DefaultRetryDelay is the pause after a failed generation before the
// batch driver tries again.
const DefaultRetryDelay = 3 * time.Second

// BatchReport summarizes a batch run. Generated counts successes
// including duplicate skips; Failures counts retried attempts.
type BatchReport struct {
	Generated  int `json:"generated"`
	Duplicates int `json:"duplicates"`
	Failures   int `json:"failures"`
}

// Batch generates questions until count succeed. Each attempt draws a
// uniformly random topic, level, and type. Failed attempts do not count
// toward the total; the driver waits retryDelay and tries again with a
// fresh draw. Cancellation stops the run and returns the partial report.
func (p *Pipeline) Batch(ctx context.Context, count int, topics []string, retryDelay time.Duration) (BatchReport, error) {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	var report BatchReport
	for report.Generated < count {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		topic := model.RandomTopic(topics)
		level := model.RandomLevel()
		qtype := model.RandomType()

		out, err := p.GenerateQuestion(ctx, topic, level, qtype)
		if err != nil {
			report.Failures++
			slog.Warn("generation attempt failed",
				"topic", topic, "level", level, "type", qtype, "error", err)
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}

		report.Generated++
		if out.Result == store.SkippedDuplicate {
			report.Duplicates++
		}
	}
	slog.Info("batch complete",
		"generated", report.Generated, "duplicates", report.Duplicates, "failures", report.Failures)
	return report, nil
}
