package notify

import (
	"context"
	"fmt"
	"time"

	"sportify/worker/internal/metrics"
	"sportify/worker/internal/models"

	"github.com/rs/zerolog/log"
)

// MatchSource provides finished matches that have not been announced yet
type MatchSource interface {
	FindFinishedNotNotified(ctx context.Context) ([]*models.MatchDetails, error)
	MarkNotificationSent(ctx context.Context, id int) error
}

// Sender delivers a finished match to users
type Sender interface {
	Send(ctx context.Context, match *models.MatchDetails) error
}

// Summary describes one dispatch run
type Summary struct {
	Pending int
	Sent    int
	Failed  int
}

// Dispatcher announces finished matches and flags them as notified
type Dispatcher struct {
	matches MatchSource
	sender  Sender
}

// NewDispatcher creates a dispatcher
func NewDispatcher(matches MatchSource, sender Sender) *Dispatcher {
	return &Dispatcher{matches: matches, sender: sender}
}

// Dispatch sends every finished, not-notified match. A match is flagged only
// after its send succeeded, so a failed send is retried on the next run.
func (d *Dispatcher) Dispatch(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary

	pending, err := d.matches.FindFinishedNotNotified(ctx)
	if err != nil {
		metrics.RecordError("notify", "query")
		return sum, fmt.Errorf("failed to load matches to notify: %w", err)
	}
	sum.Pending = len(pending)

	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if err := d.sender.Send(ctx, m); err != nil {
			sum.Failed++
			metrics.RecordNotification("error")
			log.Error().Err(err).Int("match_id", m.ID).Msg("Failed to send match notification")
			continue
		}

		if err := d.matches.MarkNotificationSent(ctx, m.ID); err != nil {
			// Sent but not flagged: the next run will announce it again
			sum.Failed++
			metrics.RecordError("notify", "mark")
			log.Error().Err(err).Int("match_id", m.ID).Msg("Failed to flag match as notified")
			continue
		}

		sum.Sent++
		metrics.RecordNotification("sent")
	}

	if sum.Pending > 0 {
		log.Info().
			Int("pending", sum.Pending).
			Int("sent", sum.Sent).
			Int("failed", sum.Failed).
			Dur("duration", time.Since(start)).
			Msg("Notifications dispatched")
	}

	return sum, nil
}
