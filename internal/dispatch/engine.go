// Package dispatch fans a created alert out to the subscribers of its region
// across their registered messaging channels.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/terraguard/climate-alerts/internal/models"
	"github.com/terraguard/climate-alerts/internal/observability"
	"github.com/terraguard/climate-alerts/internal/repository"
)

// ChannelProvider delivers one message to one channel identity.
type ChannelProvider interface {
	Send(ctx context.Context, identity, message string) error
}

// Summary aggregates per-attempt outcomes for one dispatch call.
type Summary struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Engine resolves the subscriber list for an alert and attempts delivery on
// every populated channel. One subscriber's failure never aborts the batch,
// and no retry happens here: failures are recorded and left to the next
// reconciliation.
type Engine struct {
	subs        repository.SubscriberRepository
	log         repository.DispatchRepository
	providers   map[models.Channel]ChannelProvider
	sendTimeout time.Duration
	clock       clockwork.Clock
	metrics     *observability.Metrics
}

func NewEngine(
	subs repository.SubscriberRepository,
	log repository.DispatchRepository,
	providers map[models.Channel]ChannelProvider,
	sendTimeout time.Duration,
	clock clockwork.Clock,
	metrics *observability.Metrics,
) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		subs:        subs,
		log:         log,
		providers:   providers,
		sendTimeout: sendTimeout,
		clock:       clock,
		metrics:     metrics,
	}
}

// Dispatch delivers the alert to every subscribed user in its region. The
// returned error is reserved for infrastructure failures (subscriber list or
// dispatch log unreachable); individual delivery failures only show up in the
// summary.
func (e *Engine) Dispatch(ctx context.Context, alert *models.Alert) (Summary, error) {
	subs, err := e.subs.ListSubscribed(ctx, alert.Region)
	if err != nil {
		return Summary{}, fmt.Errorf("error resolving subscribers for %s: %w", alert.Region, err)
	}

	var sum Summary
	message := FormatMessage(alert)

	for i := range subs {
		sub := &subs[i]
		for channel, identity := range sub.Channels() {
			provider, ok := e.providers[channel]
			if !ok {
				continue
			}

			// Idempotence: a retried scheduler run must not notify twice.
			delivered, err := e.log.Delivered(ctx, alert.ID, sub.ID, channel)
			if err != nil {
				return sum, fmt.Errorf("error checking dispatch history: %w", err)
			}
			if delivered {
				sum.Skipped++
				e.record(ctx, alert.ID, sub.ID, channel, models.DispatchSkipped, "")
				continue
			}

			sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
			err = provider.Send(sendCtx, identity, message)
			cancel()

			if err != nil {
				sum.Failed++
				slog.Warn("delivery failed",
					"alert", alert.ID, "subscriber", sub.ID, "channel", channel, "error", err)
				e.record(ctx, alert.ID, sub.ID, channel, models.DispatchFailed, err.Error())
				continue
			}

			sum.Delivered++
			e.record(ctx, alert.ID, sub.ID, channel, models.DispatchDelivered, "")
		}
	}

	slog.Info("dispatch complete", "alert", alert.ID, "region", alert.Region,
		"delivered", sum.Delivered, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

func (e *Engine) record(ctx context.Context, alertID, subscriberID string, channel models.Channel, outcome models.DispatchOutcome, errMsg string) {
	if e.metrics != nil {
		e.metrics.DispatchAttempts.WithLabelValues(string(channel), string(outcome)).Inc()
	}
	rec := &models.DispatchRecord{
		AlertID:      alertID,
		SubscriberID: subscriberID,
		Channel:      channel,
		AttemptedAt:  e.clock.Now().UTC(),
		Outcome:      outcome,
		Error:        errMsg,
	}
	if err := e.log.Record(ctx, rec); err != nil {
		slog.Error("error appending dispatch record",
			"alert", alertID, "subscriber", subscriberID, "channel", channel, "error", err)
	}
}

// FormatMessage renders an alert as a single plain-text message shared by all
// channels.
func FormatMessage(alert *models.Alert) string {
	var b strings.Builder
	b.WriteString(alert.Title)
	b.WriteString("\n\n")
	b.WriteString(alert.Narrative)
	if len(alert.ImmediateActions) > 0 {
		b.WriteString("\n\nDo now:")
		for _, a := range alert.ImmediateActions {
			b.WriteString("\n- ")
			b.WriteString(a)
		}
	}
	return b.String()
}
