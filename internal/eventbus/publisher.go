// Package eventbus publishes fired alerts onto NATS as a best-effort
// side-channel: the pipeline never blocks on it and never fails a frame's
// verdict because of it.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/proctor/internal/models"
)

const (
	alertsStreamName = "PROCTOR_ALERTS"
)

// Publisher fans fired AlertEvents out to a JetStream stream, subject
// "<base>.<session_id>", so an external supervisor can subscribe per
// session without touching the hot per-frame path.
type Publisher struct {
	nc          *nats.Conn
	js          jetstream.JetStream
	subjectBase string
}

// NewPublisher connects to NATS and ensures the alerts stream exists. A nil
// Publisher (returned alongside a non-nil error) means alert publication is
// disabled for this process; callers must treat that as optional.
func NewPublisher(natsURL, subjectBase string) (*Publisher, error) {
	if natsURL == "" {
		return nil, fmt.Errorf("nats url not configured")
	}

	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        alertsStreamName,
		Subjects:    []string{subjectBase + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      1 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Description: "Fired proctoring alerts, one subject per session",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure alerts stream: %w", err)
	}

	return &Publisher{nc: nc, js: js, subjectBase: subjectBase}, nil
}

// alertPayload is the wire shape for one published alert event.
type alertPayload struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	At        time.Time `json:"at"`
}

// PublishAlert best-effort publishes one fired alert kind. Errors are
// logged and swallowed — a publish failure must never affect the verdict
// already sent to the examinee's session.
func (p *Publisher) PublishAlert(sessionID string, kind models.AlertKind, at time.Time) {
	if p == nil {
		return
	}

	payload, err := json.Marshal(alertPayload{SessionID: sessionID, Kind: string(kind), At: at})
	if err != nil {
		slog.Warn("marshal alert event", "error", err)
		return
	}

	subject := fmt.Sprintf("%s.%s", p.subjectBase, sessionID)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		slog.Warn("publish alert event", "error", err, "session_id", sessionID)
	}
}

// Close releases the underlying NATS connection. Safe to call on a nil
// Publisher.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}
