package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/seanlumasag/job-application-tracker/internal/store"
)

// StoreSink appends events to the audit_events table. Events without an
// attributed user are dropped: the table is scoped per account.
type StoreSink struct {
	store store.AuditStore
}

func NewStoreSink(s store.AuditStore) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Emit(ctx context.Context, event Event) {
	if event.UserID == uuid.Nil {
		return
	}
	_ = s.store.AppendAuditEvent(ctx, &store.AuditEvent{
		ID:        uuid.New(),
		UserID:    event.UserID,
		EventType: event.EventType,
		Success:   event.Success,
		Detail:    event.Detail,
		CreatedAt: event.Timestamp,
	})
}

// NATSSink publishes JSON-encoded events to a subject, for deployments
// that collect audit trails centrally.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Emit(_ context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = s.conn.Publish(s.subject, payload)
}

func (s *NATSSink) Close() {
	_ = s.conn.Drain()
}
