// Copyright 2025 James Ross
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// deploymentEventMessage is the wire shape published onto Events.Subject:
// a deployment event plus the tenant it belongs to, since
// rcamodel.DeploymentEvent itself carries no tenant field (spec §4.9,
// supplementing the distilled spec's in-process-only ingestion with the
// async path original_source's store/events.py left to its caller).
type deploymentEventMessage struct {
	TenantID string                  `json:"tenant_id"`
	Event    rcamodel.DeploymentEvent `json:"event"`
}

// Handler registers one tenant's deployment event, typically
// tenant.Registry.RegisterEvent bound to a context.
type Handler func(tenantID string, event rcamodel.DeploymentEvent) error

// Subscriber listens on a NATS subject for deployment events and feeds
// them to a Handler, decoupling deployment notification from the
// request/response Analyze path (spec §4.9).
type Subscriber struct {
	cfg  config.Events
	log  *zap.Logger
	conn *nats.Conn
	sub  *nats.Subscription
}

func NewSubscriber(cfg config.Events, log *zap.Logger) *Subscriber {
	return &Subscriber{cfg: cfg, log: log}
}

// Start connects to NATS and begins delivering messages to handle. It
// returns once the subscription is established; delivery continues on
// NATS's own goroutines until Stop is called.
func (s *Subscriber) Start(handle Handler) error {
	conn, err := nats.Connect(s.cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}

	sub, err := conn.QueueSubscribe(s.cfg.Subject, s.cfg.QueueGroup, func(msg *nats.Msg) {
		var decoded deploymentEventMessage
		if err := json.Unmarshal(msg.Data, &decoded); err != nil {
			s.log.Warn("discarding malformed deployment event", zap.Error(err))
			return
		}
		if decoded.TenantID == "" {
			s.log.Warn("discarding deployment event with no tenant_id")
			return
		}
		if err := handle(decoded.TenantID, decoded.Event); err != nil {
			s.log.Error("failed to register deployment event", zap.String("tenant_id", decoded.TenantID), zap.Error(err))
		}
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Subject, err)
	}

	s.conn = conn
	s.sub = sub
	return nil
}

// Stop unsubscribes and closes the NATS connection. Safe to call on a
// Subscriber that was never started.
func (s *Subscriber) Stop() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
