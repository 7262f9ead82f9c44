// Copyright 2025 James Ross
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/beobservant/becertain/internal/rcamodel"
)

// LoadEvents returns the persisted deployment-event log for tenantID.
func (c *Client) LoadEvents(ctx context.Context, tenantID string) ([]rcamodel.DeploymentEvent, error) {
	raw, ok, err := c.Get(ctx, EventsKey(tenantID))
	if err != nil || !ok {
		return nil, err
	}
	var events []rcamodel.DeploymentEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("unmarshal events %s: %w", tenantID, err)
	}
	return events, nil
}

// AppendEvent loads the existing event log for tenantID, appends event, and
// persists the result under EventsTTL. The log is capped at
// MaxEventsPerTenant, dropping the oldest entries first, to bound the
// payload size of a tenant that deploys constantly.
func (c *Client) AppendEvent(ctx context.Context, tenantID string, event rcamodel.DeploymentEvent) error {
	existing, err := c.LoadEvents(ctx, tenantID)
	if err != nil {
		return err
	}
	existing = append(existing, event)
	if max := c.cfg.MaxEventsPerTenant; max > 0 && len(existing) > max {
		existing = existing[len(existing)-max:]
	}
	raw, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshal events %s: %w", tenantID, err)
	}
	return c.Set(ctx, EventsKey(tenantID), string(raw), c.cfg.EventsTTL)
}

// ClearEvents removes the stored event log for tenantID.
func (c *Client) ClearEvents(ctx context.Context, tenantID string) error {
	return c.Delete(ctx, EventsKey(tenantID))
}
