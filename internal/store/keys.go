// Copyright 2025 James Ross
package store

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// slug shortens a free-form name into a fixed-width, filesystem/Redis-key
// safe token so metric and service names with arbitrary characters never
// break the key scheme below.
func slug(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])[:12]
}

// BaselineKey is the per-tenant, per-metric learned-baseline key.
func BaselineKey(tenantID, metricName string) string {
	return fmt.Sprintf("bc:%s:baseline:%s", tenantID, slug(metricName))
}

// WeightsKey is the per-tenant adaptive signal-weights key.
func WeightsKey(tenantID string) string {
	return fmt.Sprintf("bc:%s:weights", tenantID)
}

// GrangerKey is the per-tenant, per-service cached Granger-result key.
func GrangerKey(tenantID, service string) string {
	return fmt.Sprintf("bc:%s:granger:%s", tenantID, slug(service))
}

// EventsKey is the per-tenant deployment-event log key.
func EventsKey(tenantID string) string {
	return fmt.Sprintf("bc:%s:events", tenantID)
}
