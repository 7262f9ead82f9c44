// Copyright 2025 James Ross
package events

import (
	"testing"

	"github.com/beobservant/becertain/internal/rcamodel"
)

func TestRegistryInWindowAndNearTimestamp(t *testing.T) {
	r := NewRegistry()
	r.RegisterMany([]rcamodel.DeploymentEvent{
		{Service: "checkout", Timestamp: 100, Version: "1.0.0"},
		{Service: "checkout", Timestamp: 500, Version: "1.0.1"},
		{Service: "payments", Timestamp: 520, Version: "2.0.0"},
	})

	inWindow := r.InWindow(0, 200)
	if len(inWindow) != 1 || inWindow[0].Version != "1.0.0" {
		t.Fatalf("expected only the first event in window, got %+v", inWindow)
	}

	near := r.NearTimestamp(510, 50)
	if len(near) != 2 {
		t.Fatalf("expected 2 events near 510, got %d", len(near))
	}
}

func TestRegistryMostRecentPicksLatestPerService(t *testing.T) {
	r := NewRegistry()
	r.Register(rcamodel.DeploymentEvent{Service: "checkout", Timestamp: 100, Version: "1.0.0"})
	r.Register(rcamodel.DeploymentEvent{Service: "checkout", Timestamp: 300, Version: "1.0.2"})

	latest := r.MostRecent("checkout")
	if latest == nil || latest.Version != "1.0.2" {
		t.Fatalf("expected 1.0.2 to be most recent, got %+v", latest)
	}
	if r.MostRecent("unknown-service") != nil {
		t.Fatal("expected nil for a service with no events")
	}
}

func TestRegistryClearAndReplace(t *testing.T) {
	r := NewRegistry()
	r.Register(rcamodel.DeploymentEvent{Service: "checkout", Timestamp: 100})
	r.Clear()
	if len(r.ListAll()) != 0 {
		t.Fatal("expected registry to be empty after Clear")
	}

	r.Replace([]rcamodel.DeploymentEvent{{Service: "payments", Timestamp: 200}})
	all := r.ListAll()
	if len(all) != 1 || all[0].Service != "payments" {
		t.Fatalf("expected Replace to hydrate state, got %+v", all)
	}
}
