package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestNewDependencies_MemoryDefaults(t *testing.T) {
	logger := log.WithField("test", "dependencies")

	deps, err := NewDependencies(context.Background(), DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	if deps.Repo == nil {
		t.Error("Repo should not be nil")
	}
	if deps.OutboxRepo == nil {
		t.Error("OutboxRepo should not be nil")
	}
	if deps.Directory == nil {
		t.Error("Directory should not be nil")
	}
	if deps.Catalog == nil {
		t.Error("Catalog should not be nil")
	}
	if deps.Inventory == nil {
		t.Error("Inventory should not be nil")
	}
	if deps.Store != nil {
		t.Error("Store should be nil without PostgresDSN")
	}
	if deps.Logger == nil {
		t.Error("Logger should not be nil")
	}
}

func TestNewDependencies_WithNilLogger(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	if deps.Logger == nil {
		t.Error("Logger should be initialized even when nil is passed")
	}
}

func TestNewDependencies_RemoteCollaborators(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClientsAddr = "127.0.0.1:4010"
	cfg.ProductsAddr = "127.0.0.1:4020"

	deps, err := NewDependencies(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	// Соединения ленивые: клиент создаётся без дозвона до адресата.
	if deps.Directory == nil {
		t.Error("Directory should not be nil")
	}
	if deps.Catalog == nil {
		t.Error("Catalog should not be nil")
	}
	if len(deps.closers) != 2 {
		t.Errorf("expected 2 closers for rpc clients, got %d", len(deps.closers))
	}
}

func TestDependencies_CloseIsIdempotent(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}

	deps.Close()
	deps.Close()
}
