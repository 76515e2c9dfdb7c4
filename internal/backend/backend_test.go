package backend

import (
	"path/filepath"
	"testing"

	"finledger/internal/config"
	"finledger/internal/log"
)

func TestBackendTypeIsValid(t *testing.T) {
	tests := []struct {
		backendType BackendType
		expected    bool
	}{
		{MemoryBackend, true},
		{SQLiteBackend, true},
		{BackendType("sheets"), false},
		{BackendType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.backendType.String(), func(t *testing.T) {
			if got := tt.backendType.IsValid(); got != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.backendType, got, tt.expected)
			}
		})
	}
}

func TestCreateMemoryStore(t *testing.T) {
	f := NewFactory(log.New(log.DefaultConfig()))

	result, err := f.CreateStore(&config.Config{DataBackend: "memory"})
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}
	if result.Store == nil {
		t.Fatal("CreateStore() returned nil store")
	}
	if err := result.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
}

func TestCreateSQLiteStore(t *testing.T) {
	f := NewFactory(log.New(log.DefaultConfig()))

	result, err := f.CreateStore(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}
	if result.Store == nil {
		t.Fatal("CreateStore() returned nil store")
	}
	if err := result.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
}

func TestCreateStoreRejectsUnknownBackend(t *testing.T) {
	f := NewFactory(log.New(log.DefaultConfig()))

	if _, err := f.CreateStore(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("CreateStore() should reject unknown backend types")
	}
}
