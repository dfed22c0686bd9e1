package cli

import (
	"path/filepath"
	"testing"

	"myfinance/internal/backend"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     backend.Config
		want    string
		wantErr bool
	}{
		{name: "memory", cfg: backend.Config{Type: backend.MemoryBackend}, want: "memory"},
		{name: "sqlite", cfg: backend.Config{Type: backend.SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "l.db")}, want: "sqlite"},
		{name: "sqlite without path", cfg: backend.Config{Type: backend.SQLiteBackend}, wantErr: true},
		{name: "unknown backend", cfg: backend.Config{Type: "sheets"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := OpenStore(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenStore() error = %v", err)
			}
			defer store.Close()
			if got := store.Backend(); got != tt.want {
				t.Errorf("Backend() = %q, want %q", got, tt.want)
			}
		})
	}
}
