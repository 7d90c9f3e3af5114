package backend

import (
	"context"
	"path/filepath"
	"testing"

	"fintrack/internal/config"
	"fintrack/internal/ledger"
	"fintrack/internal/storage"
)

func TestOpenLedgerStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     Config
		check   func(t *testing.T, s ledger.Store)
		wantErr bool
	}{
		{
			name: "json",
			cfg:  Config{Type: JSONBackend, LedgerPath: filepath.Join(dir, "data.json")},
			check: func(t *testing.T, s ledger.Store) {
				if _, ok := s.(*ledger.JSONStore); !ok {
					t.Errorf("store = %T", s)
				}
			},
		},
		{
			name: "sqlite",
			cfg:  Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "f.db")},
			check: func(t *testing.T, s ledger.Store) {
				if _, ok := s.(*storage.SQLiteRepository); !ok {
					t.Errorf("store = %T", s)
				}
			},
		},
		{
			name: "memory",
			cfg:  Config{Type: MemoryBackend},
			check: func(t *testing.T, s ledger.Store) {
				if _, ok := s.(*ledger.MemoryStore); !ok {
					t.Errorf("store = %T", s)
				}
			},
		},
		{name: "json without path", cfg: Config{Type: JSONBackend}, wantErr: true},
		{name: "unknown", cfg: Config{Type: "sheets"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := OpenLedgerStore(context.Background(), tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer res.Close()
			tt.check(t, res.Store)
			if _, err := res.Store.Load(context.Background()); err != nil {
				t.Errorf("Load: %v", err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := config.Defaults()
	app.LedgerBackend = "sqlite"
	app.SQLiteDBPath = "/tmp/x.db"

	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" {
		t.Errorf("cfg = %+v", cfg)
	}

	app.LedgerBackend = "postgres"
	if _, err := FromAppConfig(app); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
