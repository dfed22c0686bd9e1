package backend

import (
	"strings"
	"testing"

	"myfinance/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "ledger.db"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "ledger.db" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestInvalidBackendErrorsListValidTypes(t *testing.T) {
	_, fromErr := FromAppConfig(&config.Config{DataBackend: "sheets"})
	validateErr := Config{Type: "sheets"}.Validate()

	for _, err := range []error{fromErr, validateErr} {
		if err == nil {
			t.Fatal("expected error for unknown backend")
		}
		for _, name := range GetBackendTypeStrings() {
			if !strings.Contains(err.Error(), name) {
				t.Errorf("error %q does not mention %q", err, name)
			}
		}
	}
}

func TestGetBackendTypesAreValid(t *testing.T) {
	types := GetBackendTypes()
	if len(types) != 2 {
		t.Fatalf("GetBackendTypes() = %v", types)
	}
	for _, bt := range types {
		if !bt.IsValid() {
			t.Errorf("%q reported invalid", bt)
		}
	}
}
