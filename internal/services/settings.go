package services

import (
	"context"
	"fmt"
	"time"

	"myfinance/internal/backend"
	"myfinance/internal/core"
	"myfinance/internal/log"
)

// Settings returns the owner's settings, falling back to the defaults for an
// owner that never saved any.
func (l *Ledger) Settings(ctx context.Context, ownerID string) (core.AppSettings, error) {
	var s core.AppSettings
	err := l.view(ctx, log.OpGetSettings, ownerID, func(tx backend.Tx) error {
		var err error
		s, err = loadSettings(tx)
		return err
	})
	return s, err
}

// UpdateSettings merges patch into the stored settings.
func (l *Ledger) UpdateSettings(ctx context.Context, ownerID string, patch core.AppSettingsPatch) (core.AppSettings, error) {
	if v, ok := patch.DefaultDisplayCurrency.Get(); ok {
		patch.DefaultDisplayCurrency = core.Set(core.NormalizeCurrency(v))
	}
	if v, ok := patch.SecondaryDisplayCurrency.Get(); ok {
		patch.SecondaryDisplayCurrency = core.Set(core.NormalizeCurrency(v))
	}

	var s core.AppSettings
	err := l.update(ctx, log.OpUpdateSettings, ownerID, func(tx backend.Tx) error {
		current, err := loadSettings(tx)
		if err != nil {
			return err
		}
		s = current.Merge(patch)
		if err := s.Validate(); err != nil {
			return err
		}
		return tx.PutSettings(s)
	}, func() core.LedgerEvent {
		return core.LedgerEvent{Type: core.EventSettingsUpdated, OwnerID: ownerID}
	})
	if err != nil {
		return core.AppSettings{}, fmt.Errorf("update settings: %w", err)
	}
	return s, nil
}

// MarkBackupRun records the time of the last successful auto-backup.
func (l *Ledger) MarkBackupRun(ctx context.Context, ownerID string, at time.Time) error {
	at = at.UTC()
	_, err := l.UpdateSettings(ctx, ownerID, core.AppSettingsPatch{AutoBackupLastRunAt: core.Set(at)})
	return err
}

func loadSettings(tx backend.Tx) (core.AppSettings, error) {
	s, ok, err := tx.Settings()
	if err != nil {
		return core.AppSettings{}, err
	}
	if !ok {
		return core.DefaultAppSettings(), nil
	}
	return s, nil
}
