package core

import (
	"time"
)

// AppSettings are the per-owner application preferences, including the
// auto-backup schedule consumed by the backup worker.
type AppSettings struct {
	DefaultLocale             string     `json:"defaultLocale"`
	DefaultTimezone           string     `json:"defaultTimezone"`
	DefaultDisplayCurrency    string     `json:"defaultDisplayCurrency"`
	SecondaryDisplayCurrency  string     `json:"secondaryDisplayCurrency"`
	CalendarProvider          string     `json:"calendarProvider"`
	CalendarSyncEnabled       bool       `json:"calendarSyncEnabled"`
	SelfRegistrationEnabled   bool       `json:"selfRegistrationEnabled"`
	SMTPEnabled               bool       `json:"smtpEnabled"`
	AutoBackupEnabled         bool       `json:"autoBackupEnabled"`
	AutoBackupIntervalMinutes int        `json:"autoBackupIntervalMinutes"`
	AutoBackupRetentionDays   int        `json:"autoBackupRetentionDays"`
	AutoBackupLastRunAt       *time.Time `json:"autoBackupLastRunAt"`
	SessionTimeoutMinutes     *int       `json:"sessionTimeoutMinutes"`
}

// AppSettingsPatch is a partial settings update.
type AppSettingsPatch struct {
	DefaultLocale             Patch[string]    `json:"defaultLocale"`
	DefaultTimezone           Patch[string]    `json:"defaultTimezone"`
	DefaultDisplayCurrency    Patch[string]    `json:"defaultDisplayCurrency"`
	SecondaryDisplayCurrency  Patch[string]    `json:"secondaryDisplayCurrency"`
	CalendarProvider          Patch[string]    `json:"calendarProvider"`
	CalendarSyncEnabled       Patch[bool]      `json:"calendarSyncEnabled"`
	SelfRegistrationEnabled   Patch[bool]      `json:"selfRegistrationEnabled"`
	SMTPEnabled               Patch[bool]      `json:"smtpEnabled"`
	AutoBackupEnabled         Patch[bool]      `json:"autoBackupEnabled"`
	AutoBackupIntervalMinutes Patch[int]       `json:"autoBackupIntervalMinutes"`
	AutoBackupRetentionDays   Patch[int]       `json:"autoBackupRetentionDays"`
	AutoBackupLastRunAt       Patch[time.Time] `json:"autoBackupLastRunAt"`
	SessionTimeoutMinutes     Patch[int]       `json:"sessionTimeoutMinutes"`
}

const (
	MinAutoBackupIntervalMinutes = 5
	MinAutoBackupRetentionDays   = 1
)

// DefaultAppSettings mirrors what a fresh owner sees.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		DefaultLocale:             "en",
		DefaultTimezone:           "Europe/Prague",
		DefaultDisplayCurrency:    "CZK",
		SecondaryDisplayCurrency:  "USD",
		CalendarProvider:          "google",
		CalendarSyncEnabled:       true,
		SelfRegistrationEnabled:   true,
		AutoBackupIntervalMinutes: 1440,
		AutoBackupRetentionDays:   30,
	}
}

func (s AppSettings) Validate() error {
	if s.AutoBackupIntervalMinutes < MinAutoBackupIntervalMinutes {
		return NewValidationError("autoBackupIntervalMinutes", "must be at least %d", MinAutoBackupIntervalMinutes)
	}
	if s.AutoBackupRetentionDays < MinAutoBackupRetentionDays {
		return NewValidationError("autoBackupRetentionDays", "must be at least %d", MinAutoBackupRetentionDays)
	}
	if s.SessionTimeoutMinutes != nil && *s.SessionTimeoutMinutes < 1 {
		return NewValidationError("sessionTimeoutMinutes", "must be at least 1")
	}
	if s.DefaultDisplayCurrency != "" {
		if err := ValidateCurrency("defaultDisplayCurrency", s.DefaultDisplayCurrency); err != nil {
			return err
		}
	}
	if s.SecondaryDisplayCurrency != "" {
		if err := ValidateCurrency("secondaryDisplayCurrency", s.SecondaryDisplayCurrency); err != nil {
			return err
		}
	}
	return nil
}

// BackupDue reports whether an auto-backup should run at now.
func (s AppSettings) BackupDue(now time.Time) bool {
	if !s.AutoBackupEnabled {
		return false
	}
	if s.AutoBackupLastRunAt == nil {
		return true
	}
	return now.Sub(*s.AutoBackupLastRunAt) >= time.Duration(s.AutoBackupIntervalMinutes)*time.Minute
}

// Merge applies p onto s. Non-nullable fields ignore an explicit clear.
func (s AppSettings) Merge(p AppSettingsPatch) AppSettings {
	setString := func(dst *string, f Patch[string]) {
		if v, ok := f.Get(); ok {
			*dst = v
		}
	}
	setBool := func(dst *bool, f Patch[bool]) {
		if v, ok := f.Get(); ok {
			*dst = v
		}
	}
	setInt := func(dst *int, f Patch[int]) {
		if v, ok := f.Get(); ok {
			*dst = v
		}
	}
	setString(&s.DefaultLocale, p.DefaultLocale)
	setString(&s.DefaultTimezone, p.DefaultTimezone)
	setString(&s.DefaultDisplayCurrency, p.DefaultDisplayCurrency)
	setString(&s.SecondaryDisplayCurrency, p.SecondaryDisplayCurrency)
	setString(&s.CalendarProvider, p.CalendarProvider)
	setBool(&s.CalendarSyncEnabled, p.CalendarSyncEnabled)
	setBool(&s.SelfRegistrationEnabled, p.SelfRegistrationEnabled)
	setBool(&s.SMTPEnabled, p.SMTPEnabled)
	setBool(&s.AutoBackupEnabled, p.AutoBackupEnabled)
	setInt(&s.AutoBackupIntervalMinutes, p.AutoBackupIntervalMinutes)
	setInt(&s.AutoBackupRetentionDays, p.AutoBackupRetentionDays)
	p.AutoBackupLastRunAt.Apply(&s.AutoBackupLastRunAt)
	p.SessionTimeoutMinutes.Apply(&s.SessionTimeoutMinutes)
	return s
}
