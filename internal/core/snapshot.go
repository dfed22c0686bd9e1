package core

import (
	"encoding/json"
	"time"
)

// SnapshotVersion is the only envelope version Import accepts.
const SnapshotVersion = 1

// RecordKind names an adjacent entity family carried verbatim by backups.
type RecordKind string

const (
	KindVehicles               RecordKind = "vehicles"
	KindVehicleServices        RecordKind = "vehicleServices"
	KindVehicleServiceRules    RecordKind = "vehicleServiceRules"
	KindProperties             RecordKind = "properties"
	KindPropertyCosts          RecordKind = "propertyCosts"
	KindInsurances             RecordKind = "insurances"
	KindInsurancePremiums      RecordKind = "insurancePremiums"
	KindCalendarIntegrations   RecordKind = "calendarIntegrations"
	KindNotificationRules      RecordKind = "notificationRules"
	KindNotificationDeliveries RecordKind = "notificationDeliveries"
	KindCalendarEvents         RecordKind = "calendarEvents"
	KindRateSnapshots          RecordKind = "rateSnapshots"
)

// RecordKinds lists every adjacent kind in export order.
var RecordKinds = []RecordKind{
	KindVehicles,
	KindVehicleServices,
	KindVehicleServiceRules,
	KindProperties,
	KindPropertyCosts,
	KindInsurances,
	KindInsurancePremiums,
	KindCalendarIntegrations,
	KindNotificationRules,
	KindNotificationDeliveries,
	KindCalendarEvents,
	KindRateSnapshots,
}

type SnapshotMeta struct {
	Version        int       `json:"version"`
	ExportedAt     time.Time `json:"exportedAt"`
	StorageBackend string    `json:"storageBackend"`
}

// SnapshotData is the payload of a backup. Adjacent kinds are kept as raw
// JSON rows so they round-trip byte-for-byte.
type SnapshotData struct {
	AppSettings   *AppSettings                     `json:"appSettings"`
	CustomLocales map[string]map[string]string     `json:"customLocales"`
	Accounts      []Account                        `json:"accounts"`
	Transactions  []Transaction                    `json:"transactions"`
	Records       map[RecordKind][]json.RawMessage `json:"-"`
	RateWatchlist []string                         `json:"rateWatchlist"`
}

type Snapshot struct {
	Meta SnapshotMeta `json:"meta"`
	Data SnapshotData `json:"data"`
}

// ImportCounts reports how many rows of each entity were restored.
type ImportCounts struct {
	Accounts      int                `json:"accounts"`
	Transactions  int                `json:"transactions"`
	CustomLocales int                `json:"customLocales"`
	Records       map[RecordKind]int `json:"records"`
	RateWatchlist int                `json:"rateWatchlist"`
}

// MarshalJSON flattens the adjacent kinds next to the ledger arrays.
func (d SnapshotData) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"appSettings":   d.AppSettings,
		"customLocales": nonNilLocales(d.CustomLocales),
		"accounts":      nonNil(d.Accounts),
		"transactions":  nonNil(d.Transactions),
		"rateWatchlist": nonNil(d.RateWatchlist),
	}
	for _, kind := range RecordKinds {
		out[string(kind)] = nonNil(d.Records[kind])
	}
	return json.Marshal(out)
}

func (d *SnapshotData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decode := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return NewValidationError("data."+key, "%v", err)
		}
		return nil
	}
	*d = SnapshotData{Records: make(map[RecordKind][]json.RawMessage)}
	if err := decode("appSettings", &d.AppSettings); err != nil {
		return err
	}
	if err := decode("customLocales", &d.CustomLocales); err != nil {
		return err
	}
	if err := decode("accounts", &d.Accounts); err != nil {
		return err
	}
	if err := decode("transactions", &d.Transactions); err != nil {
		return err
	}
	if err := decode("rateWatchlist", &d.RateWatchlist); err != nil {
		return err
	}
	for _, kind := range RecordKinds {
		var rows []json.RawMessage
		if err := decode(string(kind), &rows); err != nil {
			return err
		}
		if len(rows) > 0 {
			d.Records[kind] = rows
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilLocales(m map[string]map[string]string) map[string]map[string]string {
	if m == nil {
		return map[string]map[string]string{}
	}
	return m
}
