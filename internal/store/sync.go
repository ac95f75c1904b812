package store

import (
	"fmt"
	"time"
)

// SyncDataType names a kind of imported data whose freshness is tracked.
type SyncDataType string

const (
	SyncTypeSnapshot SyncDataType = "snapshot"
	SyncTypeSettle   SyncDataType = "settle"
	SyncTypeHoldings SyncDataType = "holdings"
)

// DataFreshness reports how old an import is.
type DataFreshness struct {
	DataType    SyncDataType
	LastUpdated time.Time
	IsFresh     bool
	Age         time.Duration
}

// FreshnessTracker records imports and reports stale data. Mark prices
// go stale in minutes, settle prices only matter once per expiry.
type FreshnessTracker struct {
	store      DataStore
	thresholds map[SyncDataType]time.Duration
	now        func() time.Time
}

// DefaultStaleThresholds returns the default staleness limits.
func DefaultStaleThresholds() map[SyncDataType]time.Duration {
	return map[SyncDataType]time.Duration{
		SyncTypeSnapshot: 15 * time.Minute,
		SyncTypeSettle:   24 * time.Hour,
		SyncTypeHoldings: 24 * time.Hour,
	}
}

// NewFreshnessTracker creates a tracker over store. A nil thresholds map
// uses DefaultStaleThresholds.
func NewFreshnessTracker(store DataStore, thresholds map[SyncDataType]time.Duration) *FreshnessTracker {
	if thresholds == nil {
		thresholds = DefaultStaleThresholds()
	}
	return &FreshnessTracker{store: store, thresholds: thresholds, now: time.Now}
}

// MarkSynced records an import of dataType at the current time.
func (ft *FreshnessTracker) MarkSynced(dataType SyncDataType) error {
	if err := ft.store.SetLastSync(string(dataType), ft.now()); err != nil {
		return fmt.Errorf("failed to mark %s as synced: %w", dataType, err)
	}
	return nil
}

// Freshness returns the freshness of dataType. Data never imported is stale.
func (ft *FreshnessTracker) Freshness(dataType SyncDataType) *DataFreshness {
	last := ft.store.GetLastSync(string(dataType))
	threshold, ok := ft.thresholds[dataType]
	if !ok {
		threshold = time.Hour
	}

	f := &DataFreshness{DataType: dataType, LastUpdated: last}
	if last.IsZero() {
		return f
	}
	f.Age = ft.now().Sub(last)
	f.IsFresh = f.Age < threshold
	return f
}

// FormatFreshness returns a human-readable freshness string.
func FormatFreshness(f *DataFreshness) string {
	if f.LastUpdated.IsZero() {
		return fmt.Sprintf("%s: never imported", f.DataType)
	}

	var ageStr string
	switch age := f.Age; {
	case age < time.Minute:
		ageStr = "just now"
	case age < time.Hour:
		ageStr = fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		ageStr = fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		ageStr = fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}

	if f.IsFresh {
		return fmt.Sprintf("%s: updated %s", f.DataType, ageStr)
	}
	return fmt.Sprintf("%s: stale, updated %s", f.DataType, ageStr)
}
