package utils

import (
	"fmt"
	"time"
)

// ExpiryHourUTC is the hour at which daily options expire.
const ExpiryHourUTC = 8

// NextExpiry returns the first daily expiry strictly after now.
func NextExpiry(now time.Time) time.Time {
	now = now.UTC()
	expiry := time.Date(now.Year(), now.Month(), now.Day(), ExpiryHourUTC, 0, 0, 0, time.UTC)
	if !expiry.After(now) {
		expiry = expiry.AddDate(0, 0, 1)
	}
	return expiry
}

// TimeToExpiry returns the time left until expiry, or zero once expired.
func TimeToExpiry(now time.Time, expiry int64) time.Duration {
	d := time.Unix(expiry, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsExpired reports whether expiry has passed at now.
func IsExpired(now time.Time, expiry int64) bool {
	return now.Unix() >= expiry
}

// FormatTimeToExpiry formats the time left as "2d 4h", "3h 12m" or "expired".
func FormatTimeToExpiry(now time.Time, expiry int64) string {
	d := TimeToExpiry(now, expiry)
	switch {
	case d == 0:
		return "expired"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
}
