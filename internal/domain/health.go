package domain

import "time"

// HealthSnapshot is the activity state the health monitor inspects
type HealthSnapshot struct {
	ActivityCount int64     `json:"activity_count"`
	LastActivity  time.Time `json:"last_activity"`
}

// Since returns the time elapsed between the last activity and now
func (h HealthSnapshot) Since(now time.Time) time.Duration {
	return now.Sub(h.LastActivity)
}
