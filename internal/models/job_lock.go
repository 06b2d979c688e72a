package models

import "time"

// JobLock is a claimed run of a scheduled job. Job plus Slot is unique, so
// only the first server to insert a slot runs it.
type JobLock struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Job        string    `gorm:"uniqueIndex:idx_job_slot;size:64;not null" json:"job"`
	Slot       string    `gorm:"uniqueIndex:idx_job_slot;size:64;not null" json:"slot"`
	Owner      string    `gorm:"size:64" json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"index" json:"expires_at"`
}

func (JobLock) TableName() string { return "job_locks" }

// Expired reports whether the claim no longer blocks other servers.
func (l JobLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
