// Package models defines the GORM models persisted by Pixelprobe.
package models

import "time"

// InferenceRecord is one completed analysis: the question asked, the task it
// was classified as, the model that answered, and how long it took.
type InferenceRecord struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Task           string    `gorm:"size:32;index" json:"task"`
	Source         string    `gorm:"size:16" json:"source"`
	Model          string    `gorm:"size:64;index" json:"model"`
	Question       string    `gorm:"type:text" json:"question"`
	Filename       string    `gorm:"size:255" json:"filename"`
	Result         string    `gorm:"type:text" json:"result"`
	LatencySeconds float64   `json:"latency"`
	CreatedAt      time.Time `gorm:"index" json:"timestamp"`
}

// All returns every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&InferenceRecord{},
	}
}
