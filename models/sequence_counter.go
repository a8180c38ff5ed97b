// Package models contains domain entities persisted by the sequence allocator
package models

import "time"

// SequenceCounter stores the last value for named monotonic counters.
// Table: sequence_counters
// Name is the sequence domain (e.g. "orderNumber"); LastValue is the last
// number handed out, 0 before the first allocation.
type SequenceCounter struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	LastValue int64     `gorm:"not null" json:"last_value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }

// SequenceCounterFilter represents filter criteria for counter queries
type SequenceCounterFilter struct {
	Name          *string
	NamePrefix    *string
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
}
