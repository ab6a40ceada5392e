package models

import (
	"time"

	"gorm.io/datatypes"
)

// ConfigEntry is one row of the flat runtime key/value store. The kill
// switch state lives here under its own key and is written only by the kill
// switch manager; everything else reads.
type ConfigEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Key string `gorm:"type:varchar(120);not null;uniqueIndex"`

	// JSON value, e.g. a bare bool for switches or an object for richer state.
	Value datatypes.JSON `gorm:"type:jsonb;not null"`

	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (ConfigEntry) TableName() string {
	return "config"
}
