package models

import "time"

// Setting is one row of the durable key-value settings table.
type Setting struct {
	Key         string `gorm:"primaryKey;size:128"`
	Value       string `gorm:"type:text"`
	Description string `gorm:"type:text"`
	UpdatedAt   time.Time
}

func (Setting) TableName() string { return "settings" }
