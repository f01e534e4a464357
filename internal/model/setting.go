package model

import "time"

// SettingRow is one persisted key/value override of a store default.
type SettingRow struct {
	Key       string    `gorm:"primarykey;size:64" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SettingRow) TableName() string { return "settings" }
