package models

// ConfigEntry is a row in the generic key/value configs table.
type ConfigEntry struct {
	Key    string `gorm:"column:key;primaryKey"`
	Config string `gorm:"column:config;not null"`
}

func (ConfigEntry) TableName() string { return "configs" }
