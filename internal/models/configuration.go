package models

import "time"

// Configuration binds a language to one toolchain installation.
type Configuration struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Language  string    `gorm:"size:32;not null;uniqueIndex:idx_configuration_language_path" json:"language"`
	Path      string    `gorm:"size:1024;not null;uniqueIndex:idx_configuration_language_path" json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
