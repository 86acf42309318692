package models

import (
	"strings"
	"time"
)

// Assignment represents a graded programming assignment.
type Assignment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	DueDate          time.Time `json:"due_date"`
	Weight           float64   `gorm:"not null;default:0" json:"weight"`
	ExpectedOutput   string    `gorm:"type:text" json:"expected_output"`
	Args             string    `gorm:"size:1024" json:"args"`
	Stdin            string    `gorm:"type:text" json:"stdin"`
	ReferenceArchive string    `gorm:"size:1024" json:"reference_archive"`
	SubmissionsDir   string    `gorm:"size:1024" json:"submissions_dir"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasSubmissions reports whether a student submissions location is configured.
func (a Assignment) HasSubmissions() bool {
	return strings.TrimSpace(a.SubmissionsDir) != ""
}

// HasExpectedOutput reports whether the expected output has been generated or entered.
func (a Assignment) HasExpectedOutput() bool {
	return strings.TrimSpace(a.ExpectedOutput) != ""
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	if a.DueDate.IsZero() {
		return false
	}
	return reference.After(a.DueDate)
}
