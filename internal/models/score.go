package models

import "time"

// Score is the persisted grade of one student for one assignment.
type Score struct {
	AssignmentID uint      `gorm:"primaryKey;autoIncrement:false" json:"assignment_id"`
	StudentID    string    `gorm:"primaryKey;size:32" json:"student_id"`
	Score        float64   `gorm:"not null;default:0" json:"score"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
