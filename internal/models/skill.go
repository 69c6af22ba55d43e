package models

import "time"

// WorkerSkill is a certification held by a worker. Only verified, unexpired
// rows count toward requirements.
type WorkerSkill struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	UserID            uint   `gorm:"not null;index"`
	SkillName         string `gorm:"size:64;not null;index"`
	Level             int    `gorm:"default:1"`
	CertificateNumber string `gorm:"size:64"`
	IssuedAt          *time.Time
	ExpiresAt         *time.Time
	Verified          bool `gorm:"not null"`
	VerifiedBy        *uint
	VerifiedAt        *time.Time
	CreatedAt         time.Time
}

// ValidOn reports whether the skill counts on the given date.
func (s *WorkerSkill) ValidOn(date time.Time) bool {
	if !s.Verified {
		return false
	}
	return s.ExpiresAt == nil || !s.ExpiresAt.Before(date)
}
