// Package models contains data structures for the application's domain models.
package models

import "time"

// User is a platform account. The counter columns aggregate activity on the
// livestreams the user owns and are only mutated through the aggregate manager.
type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	DisplayName       string    `gorm:"size:255" json:"display_name"`
	Description       string    `gorm:"type:text" json:"description"`
	Password          string    `gorm:"size:255;not null" json:"-"`
	DarkMode          bool      `gorm:"default:false" json:"dark_mode"`
	Score             int64     `gorm:"not null;default:0" json:"score"`
	ViewersCount      int64     `gorm:"not null;default:0" json:"viewers_count"`
	TotalReactions    int64     `gorm:"not null;default:0" json:"total_reactions"`
	TotalLivecomments int64     `gorm:"not null;default:0" json:"total_livecomments"`
	TotalTip          int64     `gorm:"not null;default:0" json:"total_tip"`
	CreatedAt         time.Time `json:"created_at"`
}
