package models

// Livestream is a scheduled broadcast owned by one user.
// StartAt and EndAt are unix seconds.
type Livestream struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	Owner          *User  `gorm:"foreignKey:UserID" json:"owner,omitempty"`
	Title          string `gorm:"size:255;not null" json:"title"`
	Description    string `gorm:"type:text" json:"description"`
	PlaylistURL    string `gorm:"size:500" json:"playlist_url"`
	ThumbnailURL   string `gorm:"size:500" json:"thumbnail_url"`
	StartAt        int64  `gorm:"not null;index" json:"start_at"`
	EndAt          int64  `gorm:"not null" json:"end_at"`
	ViewersCount   int64  `gorm:"not null;default:0" json:"viewers_count"`
	TotalReactions int64  `gorm:"not null;default:0" json:"total_reactions"`
	TotalReports   int64  `gorm:"not null;default:0" json:"total_reports"`
	TotalTip       int64  `gorm:"not null;default:0" json:"total_tip"`
	MaxTip         int64  `gorm:"not null;default:0" json:"max_tip"`
	Score          int64  `gorm:"not null;default:0" json:"score"`
	Tags           []Tag  `gorm:"many2many:livestream_tags;" json:"tags"`
}

// Tag labels livestreams for search.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:255;not null;uniqueIndex" json:"name"`
}

// ReservationSlot is one bookable window. Slot holds the remaining capacity.
type ReservationSlot struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	Slot    int64 `gorm:"not null" json:"slot"`
	StartAt int64 `gorm:"not null;uniqueIndex:idx_reservation_window" json:"start_at"`
	EndAt   int64 `gorm:"not null;uniqueIndex:idx_reservation_window" json:"end_at"`
}

// LivestreamViewersHistory records a viewer currently inside a livestream.
type LivestreamViewersHistory struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	UserID       uint  `gorm:"not null;index:idx_viewer_livestream" json:"user_id"`
	LivestreamID uint  `gorm:"not null;index:idx_viewer_livestream" json:"livestream_id"`
	CreatedAt    int64 `gorm:"autoCreateTime" json:"created_at"`
}

func (LivestreamViewersHistory) TableName() string {
	return "livestream_viewers_history"
}
