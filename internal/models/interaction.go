package models

// Livecomment is a viewer comment on a livestream, optionally carrying a tip.
type Livecomment struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	UserID       uint        `gorm:"not null;index" json:"user_id"`
	User         *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LivestreamID uint        `gorm:"not null;index" json:"livestream_id"`
	Livestream   *Livestream `gorm:"foreignKey:LivestreamID" json:"livestream,omitempty"`
	Comment      string      `gorm:"type:text;not null" json:"comment"`
	Tip          int64       `gorm:"not null;default:0" json:"tip"`
	CreatedAt    int64       `gorm:"autoCreateTime" json:"created_at"`
}

// Reaction is an emoji posted to a livestream.
type Reaction struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"not null;index" json:"user_id"`
	User         *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LivestreamID uint   `gorm:"not null;index" json:"livestream_id"`
	EmojiName    string `gorm:"size:255;not null" json:"emoji_name"`
	CreatedAt    int64  `gorm:"autoCreateTime" json:"created_at"`
}

// LivecommentReport flags a livecomment as spam.
type LivecommentReport struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UserID        uint         `gorm:"not null;index" json:"user_id"`
	User          *User        `gorm:"foreignKey:UserID" json:"reporter,omitempty"`
	LivestreamID  uint         `gorm:"not null;index" json:"livestream_id"`
	LivecommentID uint         `gorm:"not null;index" json:"livecomment_id"`
	Livecomment   *Livecomment `gorm:"foreignKey:LivecommentID" json:"livecomment,omitempty"`
	CreatedAt     int64        `gorm:"autoCreateTime" json:"created_at"`
}

// NGWord is a banned word registered by a livestream owner.
type NGWord struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"not null;index:idx_ng_owner_livestream" json:"user_id"`
	LivestreamID uint   `gorm:"not null;index:idx_ng_owner_livestream" json:"livestream_id"`
	Word         string `gorm:"size:255;not null" json:"word"`
	CreatedAt    int64  `gorm:"autoCreateTime" json:"created_at"`
}

func (NGWord) TableName() string {
	return "ng_words"
}
