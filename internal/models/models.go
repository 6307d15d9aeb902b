package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project statuses.
const (
	ProjectActive   = "active"
	ProjectArchived = "archived"
)

// Interest statuses.
const (
	InterestPending   = "pending"
	InterestAccepted  = "accepted"
	InterestDismissed = "dismissed"
)

// User is the local copy of a verified identity. Profile fields mirror the
// identity provider and are refreshed on every verified sign-in.
type User struct {
	ID          string `gorm:"primaryKey;size:64"`
	FID         int64  `gorm:"column:fid;uniqueIndex;not null"`
	Handle      string `gorm:"size:64"`
	DisplayName string `gorm:"size:64"`
	AvatarURL   string `gorm:"size:512"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PaymentRecord is one consumed fee payment. Rows are only ever inserted.
type PaymentRecord struct {
	TxHash       string `gorm:"primaryKey;size:66"`
	Action       string `gorm:"size:16;index;not null"`
	PayerAddress string `gorm:"size:42;index;not null"`
	// Amount is a base-10 uint256.
	Amount      string    `gorm:"size:78;not null"`
	BlockNumber uint64    `gorm:"not null"`
	BlockTime   time.Time `gorm:"not null"`
	UserID      *string   `gorm:"size:64;index"`
	CreatedAt   time.Time `gorm:"index"`
}

func (PaymentRecord) TableName() string { return "payments" }

// Project is a posting looking for collaborators.
type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID     string    `gorm:"size:64;index;not null"`
	Title       string    `gorm:"size:140;not null"`
	Pitch       string    `gorm:"size:2000;not null"`
	ProjectType string    `gorm:"size:64;index"`
	Skills      []string  `gorm:"serializer:json"`
	Status      string    `gorm:"size:16;index;not null"`
	PaymentTx   *string   `gorm:"size:66;uniqueIndex"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

// CollaboratorProfile is a user's offer to work on projects. One per user.
type CollaboratorProfile struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID                string    `gorm:"size:64;uniqueIndex;not null"`
	User                  User      `gorm:"foreignKey:UserID"`
	Bio                   string    `gorm:"size:2000"`
	Skills                []string  `gorm:"serializer:json"`
	ProjectTypes          []string  `gorm:"serializer:json"`
	AvailabilityHoursWeek *int
	PaymentTx             *string `gorm:"size:66;uniqueIndex"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Interest is a user's request to join a project. A user has at most one
// interest per project. SkillMatch records whether the sender's profile
// shared a skill with the project when the interest was sent.
type Interest struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_interest_project_user"`
	Project    Project   `gorm:"foreignKey:ProjectID"`
	FromUserID string    `gorm:"size:64;not null;index;uniqueIndex:idx_interest_project_user"`
	FromUser   User      `gorm:"foreignKey:FromUserID"`
	Message    string    `gorm:"size:1000"`
	SkillMatch bool
	Status     string    `gorm:"size:16;index;not null"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
}

// AutoMigrate performs all schema migrations for the service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&PaymentRecord{},
		&Project{},
		&CollaboratorProfile{},
		&Interest{},
	)
}
