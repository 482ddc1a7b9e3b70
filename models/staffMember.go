package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// StaffMember links a staff person to their WordPress login. Those logins are
// never compared against client records.
type StaffMember struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100" json:"email"`
	WpUserId  *int      `gorm:"uniqueIndex" json:"wp_user_id"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type StaffStore struct {
	db *gorm.DB
}

func NewStaffStore(db *gorm.DB) *StaffStore {
	return &StaffStore{db: db}
}

// ListWpUserIds returns the WordPress ids of every staff member with a login,
// inactive staff included.
func (s *StaffStore) ListWpUserIds(ctx context.Context) ([]int, error) {
	var ids []int
	err := s.db.WithContext(ctx).Model(&StaffMember{}).
		Where("wp_user_id IS NOT NULL AND wp_user_id > 0").
		Order("wp_user_id").
		Pluck("wp_user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *StaffStore) Create(ctx context.Context, member *StaffMember) error {
	return s.db.WithContext(ctx).Create(member).Error
}
