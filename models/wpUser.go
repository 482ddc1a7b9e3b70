package models

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// WordPress usermeta keys read and written by the sync.
const (
	WpMetaFirstName = "first_name"
	WpMetaLastName  = "last_name"
	WpMetaPhone     = "billing_phone"
	WpMetaPostcode  = "billing_postcode"
)

var wpSyncedMetaKeys = []string{WpMetaFirstName, WpMetaLastName, WpMetaPhone, WpMetaPostcode}

// WpUser is a row of {prefix}users.
type WpUser struct {
	ID           int    `gorm:"column:ID;primaryKey"`
	UserLogin    string `gorm:"column:user_login;size:60"`
	UserEmail    string `gorm:"column:user_email;size:100;index"`
	DisplayName  string `gorm:"column:display_name;size:250"`
	UserNicename string `gorm:"column:user_nicename;size:50"`
}

// WpUserMeta is a row of {prefix}usermeta.
type WpUserMeta struct {
	UmetaId   int    `gorm:"column:umeta_id;primaryKey"`
	UserId    int    `gorm:"column:user_id;index"`
	MetaKey   string `gorm:"column:meta_key;size:255;index"`
	MetaValue string `gorm:"column:meta_value;type:longtext"`
}

// WordPressUser is a user joined with the usermeta the sync cares about.
// A meta key absent from Meta has no row in usermeta.
type WordPressUser struct {
	ID          int               `json:"id"`
	Login       string            `json:"login"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	Meta        map[string]string `json:"meta"`
}

// WpUserStore reads and writes WordPress users. WordPress owns the schema.
type WpUserStore struct {
	db     *gorm.DB
	prefix string
}

func NewWpUserStore(db *gorm.DB, tablePrefix string) *WpUserStore {
	return &WpUserStore{db: db, prefix: tablePrefix}
}

func (s *WpUserStore) usersTable() string {
	return s.prefix + "users"
}

func (s *WpUserStore) metaTable() string {
	return s.prefix + "usermeta"
}

// FindById returns gorm.ErrRecordNotFound for an unknown user.
func (s *WpUserStore) FindById(ctx context.Context, id int) (*WordPressUser, error) {
	users, err := s.load(ctx, s.db.WithContext(ctx).Table(s.usersTable()).Where("ID = ?", id))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &users[0], nil
}

func (s *WpUserStore) ListByIds(ctx context.Context, ids []int) ([]WordPressUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.load(ctx, s.db.WithContext(ctx).Table(s.usersTable()).Where("ID IN ?", ids))
}

// ListByEmails matches user_email case-insensitively.
func (s *WpUserStore) ListByEmails(ctx context.Context, emails []string) ([]WordPressUser, error) {
	lowered := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			lowered = append(lowered, e)
		}
	}
	if len(lowered) == 0 {
		return nil, nil
	}
	return s.load(ctx, s.db.WithContext(ctx).Table(s.usersTable()).Where("LOWER(user_email) IN ?", lowered))
}

func (s *WpUserStore) load(ctx context.Context, q *gorm.DB) ([]WordPressUser, error) {
	var rows []WpUser
	if err := q.Order("ID").Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var metas []WpUserMeta
	if err := s.db.WithContext(ctx).Table(s.metaTable()).
		Where("user_id IN ? AND meta_key IN ?", ids, wpSyncedMetaKeys).
		Order("umeta_id").
		Find(&metas).Error; err != nil {
		return nil, err
	}
	metaByUser := make(map[int]map[string]string, len(rows))
	for _, m := range metas {
		if metaByUser[m.UserId] == nil {
			metaByUser[m.UserId] = make(map[string]string)
		}
		// first row wins, as get_user_meta($id, $key, true) does
		if _, seen := metaByUser[m.UserId][m.MetaKey]; !seen {
			metaByUser[m.UserId][m.MetaKey] = m.MetaValue
		}
	}

	users := make([]WordPressUser, 0, len(rows))
	for _, r := range rows {
		meta := metaByUser[r.ID]
		if meta == nil {
			meta = map[string]string{}
		}
		users = append(users, WordPressUser{
			ID:          r.ID,
			Login:       r.UserLogin,
			Email:       r.UserEmail,
			DisplayName: r.DisplayName,
			Meta:        meta,
		})
	}
	return users, nil
}

func (s *WpUserStore) UpdateEmail(ctx context.Context, id int, email string) error {
	return s.db.WithContext(ctx).Table(s.usersTable()).Where("ID = ?", id).Update("user_email", email).Error
}

// SetMeta updates every row of the key or inserts one when there is none.
func (s *WpUserStore) SetMeta(ctx context.Context, id int, key string, value string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Table(s.metaTable()).Where("user_id = ? AND meta_key = ?", id, key).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return tx.Table(s.metaTable()).Create(&WpUserMeta{UserId: id, MetaKey: key, MetaValue: value}).Error
		}
		return tx.Table(s.metaTable()).Where("user_id = ? AND meta_key = ?", id, key).Update("meta_value", value).Error
	})
}

// MigrateWordPressTables creates the two WordPress tables for local and test databases.
// Production WordPress databases already have them.
func MigrateWordPressTables(db *gorm.DB, tablePrefix string) error {
	if db == nil {
		return errors.New("db is nil")
	}
	if err := db.Table(tablePrefix + "users").AutoMigrate(&WpUser{}); err != nil {
		return err
	}
	return db.Table(tablePrefix + "usermeta").AutoMigrate(&WpUserMeta{})
}

// CreateWpUser inserts a user with meta, for seeding local databases and tests.
func (s *WpUserStore) CreateWpUser(ctx context.Context, user *WpUser, meta map[string]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(s.usersTable()).Create(user).Error; err != nil {
			return err
		}
		for k, v := range meta {
			if err := tx.Table(s.metaTable()).Create(&WpUserMeta{UserId: user.ID, MetaKey: k, MetaValue: v}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
