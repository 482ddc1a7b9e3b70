package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mmdatafocus/clients_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IgnoreRule suppresses a mismatch while both values stay exactly the same.
// RuleHash identifies the (field, source, target) triple; values are compared
// byte for byte, no trimming or case folding.
type IgnoreRule struct {
	ID          int       `gorm:"primary_key" json:"id"`
	RuleHash    string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	FieldName   string    `gorm:"size:64;not null;index" json:"field_name"`
	SourceValue string    `gorm:"type:text" json:"source_value"`
	TargetValue string    `gorm:"type:text" json:"target_value"`
	IgnoredBy   string    `gorm:"size:100" json:"ignored_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (IgnoreRule) TableName() string {
	return "sync_ignore_rules"
}

// IgnoreRuleHash is length-prefixed so that ("a|b", "c") and ("a", "b|c") differ.
func IgnoreRuleHash(fieldName, sourceValue, targetValue string) string {
	key := fmt.Sprintf("%d:%s|%d:%s|%d:%s",
		len(fieldName), fieldName,
		len(sourceValue), sourceValue,
		len(targetValue), targetValue)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

type IgnoreRuleStore struct {
	db *gorm.DB
}

func NewIgnoreRuleStore(db *gorm.DB) *IgnoreRuleStore {
	return &IgnoreRuleStore{db: db}
}

func (s *IgnoreRuleStore) List(ctx context.Context) ([]IgnoreRule, error) {
	var rules []IgnoreRule
	if err := s.db.WithContext(ctx).Order("id").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Insert adds the rule unless the triple is already ignored.
// It reports whether a row was written.
func (s *IgnoreRuleStore) Insert(ctx context.Context, rule *IgnoreRule) (bool, error) {
	rule.RuleHash = IgnoreRuleHash(rule.FieldName, rule.SourceValue, rule.TargetValue)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rule)
	if res.Error != nil {
		// a concurrent insert of the same triple
		if utils.IsDuplicateKeyError(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete removes every rule of the triple and returns how many went away.
func (s *IgnoreRuleStore) Delete(ctx context.Context, fieldName, sourceValue, targetValue string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("rule_hash = ?", IgnoreRuleHash(fieldName, sourceValue, targetValue)).
		Delete(&IgnoreRule{})
	return res.RowsAffected, res.Error
}
