package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/clients_backend/models"
	"gorm.io/gorm"
)

func TestWpUserStore_ReadsUsersWithMeta(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := models.NewWpUserStore(db, testPrefix)

	if err := store.CreateWpUser(ctx, &models.WpUser{ID: 42, UserLogin: "sam", UserEmail: "Sam@Example.com"}, map[string]string{
		models.WpMetaFirstName: "Samuel",
		models.WpMetaPhone:     "506-453-2345",
		"nickname":             "sammy",
	}); err != nil {
		t.Fatalf("CreateWpUser: %v", err)
	}
	// a second row for the same key is ignored
	if err := db.Table(testPrefix + "usermeta").Create(&models.WpUserMeta{UserId: 42, MetaKey: models.WpMetaFirstName, MetaValue: "Later"}).Error; err != nil {
		t.Fatalf("insert meta: %v", err)
	}

	user, err := store.FindById(ctx, 42)
	if err != nil {
		t.Fatalf("FindById: %v", err)
	}
	if user.Meta[models.WpMetaFirstName] != "Samuel" {
		t.Fatalf("expected first meta row to win, got %q", user.Meta[models.WpMetaFirstName])
	}
	if _, ok := user.Meta["nickname"]; ok {
		t.Fatalf("expected unrelated meta keys to be skipped")
	}
	if _, ok := user.Meta[models.WpMetaLastName]; ok {
		t.Fatalf("expected no last_name entry without a usermeta row")
	}

	byEmail, err := store.ListByEmails(ctx, []string{" sam@example.COM "})
	if err != nil {
		t.Fatalf("ListByEmails: %v", err)
	}
	if len(byEmail) != 1 || byEmail[0].ID != 42 {
		t.Fatalf("expected case-insensitive email match, got %+v", byEmail)
	}

	if _, err := store.FindById(ctx, 99); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestWpUserStore_SetMetaInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := models.NewWpUserStore(db, testPrefix)

	if err := store.CreateWpUser(ctx, &models.WpUser{ID: 7, UserLogin: "alex", UserEmail: "alex@example.com"}, nil); err != nil {
		t.Fatalf("CreateWpUser: %v", err)
	}
	if err := store.SetMeta(ctx, 7, models.WpMetaPostcode, "E3B 1A1"); err != nil {
		t.Fatalf("SetMeta insert: %v", err)
	}
	if err := store.SetMeta(ctx, 7, models.WpMetaPostcode, "E1C 4B6"); err != nil {
		t.Fatalf("SetMeta update: %v", err)
	}

	var count int64
	if err := db.Table(testPrefix+"usermeta").Where("user_id = ? AND meta_key = ?", 7, models.WpMetaPostcode).Count(&count).Error; err != nil {
		t.Fatalf("count meta: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one postcode row, got %d", count)
	}

	if err := store.UpdateEmail(ctx, 7, "alex@new.example.com"); err != nil {
		t.Fatalf("UpdateEmail: %v", err)
	}
	user, err := store.FindById(ctx, 7)
	if err != nil {
		t.Fatalf("FindById: %v", err)
	}
	if user.Email != "alex@new.example.com" || user.Meta[models.WpMetaPostcode] != "E1C 4B6" {
		t.Fatalf("unexpected user %+v", user)
	}
}
