package clientsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/models"
	"github.com/mmdatafocus/clients_backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSyncDB(t *testing.T) (*gorm.DB, Stores) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.NewGormConfig(""))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(context.Background(), db, nil, quietLogger()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := models.MigrateWordPressTables(db, "wp_"); err != nil {
		t.Fatalf("MigrateWordPressTables: %v", err)
	}
	cipher, err := utils.NewFieldCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	return db, NewStores(db, db, "wp_", cipher)
}

func TestGormService_EndToEnd(t *testing.T) {
	ctx := operatorCtx()
	db, stores := openSyncDB(t)
	svc := NewGormService(stores, 5*time.Second, quietLogger(), nil)

	client, err := stores.Clients.Create(ctx, &models.NewClient{
		CustomerType:      models.CustomerTypeVeteran,
		FirstName:         "Sam",
		LastName:          "Roy",
		Email:             "sam@example.com",
		PhonePrimary:      "506-453-2345",
		Address:           "12 King St",
		City:              "Fredericton",
		PostalCode:        "E3B 1A1",
		VeteranHealthCard: "VHC-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := stores.Users.CreateWpUser(ctx, &models.WpUser{ID: 10, UserLogin: "sam", UserEmail: "sam@example.com"}, map[string]string{
		models.WpMetaFirstName: "Samuel",
		models.WpMetaLastName:  "Roy",
		models.WpMetaPhone:     "506-453-2345",
		models.WpMetaPostcode:  "E3B 1A1",
	}); err != nil {
		t.Fatalf("CreateWpUser: %v", err)
	}

	report, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(report.Unlinked) != 1 || report.Unlinked[0].SuggestedUserID != 10 {
		t.Fatalf("expected a suggestion of user 10, got %+v", report.Unlinked)
	}

	if err := svc.LinkClientToUser(ctx, client.ID, 10); err != nil {
		t.Fatalf("LinkClientToUser: %v", err)
	}
	mismatches, err := svc.GetMismatches(ctx)
	if err != nil {
		t.Fatalf("GetMismatches: %v", err)
	}
	if len(mismatches) != 1 || mismatches[0].FieldName != FieldFirstName {
		t.Fatalf("expected the first name mismatch, got %+v", mismatches)
	}

	// a corrupt identifier is left out of the record, not a failure
	if err := db.Model(&models.Client{}).Where("id = ?", client.ID).
		Update("veteran_health_card_encrypted", "corrupt").Error; err != nil {
		t.Fatalf("corrupt column: %v", err)
	}
	record, err := NewGormClientSource(stores.Clients, time.Second, quietLogger()).GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if _, ok := record.Sensitive[models.ClientFieldVeteranHealthCard]; ok {
		t.Fatalf("expected the corrupt identifier to be omitted")
	}

	if err := svc.SetIgnored(ctx, FieldFirstName, "Sam", "Samuel", true); err != nil {
		t.Fatalf("SetIgnored: %v", err)
	}
	if err := svc.SetIgnored(ctx, FieldFirstName, "Sam", "Samuel", true); err != nil {
		t.Fatalf("SetIgnored again: %v", err)
	}
	if mismatches, err = svc.GetMismatches(ctx); err != nil || len(mismatches) != 0 {
		t.Fatalf("expected the mismatch ignored, got %+v err=%v", mismatches, err)
	}

	if err := svc.PushField(ctx, 10, FieldPhone, "506-555-0100"); err != nil {
		t.Fatalf("PushField: %v", err)
	}
	u, err := stores.Users.FindById(ctx, 10)
	if err != nil {
		t.Fatalf("FindById: %v", err)
	}
	if u.Meta[models.WpMetaPhone] != "506-555-0100" {
		t.Fatalf("expected phone meta updated, got %+v", u.Meta)
	}

	entries, err := svc.ListAuditLog(ctx, client.ID, 0)
	if err != nil {
		t.Fatalf("ListAuditLog: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != models.AuditActionPushField || entries[1].Action != models.AuditActionLink {
		t.Fatalf("unexpected audit entries %+v", entries)
	}
	if entries[0].ActorName != "Dana" || entries[0].OldValue != "506-453-2345" {
		t.Fatalf("unexpected push entry %+v", entries[0])
	}
}

func TestGormClientSource_SetLinkKeepsOneClientPerUser(t *testing.T) {
	ctx := context.Background()
	_, stores := openSyncDB(t)
	clients := NewGormClientSource(stores.Clients, time.Second, quietLogger())

	var ids []int
	for _, first := range []string{"Sam", "Alex"} {
		c, err := stores.Clients.Create(ctx, &models.NewClient{
			CustomerType:  models.CustomerTypePrivate,
			FirstName:     first,
			LastName:      "Roy",
			PhonePrimary:  "506-453-2345",
			Address:       "12 King St",
			City:          "Fredericton",
			PostalCode:    "E3B 1A1",
			PaymentMethod: models.PaymentMethodCash,
		})
		if err != nil {
			t.Fatalf("Create %s: %v", first, err)
		}
		ids = append(ids, c.ID)
	}

	if err := clients.SetLink(ctx, ids[0], 10); err != nil {
		t.Fatalf("SetLink: %v", err)
	}
	// a second writer that got past the linker's check still loses
	err := clients.SetLink(ctx, ids[1], 10)
	if !errors.Is(err, ErrUserAlreadyLinked) || errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrUserAlreadyLinked, got %v", err)
	}

	if err := clients.SetLink(ctx, ids[0], 0); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if err := clients.SetLink(ctx, ids[1], 10); err != nil {
		t.Fatalf("expected the freed user to be linkable, got %v", err)
	}
	holder, err := clients.FindClientByUser(ctx, 10)
	if err != nil || holder.ID != ids[1] {
		t.Fatalf("expected client %d to hold user 10, got %+v err=%v", ids[1], holder, err)
	}
}

func TestGormSources_NotFoundAndClosedDB(t *testing.T) {
	ctx := context.Background()
	db, stores := openSyncDB(t)
	clients := NewGormClientSource(stores.Clients, time.Second, quietLogger())
	users := NewGormUserSource(stores.Users, time.Second, quietLogger())

	if _, err := clients.GetClient(ctx, 404); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
	if _, err := clients.FindClientByUser(ctx, 404); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
	if _, err := users.GetUser(ctx, 404); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	_ = sqlDB.Close()

	_, err = clients.ListClients(ctx)
	var se *StoreError
	if !errors.As(err, &se) || se.Store != storeClients {
		t.Fatalf("expected a client StoreError, got %v", err)
	}
	if _, err := users.GetUser(ctx, 1); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
