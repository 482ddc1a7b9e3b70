package clientsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/models"
	"github.com/mmdatafocus/clients_backend/utils"
	"github.com/sirupsen/logrus"
)

// ClientSource reads and writes client records.
type ClientSource interface {
	ListClients(ctx context.Context) ([]ClientRecord, error)
	// GetClient returns ErrClientNotFound for an unknown id.
	GetClient(ctx context.Context, id int) (*ClientRecord, error)
	// FindClientByUser returns ErrClientNotFound when no client is linked to the user.
	FindClientByUser(ctx context.Context, wpUserID int) (*ClientRecord, error)
	UpdateClientField(ctx context.Context, id int, field Field, value string) error
	SetLink(ctx context.Context, id int, wpUserID int) error
}

// UserSource reads and writes WordPress users.
type UserSource interface {
	ListUsers(ctx context.Context, ids []int) ([]UserRecord, error)
	ListUsersByEmail(ctx context.Context, emails []string) ([]UserRecord, error)
	// GetUser returns ErrUserNotFound for an unknown id.
	GetUser(ctx context.Context, id int) (*UserRecord, error)
	UpdateUserField(ctx context.Context, id int, field Field, value string) error
}

type IgnoreStore interface {
	ListRules(ctx context.Context) ([]IgnoreRule, error)
	// InsertRule reports whether a new rule was stored.
	InsertRule(ctx context.Context, rule IgnoreRule) (bool, error)
	DeleteRule(ctx context.Context, field Field, sourceValue, targetValue string) (int64, error)
}

type StaffSource interface {
	StaffUserIDs(ctx context.Context) ([]int, error)
}

type AuditSink interface {
	Append(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, clientID int, limit int) ([]AuditEntry, error)
}

const (
	storeClients   = "client"
	storeWordPress = "wordpress"
	storeIgnore    = "ignore rule"
	storeStaff     = "staff"
	storeAudit     = "audit log"
)

// adapter bounds every query with the configured timeout.
type adapter struct {
	timeout time.Duration
	logger  *logrus.Logger
}

func (a adapter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// fail logs the raw cause and returns the operator-safe store error.
func (a adapter) fail(store, op string, data any, err error) error {
	if isTimeout(err) {
		a.logger.WithFields(logrus.Fields{"store": store, "op": op}).Warn("query timed out")
	}
	config.LogError(a.logger, "clientsync", op, "store failure", data, err)
	return storeError(store, op, err)
}

type GormClientSource struct {
	adapter
	store *models.ClientStore
}

func NewGormClientSource(store *models.ClientStore, timeout time.Duration, logger *logrus.Logger) *GormClientSource {
	return &GormClientSource{adapter: adapter{timeout: timeout, logger: logger}, store: store}
}

func (s *GormClientSource) ListClients(ctx context.Context) ([]ClientRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	clients, err := s.store.List(ctx, models.ClientFilter{})
	if err != nil {
		return nil, s.fail(storeClients, "ListClients", nil, err)
	}
	records := make([]ClientRecord, 0, len(clients))
	for i := range clients {
		records = append(records, s.toRecord(&clients[i]))
	}
	return records, nil
}

func (s *GormClientSource) GetClient(ctx context.Context, id int) (*ClientRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	client, err := s.store.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, s.fail(storeClients, "GetClient", map[string]int{"client_id": id}, err)
	}
	record := s.toRecord(client)
	return &record, nil
}

func (s *GormClientSource) FindClientByUser(ctx context.Context, wpUserID int) (*ClientRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	client, err := s.store.FindByWpUserId(ctx, wpUserID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, s.fail(storeClients, "FindClientByUser", map[string]int{"wp_user_id": wpUserID}, err)
	}
	record := s.toRecord(client)
	return &record, nil
}

func (s *GormClientSource) UpdateClientField(ctx context.Context, id int, field Field, value string) error {
	column, ok := clientFields[field]
	if !ok {
		return ErrInvalidInput
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.store.UpdateColumn(ctx, id, column, value); err != nil {
		return s.fail(storeClients, "UpdateClientField", map[string]any{"client_id": id, "field": field}, err)
	}
	return nil
}

func (s *GormClientSource) SetLink(ctx context.Context, id int, wpUserID int) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var link *int
	if wpUserID > 0 {
		link = &wpUserID
	}
	if err := s.store.SetWpUserId(ctx, id, link); err != nil {
		if utils.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w (wordpress user %d)", ErrUserAlreadyLinked, wpUserID)
		}
		return s.fail(storeClients, "SetLink", map[string]int{"client_id": id, "wp_user_id": wpUserID}, err)
	}
	return nil
}

// toRecord leaves out a sensitive value that does not decrypt and keeps going.
func (s *GormClientSource) toRecord(c *models.Client) ClientRecord {
	record := ClientRecord{
		ID:           c.ID,
		WpUserID:     utils.DereferencePtr(c.WpUserId),
		CustomerType: c.CustomerType,
		Values: map[Field]*string{
			FieldFirstName:  strPtr(c.FirstName),
			FieldLastName:   strPtr(c.LastName),
			FieldEmail:      strPtr(c.Email),
			FieldPhone:      strPtr(c.PhonePrimary),
			FieldPostalCode: strPtr(c.PostalCode),
		},
	}
	sensitive, failures := s.store.DecryptSensitive(c)
	for field, err := range failures {
		s.logger.WithFields(logrus.Fields{
			"module":    "clientsync",
			"client_id": c.ID,
			"field":     field,
		}).Warn("skipping field that failed to decrypt: " + err.Error())
	}
	if len(sensitive) > 0 {
		record.Sensitive = sensitive
	}
	return record
}

type GormUserSource struct {
	adapter
	store *models.WpUserStore
}

func NewGormUserSource(store *models.WpUserStore, timeout time.Duration, logger *logrus.Logger) *GormUserSource {
	return &GormUserSource{adapter: adapter{timeout: timeout, logger: logger}, store: store}
}

func (s *GormUserSource) ListUsers(ctx context.Context, ids []int) ([]UserRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	users, err := s.store.ListByIds(ctx, ids)
	if err != nil {
		return nil, s.fail(storeWordPress, "ListUsers", map[string]int{"ids": len(ids)}, err)
	}
	return toUserRecords(users), nil
}

func (s *GormUserSource) ListUsersByEmail(ctx context.Context, emails []string) ([]UserRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	users, err := s.store.ListByEmails(ctx, emails)
	if err != nil {
		return nil, s.fail(storeWordPress, "ListUsersByEmail", map[string]int{"emails": len(emails)}, err)
	}
	return toUserRecords(users), nil
}

func (s *GormUserSource) GetUser(ctx context.Context, id int) (*UserRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	user, err := s.store.FindById(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, s.fail(storeWordPress, "GetUser", map[string]int{"wp_user_id": id}, err)
	}
	record := toUserRecord(*user)
	return &record, nil
}

func (s *GormUserSource) UpdateUserField(ctx context.Context, id int, field Field, value string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var err error
	switch field {
	case FieldEmail:
		err = s.store.UpdateEmail(ctx, id, value)
	case FieldFirstName:
		err = s.store.SetMeta(ctx, id, models.WpMetaFirstName, value)
	case FieldLastName:
		err = s.store.SetMeta(ctx, id, models.WpMetaLastName, value)
	case FieldPhone:
		err = s.store.SetMeta(ctx, id, models.WpMetaPhone, value)
	case FieldPostalCode:
		err = s.store.SetMeta(ctx, id, models.WpMetaPostcode, value)
	default:
		return ErrInvalidInput
	}
	if err != nil {
		return s.fail(storeWordPress, "UpdateUserField", map[string]any{"wp_user_id": id, "field": field}, err)
	}
	return nil
}

func toUserRecords(users []models.WordPressUser) []UserRecord {
	records := make([]UserRecord, 0, len(users))
	for _, u := range users {
		records = append(records, toUserRecord(u))
	}
	return records
}

// toUserRecord maps a missing usermeta row to nil.
func toUserRecord(u models.WordPressUser) UserRecord {
	meta := func(key string) *string {
		if v, ok := u.Meta[key]; ok {
			return strPtr(v)
		}
		return nil
	}
	return UserRecord{
		ID: u.ID,
		Values: map[Field]*string{
			FieldFirstName:  meta(models.WpMetaFirstName),
			FieldLastName:   meta(models.WpMetaLastName),
			FieldEmail:      strPtr(u.Email),
			FieldPhone:      meta(models.WpMetaPhone),
			FieldPostalCode: meta(models.WpMetaPostcode),
		},
	}
}

type GormIgnoreStore struct {
	adapter
	store *models.IgnoreRuleStore
}

func NewGormIgnoreStore(store *models.IgnoreRuleStore, timeout time.Duration, logger *logrus.Logger) *GormIgnoreStore {
	return &GormIgnoreStore{adapter: adapter{timeout: timeout, logger: logger}, store: store}
}

func (s *GormIgnoreStore) ListRules(ctx context.Context) ([]IgnoreRule, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, s.fail(storeIgnore, "ListRules", nil, err)
	}
	rules := make([]IgnoreRule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, IgnoreRule{
			FieldName:   Field(r.FieldName),
			SourceValue: r.SourceValue,
			TargetValue: r.TargetValue,
			IgnoredBy:   r.IgnoredBy,
			CreatedAt:   r.CreatedAt,
		})
	}
	return rules, nil
}

func (s *GormIgnoreStore) InsertRule(ctx context.Context, rule IgnoreRule) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	created, err := s.store.Insert(ctx, &models.IgnoreRule{
		FieldName:   string(rule.FieldName),
		SourceValue: rule.SourceValue,
		TargetValue: rule.TargetValue,
		IgnoredBy:   rule.IgnoredBy,
	})
	if err != nil {
		return false, s.fail(storeIgnore, "InsertRule", map[string]any{"field": rule.FieldName}, err)
	}
	return created, nil
}

func (s *GormIgnoreStore) DeleteRule(ctx context.Context, field Field, sourceValue, targetValue string) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.store.Delete(ctx, string(field), sourceValue, targetValue)
	if err != nil {
		return 0, s.fail(storeIgnore, "DeleteRule", map[string]any{"field": field}, err)
	}
	return n, nil
}

type GormStaffSource struct {
	adapter
	store *models.StaffStore
}

func NewGormStaffSource(store *models.StaffStore, timeout time.Duration, logger *logrus.Logger) *GormStaffSource {
	return &GormStaffSource{adapter: adapter{timeout: timeout, logger: logger}, store: store}
}

func (s *GormStaffSource) StaffUserIDs(ctx context.Context) ([]int, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ids, err := s.store.ListWpUserIds(ctx)
	if err != nil {
		return nil, s.fail(storeStaff, "StaffUserIDs", nil, err)
	}
	return ids, nil
}

type GormAuditSink struct {
	adapter
	store *models.AuditLogStore
}

func NewGormAuditSink(store *models.AuditLogStore, timeout time.Duration, logger *logrus.Logger) *GormAuditSink {
	return &GormAuditSink{adapter: adapter{timeout: timeout, logger: logger}, store: store}
}

func (s *GormAuditSink) Append(ctx context.Context, entry AuditEntry) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.store.Append(ctx, &models.AuditLog{
		ActorId:       entry.ActorID,
		ActorName:     entry.ActorName,
		Action:        entry.Action,
		ClientId:      entry.ClientID,
		WpUserId:      entry.WpUserID,
		FieldName:     entry.FieldName,
		OldValue:      entry.OldValue,
		NewValue:      entry.NewValue,
		Source:        entry.Source,
		CorrelationId: entry.CorrelationID,
	})
	if err != nil {
		return storeError(storeAudit, "Append", err)
	}
	return nil
}

func (s *GormAuditSink) List(ctx context.Context, clientID int, limit int) ([]AuditEntry, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.store.List(ctx, clientID, limit)
	if err != nil {
		return nil, s.fail(storeAudit, "List", map[string]int{"client_id": clientID}, err)
	}
	entries := make([]AuditEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, AuditEntry{
			ActorID:       r.ActorId,
			ActorName:     r.ActorName,
			Action:        r.Action,
			ClientID:      r.ClientId,
			WpUserID:      r.WpUserId,
			FieldName:     r.FieldName,
			OldValue:      r.OldValue,
			NewValue:      r.NewValue,
			Source:        r.Source,
			CorrelationID: r.CorrelationId,
			CreatedAt:     r.CreatedAt,
		})
	}
	return entries, nil
}

// errIsStore reports whether err came from an unreachable store.
func errIsStore(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
