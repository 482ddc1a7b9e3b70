package clientsync

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/mmdatafocus/clients_backend/models"
	"github.com/sirupsen/logrus"
)

var errConnRefused = errors.New("dial tcp 10.0.0.5:3306: connect: connection refused")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func rec(id, wpUserID int, first, last, email, phone, postal string) ClientRecord {
	return ClientRecord{
		ID:           id,
		WpUserID:     wpUserID,
		CustomerType: models.CustomerTypePrivate,
		Values: map[Field]*string{
			FieldFirstName:  strPtr(first),
			FieldLastName:   strPtr(last),
			FieldEmail:      strPtr(email),
			FieldPhone:      strPtr(phone),
			FieldPostalCode: strPtr(postal),
		},
	}
}

func user(id int, first, last, email, phone, postal string) UserRecord {
	return UserRecord{
		ID: id,
		Values: map[Field]*string{
			FieldFirstName:  strPtr(first),
			FieldLastName:   strPtr(last),
			FieldEmail:      strPtr(email),
			FieldPhone:      strPtr(phone),
			FieldPostalCode: strPtr(postal),
		},
	}
}

type fakeClients struct {
	records map[int]ClientRecord
	err     error
	writes  int
}

func newFakeClients(records ...ClientRecord) *fakeClients {
	f := &fakeClients{records: map[int]ClientRecord{}}
	for _, r := range records {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeClients) ListClients(ctx context.Context) ([]ClientRecord, error) {
	if f.err != nil {
		return nil, storeError(storeClients, "ListClients", f.err)
	}
	out := make([]ClientRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeClients) GetClient(ctx context.Context, id int) (*ClientRecord, error) {
	if f.err != nil {
		return nil, storeError(storeClients, "GetClient", f.err)
	}
	r, ok := f.records[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &r, nil
}

func (f *fakeClients) FindClientByUser(ctx context.Context, wpUserID int) (*ClientRecord, error) {
	if f.err != nil {
		return nil, storeError(storeClients, "FindClientByUser", f.err)
	}
	for _, r := range f.records {
		if r.WpUserID == wpUserID {
			return &r, nil
		}
	}
	return nil, ErrClientNotFound
}

func (f *fakeClients) UpdateClientField(ctx context.Context, id int, field Field, value string) error {
	if f.err != nil {
		return storeError(storeClients, "UpdateClientField", f.err)
	}
	r := f.records[id]
	values := make(map[Field]*string, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	values[field] = strPtr(value)
	r.Values = values
	f.records[id] = r
	f.writes++
	return nil
}

func (f *fakeClients) SetLink(ctx context.Context, id int, wpUserID int) error {
	if f.err != nil {
		return storeError(storeClients, "SetLink", f.err)
	}
	r := f.records[id]
	r.WpUserID = wpUserID
	f.records[id] = r
	f.writes++
	return nil
}

type fakeUsers struct {
	records map[int]UserRecord
	err     error
	// failWrites fails only UpdateUserField
	failWrites error
}

func newFakeUsers(records ...UserRecord) *fakeUsers {
	f := &fakeUsers{records: map[int]UserRecord{}}
	for _, r := range records {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeUsers) ListUsers(ctx context.Context, ids []int) ([]UserRecord, error) {
	if f.err != nil {
		return nil, storeError(storeWordPress, "ListUsers", f.err)
	}
	var out []UserRecord
	for _, id := range ids {
		if u, ok := f.records[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListUsersByEmail(ctx context.Context, emails []string) ([]UserRecord, error) {
	if f.err != nil {
		return nil, storeError(storeWordPress, "ListUsersByEmail", f.err)
	}
	want := map[string]bool{}
	for _, e := range emails {
		want[normalizeEmail(e)] = true
	}
	var out []UserRecord
	for _, u := range f.records {
		if want[normalizeEmail(u.Value(FieldEmail))] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) GetUser(ctx context.Context, id int) (*UserRecord, error) {
	if f.err != nil {
		return nil, storeError(storeWordPress, "GetUser", f.err)
	}
	u, ok := f.records[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeUsers) UpdateUserField(ctx context.Context, id int, field Field, value string) error {
	if f.err != nil {
		return storeError(storeWordPress, "UpdateUserField", f.err)
	}
	if f.failWrites != nil {
		return storeError(storeWordPress, "UpdateUserField", f.failWrites)
	}
	u := f.records[id]
	values := make(map[Field]*string, len(u.Values))
	for k, v := range u.Values {
		values[k] = v
	}
	values[field] = strPtr(value)
	u.Values = values
	f.records[id] = u
	return nil
}

type fakeIgnores struct {
	rules []IgnoreRule
	err   error
}

func (f *fakeIgnores) ListRules(ctx context.Context) ([]IgnoreRule, error) {
	if f.err != nil {
		return nil, storeError(storeIgnore, "ListRules", f.err)
	}
	return append([]IgnoreRule(nil), f.rules...), nil
}

func (f *fakeIgnores) InsertRule(ctx context.Context, rule IgnoreRule) (bool, error) {
	if f.err != nil {
		return false, storeError(storeIgnore, "InsertRule", f.err)
	}
	for _, r := range f.rules {
		if r.FieldName == rule.FieldName && r.SourceValue == rule.SourceValue && r.TargetValue == rule.TargetValue {
			return false, nil
		}
	}
	f.rules = append(f.rules, rule)
	return true, nil
}

func (f *fakeIgnores) DeleteRule(ctx context.Context, field Field, sourceValue, targetValue string) (int64, error) {
	if f.err != nil {
		return 0, storeError(storeIgnore, "DeleteRule", f.err)
	}
	var kept []IgnoreRule
	var n int64
	for _, r := range f.rules {
		if r.FieldName == field && r.SourceValue == sourceValue && r.TargetValue == targetValue {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rules = kept
	return n, nil
}

type fakeStaff struct {
	ids []int
	err error
}

func (f *fakeStaff) StaffUserIDs(ctx context.Context) ([]int, error) {
	if f.err != nil {
		return nil, storeError(storeStaff, "StaffUserIDs", f.err)
	}
	return f.ids, nil
}

type fakeAudit struct {
	entries []AuditEntry
	err     error
}

func (f *fakeAudit) Append(ctx context.Context, entry AuditEntry) error {
	if f.err != nil {
		return storeError(storeAudit, "Append", f.err)
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) List(ctx context.Context, clientID int, limit int) ([]AuditEntry, error) {
	var out []AuditEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if clientID == 0 || f.entries[i].ClientID == clientID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

type fixture struct {
	clients *fakeClients
	users   *fakeUsers
	ignores *fakeIgnores
	staff   *fakeStaff
	audit   *fakeAudit
	svc     *Service
}

func newFixture(clients []ClientRecord, users []UserRecord) *fixture {
	f := &fixture{
		clients: newFakeClients(clients...),
		users:   newFakeUsers(users...),
		ignores: &fakeIgnores{},
		staff:   &fakeStaff{},
		audit:   &fakeAudit{},
	}
	f.svc = NewService(Deps{
		Clients: f.clients,
		Users:   f.users,
		Ignores: f.ignores,
		Staff:   f.staff,
		Audit:   f.audit,
		Logger:  quietLogger(),
	})
	return f
}
