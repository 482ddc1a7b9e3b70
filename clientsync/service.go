package clientsync

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/clients_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Deps struct {
	Clients ClientSource
	Users   UserSource
	Ignores IgnoreStore
	Staff   StaffSource
	Audit   AuditSink
	Logger  *logrus.Logger
	Tracer  trace.Tracer
}

// Service is the entry point for handlers and the CLI. It keeps no state
// between calls; every pass reads both stores again.
type Service struct {
	clients ClientSource
	users   UserSource
	ignores IgnoreStore
	staff   StaffSource
	audit   AuditSink
	gateway *Gateway
	linker  *Linker
	logger  *logrus.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(d Deps) *Service {
	tracer := d.Tracer
	if tracer == nil {
		tracer = otel.Tracer("clientsync")
	}
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		clients: d.Clients,
		users:   d.Users,
		ignores: d.Ignores,
		staff:   d.Staff,
		audit:   d.Audit,
		gateway: NewGateway(d.Clients, d.Users, d.Ignores, d.Audit, logger),
		linker:  NewLinker(d.Clients, d.Users, d.Audit, logger),
		logger:  logger,
		tracer:  tracer,
		now:     time.Now,
	}
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "clientsync."+op, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Reconcile runs a full pass. Any store failure aborts the pass and is
// returned unchanged; a partial report is never returned.
func (s *Service) Reconcile(ctx context.Context) (report *Report, err error) {
	ctx, span := s.start(ctx, "Reconcile")
	defer func() { end(span, err) }()

	clients, err := s.clients.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	linked, unlinked := splitByLink(clients)

	rules, err := s.ignores.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	staffIDs, err := s.staff.StaffUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.loadUsers(ctx, linked, unlinked)
	if err != nil {
		return nil, err
	}

	result := Detect(users, linked, unlinked, staffIDs)
	visible := FilterIgnored(result.Mismatches, rules)

	report = &Report{
		Mismatches:   visible,
		Unlinked:     result.Unlinked,
		Orphaned:     result.Orphaned,
		IgnoredCount: len(result.Mismatches) - len(visible),
		GeneratedAt:  s.now(),
	}
	span.SetAttributes(
		attribute.Int("clients", len(clients)),
		attribute.Int("mismatches", len(visible)),
		attribute.Int("ignored", report.IgnoredCount),
	)
	return report, nil
}

// loadUsers reads the linked users by id and the link candidates by email.
func (s *Service) loadUsers(ctx context.Context, linked, unlinked []ClientRecord) ([]UserRecord, error) {
	ids := make([]int, 0, len(linked))
	seen := make(map[int]struct{}, len(linked))
	for _, c := range linked {
		if _, ok := seen[c.WpUserID]; !ok {
			seen[c.WpUserID] = struct{}{}
			ids = append(ids, c.WpUserID)
		}
	}
	users, err := s.users.ListUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(unlinked))
	for _, c := range unlinked {
		if email := normalizeEmail(c.Value(FieldEmail)); email != "" {
			emails = append(emails, email)
		}
	}
	if len(emails) == 0 {
		return users, nil
	}
	byEmail, err := s.users.ListUsersByEmail(ctx, utils.UniqueSlice(emails))
	if err != nil {
		return nil, err
	}
	for _, u := range byEmail {
		if _, ok := seen[u.ID]; !ok {
			seen[u.ID] = struct{}{}
			users = append(users, u)
		}
	}
	return users, nil
}

// GetMismatches returns the divergent, non-ignored fields of every linked pair.
func (s *Service) GetMismatches(ctx context.Context) ([]Mismatch, error) {
	report, err := s.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	return report.Mismatches, nil
}

func (s *Service) PushField(ctx context.Context, targetUserID int, field Field, value string) (err error) {
	ctx, span := s.start(ctx, "PushField",
		attribute.Int("wp_user_id", targetUserID),
		attribute.String("field", string(field)))
	defer func() { end(span, err) }()

	return s.gateway.PushField(ctx, targetUserID, field, value)
}

func (s *Service) PushClientField(ctx context.Context, clientID int, field Field, value string) (err error) {
	ctx, span := s.start(ctx, "PushClientField",
		attribute.Int("client_id", clientID),
		attribute.String("field", string(field)))
	defer func() { end(span, err) }()

	return s.gateway.PushClientField(ctx, clientID, field, value)
}

func (s *Service) SetIgnored(ctx context.Context, field Field, sourceValue, targetValue string, ignored bool) (err error) {
	ctx, span := s.start(ctx, "SetIgnored",
		attribute.String("field", string(field)),
		attribute.Bool("ignored", ignored))
	defer func() { end(span, err) }()

	return s.gateway.SetIgnored(ctx, field, sourceValue, targetValue, ignored)
}

func (s *Service) LinkClientToUser(ctx context.Context, clientID int, wpUserID int) (err error) {
	ctx, span := s.start(ctx, "LinkClientToUser",
		attribute.Int("client_id", clientID),
		attribute.Int("wp_user_id", wpUserID))
	defer func() { end(span, err) }()

	return s.linker.Link(ctx, clientID, wpUserID)
}

// SyncPair pushes every divergent, non-ignored field of one linked pair in the
// given direction. A field that is refused is reported and the rest go on; a
// store failure stops the sync. Pairs linked to staff accounts are refused,
// as reconciliation never diffs them.
func (s *Service) SyncPair(ctx context.Context, clientID int, direction Direction) (result *SyncPairResult, err error) {
	ctx, span := s.start(ctx, "SyncPair",
		attribute.Int("client_id", clientID),
		attribute.String("direction", string(direction)))
	defer func() { end(span, err) }()

	if _, err := ParseDirection(string(direction)); err != nil {
		return nil, err
	}
	if clientID <= 0 {
		return nil, fmt.Errorf("%w: client id must be positive", ErrInvalidInput)
	}
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.Linked() {
		return nil, fmt.Errorf("%w: client %d is not linked to a wordpress user", ErrInvalidInput, clientID)
	}
	staffIDs, err := s.staff.StaffUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range staffIDs {
		if id == client.WpUserID {
			return nil, fmt.Errorf("%w: wordpress user %d is a staff account", ErrInvalidInput, client.WpUserID)
		}
	}
	user, err := s.users.GetUser(ctx, client.WpUserID)
	if err != nil {
		return nil, err
	}
	rules, err := s.ignores.ListRules(ctx)
	if err != nil {
		return nil, err
	}

	result = &SyncPairResult{ClientID: client.ID, WpUserID: user.ID, Direction: direction, Fields: []FieldOutcome{}}
	for _, m := range FilterIgnored(diffPair(*client, *user), rules) {
		outcome := FieldOutcome{FieldName: m.FieldName}
		var pushErr error
		if direction == DirectionToWordPress {
			outcome.Value = m.ValueFromClient
			pushErr = s.gateway.PushField(ctx, user.ID, m.FieldName, m.ValueFromClient)
		} else {
			outcome.Value = m.ValueFromWP
			pushErr = s.gateway.PushClientField(ctx, client.ID, m.FieldName, m.ValueFromWP)
		}
		if pushErr != nil {
			if errIsStore(pushErr) {
				return result, pushErr
			}
			outcome.Error = pushErr.Error()
		}
		result.Fields = append(result.Fields, outcome)
	}
	return result, nil
}

func (s *Service) ListIgnoreRules(ctx context.Context) ([]IgnoreRule, error) {
	return s.ignores.ListRules(ctx)
}

// ListAuditLog returns the newest entries first; clientID 0 lists all clients.
func (s *Service) ListAuditLog(ctx context.Context, clientID int, limit int) ([]AuditEntry, error) {
	if clientID < 0 {
		return nil, fmt.Errorf("%w: client id must not be negative", ErrInvalidInput)
	}
	return s.audit.List(ctx, clientID, limit)
}
