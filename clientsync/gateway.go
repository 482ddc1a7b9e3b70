package clientsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/models"
	"github.com/mmdatafocus/clients_backend/utils"
	"github.com/sirupsen/logrus"
)

// auditor appends audit entries without ever failing the caller.
type auditor struct {
	sink   AuditSink
	logger *logrus.Logger
	now    func() time.Time
}

func (a auditor) record(ctx context.Context, entry AuditEntry) {
	entry.ActorID, entry.ActorName = utils.GetOperatorFromContext(ctx)
	entry.CorrelationID, _ = utils.GetCorrelationIdFromContext(ctx)
	entry.CreatedAt = a.now()
	if err := a.sink.Append(ctx, entry); err != nil {
		cause := err
		var se *StoreError
		if errors.As(err, &se) {
			cause = se.Err
		}
		config.LogError(a.logger, "clientsync", "auditor.record", "audit entry not written", entry, cause)
	}
}

// Gateway applies operator-approved values to one side of a pair and toggles
// ignore rules. Concurrent pushes to the same field are not serialized; the
// last write wins and each push is audited with the value it replaced.
type Gateway struct {
	auditor
	clients ClientSource
	users   UserSource
	ignores IgnoreStore
}

func NewGateway(clients ClientSource, users UserSource, ignores IgnoreStore, audit AuditSink, logger *logrus.Logger) *Gateway {
	return &Gateway{
		auditor: auditor{sink: audit, logger: logger, now: time.Now},
		clients: clients,
		users:   users,
		ignores: ignores,
	}
}

// PushField writes value to the WordPress user's field.
func (g *Gateway) PushField(ctx context.Context, targetUserID int, field Field, value string) error {
	if targetUserID <= 0 {
		return fmt.Errorf("%w: target user id must be positive", ErrInvalidInput)
	}
	if _, err := ParseField(string(field)); err != nil {
		return err
	}
	value = normalizeValue(field, value)
	if field == FieldEmail && !utils.IsValidEmail(value) {
		return fmt.Errorf("%w: %q is not a valid email", ErrInvalidInput, value)
	}

	user, err := g.users.GetUser(ctx, targetUserID)
	if err != nil {
		return err
	}
	old := user.Value(field)
	if err := g.users.UpdateUserField(ctx, targetUserID, field, value); err != nil {
		return err
	}

	entry := AuditEntry{
		Action:    models.AuditActionPushField,
		WpUserID:  targetUserID,
		FieldName: string(field),
		OldValue:  old,
		NewValue:  value,
		Source:    models.SyncSourceClient,
	}
	if client, err := g.clients.FindClientByUser(ctx, targetUserID); err == nil {
		entry.ClientID = client.ID
	}
	g.record(ctx, entry)

	g.logger.WithFields(logrus.Fields{
		"module":     "clientsync",
		"wp_user_id": targetUserID,
		"field":      field,
	}).Info("pushed field to wordpress")
	return nil
}

// PushClientField writes value to the client's field after checking it
// against the client schema.
func (g *Gateway) PushClientField(ctx context.Context, clientID int, field Field, value string) error {
	if clientID <= 0 {
		return fmt.Errorf("%w: client id must be positive", ErrInvalidInput)
	}
	column, ok := clientFields[field]
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidInput, field)
	}

	value = normalizeValue(field, value)
	client, err := g.clients.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if err := validateClientValue(client.CustomerType, column, value); err != nil {
		return err
	}
	old := client.Value(field)
	if err := g.clients.UpdateClientField(ctx, clientID, field, value); err != nil {
		return err
	}

	g.record(ctx, AuditEntry{
		Action:    models.AuditActionPushField,
		ClientID:  clientID,
		WpUserID:  client.WpUserID,
		FieldName: string(field),
		OldValue:  old,
		NewValue:  value,
		Source:    models.SyncSourceWordPress,
	})

	g.logger.WithFields(logrus.Fields{
		"module":    "clientsync",
		"client_id": clientID,
		"field":     field,
	}).Info("pushed field to client")
	return nil
}

// normalizeValue shapes a pushed value the way client input is stored:
// trimmed, with postal codes upper-cased.
func normalizeValue(field Field, value string) string {
	value = strings.TrimSpace(value)
	if field == FieldPostalCode {
		value = strings.ToUpper(value)
	}
	return value
}

func validateClientValue(t models.CustomerType, column models.ClientField, value string) error {
	if strings.TrimSpace(value) == "" {
		for _, required := range models.RequiredFields(t) {
			if required == column {
				return fmt.Errorf("%w: %s is required", ErrInvalidInput, column)
			}
		}
		return nil
	}
	if err := models.ValidateClientField(column, value); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	return nil
}

// SetIgnored adds or removes the rule for the exact triple. Both directions
// are idempotent; only an unreachable store is an error.
func (g *Gateway) SetIgnored(ctx context.Context, field Field, sourceValue, targetValue string, ignored bool) error {
	if _, err := ParseField(string(field)); err != nil {
		return err
	}

	if ignored {
		_, actor := utils.GetOperatorFromContext(ctx)
		created, err := g.ignores.InsertRule(ctx, IgnoreRule{
			FieldName:   field,
			SourceValue: sourceValue,
			TargetValue: targetValue,
			IgnoredBy:   actor,
		})
		if err != nil {
			return err
		}
		if created {
			g.record(ctx, AuditEntry{
				Action:    models.AuditActionIgnore,
				FieldName: string(field),
				OldValue:  sourceValue,
				NewValue:  targetValue,
				Source:    models.SyncSourceOperator,
			})
		}
		return nil
	}

	removed, err := g.ignores.DeleteRule(ctx, field, sourceValue, targetValue)
	if err != nil {
		return err
	}
	if removed > 0 {
		g.record(ctx, AuditEntry{
			Action:    models.AuditActionUnignore,
			FieldName: string(field),
			OldValue:  sourceValue,
			NewValue:  targetValue,
			Source:    models.SyncSourceOperator,
		})
	}
	return nil
}
