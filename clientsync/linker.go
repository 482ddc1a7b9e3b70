package clientsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/clients_backend/models"
	"github.com/sirupsen/logrus"
)

// Linker sets the WordPress user a client is compared against. A client has at
// most one user and a user belongs to at most one client.
type Linker struct {
	auditor
	clients ClientSource
	users   UserSource
}

func NewLinker(clients ClientSource, users UserSource, audit AuditSink, logger *logrus.Logger) *Linker {
	return &Linker{
		auditor: auditor{sink: audit, logger: logger, now: time.Now},
		clients: clients,
		users:   users,
	}
}

// Link replaces any previous link of the client. The replaced user id is kept
// in the audit entry. Linking a pair that is already linked succeeds.
func (l *Linker) Link(ctx context.Context, clientID int, wpUserID int) error {
	if clientID <= 0 || wpUserID <= 0 {
		return fmt.Errorf("%w: client id and wordpress user id must be positive", ErrInvalidInput)
	}

	client, err := l.clients.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if _, err := l.users.GetUser(ctx, wpUserID); err != nil {
		return err
	}

	holder, err := l.clients.FindClientByUser(ctx, wpUserID)
	switch {
	case err == nil && holder.ID != clientID:
		return fmt.Errorf("%w (client %d)", ErrUserAlreadyLinked, holder.ID)
	case err != nil && !errors.Is(err, ErrClientNotFound):
		return err
	}

	if client.WpUserID != wpUserID {
		if err := l.clients.SetLink(ctx, clientID, wpUserID); err != nil {
			return err
		}
	}

	old := ""
	if client.Linked() {
		old = strconv.Itoa(client.WpUserID)
	}
	l.record(ctx, AuditEntry{
		Action:    models.AuditActionLink,
		ClientID:  clientID,
		WpUserID:  wpUserID,
		FieldName: "wp_user_id",
		OldValue:  old,
		NewValue:  strconv.Itoa(wpUserID),
		Source:    models.SyncSourceOperator,
	})

	l.logger.WithFields(logrus.Fields{
		"module":              "clientsync",
		"client_id":           clientID,
		"wp_user_id":          wpUserID,
		"previous_wp_user_id": old,
	}).Info("linked client to wordpress user")
	return nil
}
