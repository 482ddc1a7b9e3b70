package clientsync

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/clients_backend/models"
)

// Field is a field compared between a client record and its WordPress user.
type Field string

const (
	FieldFirstName  Field = "first_name"
	FieldLastName   Field = "last_name"
	FieldEmail      Field = "email"
	FieldPhone      Field = "phone"
	FieldPostalCode Field = "postal_code"
)

// ComparableFields is the comparison order of every reconciliation pass.
var ComparableFields = []Field{
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldPhone,
	FieldPostalCode,
}

var fieldLabels = map[Field]string{
	FieldFirstName:  "First Name",
	FieldLastName:   "Last Name",
	FieldEmail:      "Email",
	FieldPhone:      "Phone",
	FieldPostalCode: "Postal Code",
}

// client column behind each comparable field
var clientFields = map[Field]models.ClientField{
	FieldFirstName:  models.ClientFieldFirstName,
	FieldLastName:   models.ClientFieldLastName,
	FieldEmail:      models.ClientFieldEmail,
	FieldPhone:      models.ClientFieldPhonePrimary,
	FieldPostalCode: models.ClientFieldPostalCode,
}

func (f Field) Label() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}

func ParseField(s string) (Field, error) {
	f := Field(s)
	if _, ok := fieldLabels[f]; !ok {
		return "", fmt.Errorf("%w: unknown field %q", ErrInvalidInput, s)
	}
	return f, nil
}

// ClientRecord is a client as the sync sees it. Values holds the comparable
// fields, nil when the column is NULL. Sensitive holds the decrypted
// identifiers that could be read.
type ClientRecord struct {
	ID           int                           `json:"id"`
	WpUserID     int                           `json:"wp_user_id"`
	CustomerType models.CustomerType           `json:"customer_type"`
	Values       map[Field]*string             `json:"values"`
	Sensitive    map[models.ClientField]string `json:"sensitive,omitempty"`
}

func (r ClientRecord) Linked() bool {
	return r.WpUserID > 0
}

func (r ClientRecord) Value(f Field) string {
	if v := r.Values[f]; v != nil {
		return *v
	}
	return ""
}

// UserRecord is a WordPress user as the sync sees it.
type UserRecord struct {
	ID     int               `json:"id"`
	Values map[Field]*string `json:"values"`
}

func (r UserRecord) Value(f Field) string {
	if v := r.Values[f]; v != nil {
		return *v
	}
	return ""
}

// Mismatch is a divergence found by one pass. It is never stored.
type Mismatch struct {
	ClientID        int    `json:"client_id"`
	WpUserID        int    `json:"wp_user_id"`
	FieldName       Field  `json:"field_name"`
	ValueFromClient string `json:"value_from_client"`
	ValueFromWP     string `json:"value_from_wp"`
}

// IgnoreRule suppresses mismatches with exactly these values.
type IgnoreRule struct {
	FieldName   Field     `json:"field_name"`
	SourceValue string    `json:"source_value"`
	TargetValue string    `json:"target_value"`
	IgnoredBy   string    `json:"ignored_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// LinkCandidate is an unlinked client. SuggestedUserID is set when exactly one
// WordPress user shares the client's email.
type LinkCandidate struct {
	ClientID        int    `json:"client_id"`
	Email           string `json:"email"`
	SuggestedUserID int    `json:"suggested_user_id,omitempty"`
}

// OrphanedLink is a client linked to a WordPress user that no longer exists.
type OrphanedLink struct {
	ClientID int `json:"client_id"`
	WpUserID int `json:"wp_user_id"`
}

type Report struct {
	Mismatches   []Mismatch      `json:"mismatches"`
	Unlinked     []LinkCandidate `json:"unlinked"`
	Orphaned     []OrphanedLink  `json:"orphaned"`
	IgnoredCount int             `json:"ignored_count"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// Direction of a pair sync.
type Direction string

const (
	DirectionToWordPress Direction = "to_wordpress"
	DirectionToClient    Direction = "to_client"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionToWordPress, DirectionToClient:
		return Direction(s), nil
	}
	return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidInput, s)
}

type FieldOutcome struct {
	FieldName Field  `json:"field_name"`
	Value     string `json:"value"`
	Error     string `json:"error,omitempty"`
}

type SyncPairResult struct {
	ClientID  int            `json:"client_id"`
	WpUserID  int            `json:"wp_user_id"`
	Direction Direction      `json:"direction"`
	Fields    []FieldOutcome `json:"fields"`
}

// AuditEntry is what the gateway hands to the audit sink.
type AuditEntry struct {
	ActorID       int                `json:"actor_id"`
	ActorName     string             `json:"actor_name"`
	Action        models.AuditAction `json:"action"`
	ClientID      int                `json:"client_id"`
	WpUserID      int                `json:"wp_user_id"`
	FieldName     string             `json:"field_name"`
	OldValue      string             `json:"old_value"`
	NewValue      string             `json:"new_value"`
	Source        models.SyncSource  `json:"source"`
	CorrelationID string             `json:"correlation_id"`
	CreatedAt     time.Time          `json:"created_at"`
}

func strPtr(s string) *string {
	return &s
}
