package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/clients_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrDuplicateIdentifier is returned when a sensitive value already belongs
// to another client.
var ErrDuplicateIdentifier = errors.New("duplicate sensitive identifier")

// FieldCipher encrypts the sensitive columns and computes their lookup hash.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Hash(value string) string
}

type Client struct {
	ID              int             `gorm:"primary_key" json:"id"`
	CustomerType    CustomerType    `gorm:"size:20;not null;index" json:"customer_type"`
	FirstName       string          `gorm:"size:100;not null" json:"first_name"`
	LastName        string          `gorm:"size:100;not null" json:"last_name"`
	Email           string          `gorm:"size:100;index" json:"email"`
	PhonePrimary    string          `gorm:"size:30" json:"phone_primary"`
	PhoneSecondary  string          `gorm:"size:30" json:"phone_secondary"`
	Address         string          `gorm:"size:255" json:"address"`
	City            string          `gorm:"size:100" json:"city"`
	Province        string          `gorm:"size:2;default:'NB'" json:"province"`
	PostalCode      string          `gorm:"size:10" json:"postal_code"`
	DeliveryAddress string          `gorm:"size:255" json:"delivery_address"`
	DeliveryNotes   string          `gorm:"type:text" json:"delivery_notes"`
	Rate            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	PaymentMethod   PaymentMethod   `gorm:"size:20" json:"payment_method"`
	DeliveryDays    string          `gorm:"size:100" json:"delivery_days"`

	IndividualIdEncrypted      string  `gorm:"type:text" json:"-"`
	IndividualIdHash           *string `gorm:"size:64;uniqueIndex" json:"-"`
	RequisitionIdEncrypted     string  `gorm:"type:text" json:"-"`
	RequisitionIdHash          *string `gorm:"size:64;uniqueIndex" json:"-"`
	VeteranHealthCardEncrypted string  `gorm:"type:text" json:"-"`
	VeteranHealthCardHash      *string `gorm:"size:64;uniqueIndex" json:"-"`
	DeliveryInitialsEncrypted  string  `gorm:"type:text" json:"-"`
	DeliveryInitialsHash       *string `gorm:"size:64;uniqueIndex" json:"-"`

	// linked WordPress user, at most one
	WpUserId  *int      `gorm:"uniqueIndex" json:"wp_user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewClient struct {
	CustomerType      CustomerType    `json:"customer_type" binding:"required"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	Email             string          `json:"email"`
	PhonePrimary      string          `json:"phone_primary"`
	PhoneSecondary    string          `json:"phone_secondary"`
	Address           string          `json:"address"`
	City              string          `json:"city"`
	Province          string          `json:"province"`
	PostalCode        string          `json:"postal_code"`
	DeliveryAddress   string          `json:"delivery_address"`
	DeliveryNotes     string          `json:"delivery_notes"`
	Rate              decimal.Decimal `json:"rate"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	DeliveryDays      []string        `json:"delivery_days"`
	IndividualId      string          `json:"individual_id"`
	RequisitionId     string          `json:"requisition_id"`
	VeteranHealthCard string          `json:"veteran_health_card"`
	DeliveryInitials  string          `json:"delivery_initials"`
}

type ClientFilter struct {
	CustomerType CustomerType
	Linked       *bool
	Search       string
	Limit        int
	Offset       int
}

// Value returns the submitted value of field as it is validated.
func (input *NewClient) Value(field ClientField) string {
	switch field {
	case ClientFieldCustomerType:
		return string(input.CustomerType)
	case ClientFieldFirstName:
		return input.FirstName
	case ClientFieldLastName:
		return input.LastName
	case ClientFieldEmail:
		return input.Email
	case ClientFieldPhonePrimary:
		return input.PhonePrimary
	case ClientFieldPhoneSecondary:
		return input.PhoneSecondary
	case ClientFieldAddress:
		return input.Address
	case ClientFieldCity:
		return input.City
	case ClientFieldProvince:
		return input.Province
	case ClientFieldPostalCode:
		return input.PostalCode
	case ClientFieldDeliveryAddress:
		return input.DeliveryAddress
	case ClientFieldDeliveryNotes:
		return input.DeliveryNotes
	case ClientFieldRate:
		if input.Rate.IsZero() {
			return ""
		}
		return input.Rate.String()
	case ClientFieldPaymentMethod:
		return string(input.PaymentMethod)
	case ClientFieldDeliveryDays:
		return strings.Join(input.DeliveryDays, ",")
	case ClientFieldIndividualId:
		return input.IndividualId
	case ClientFieldRequisitionId:
		return input.RequisitionId
	case ClientFieldVeteranHealthCard:
		return input.VeteranHealthCard
	case ClientFieldDeliveryInitials:
		return input.DeliveryInitials
	}
	return ""
}

func (input *NewClient) trim() {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.TrimSpace(input.Email)
	input.PhonePrimary = strings.TrimSpace(input.PhonePrimary)
	input.PhoneSecondary = strings.TrimSpace(input.PhoneSecondary)
	input.Address = strings.TrimSpace(input.Address)
	input.City = strings.TrimSpace(input.City)
	input.Province = strings.ToUpper(strings.TrimSpace(input.Province))
	input.PostalCode = strings.ToUpper(strings.TrimSpace(input.PostalCode))
	input.DeliveryAddress = strings.TrimSpace(input.DeliveryAddress)
	input.IndividualId = strings.TrimSpace(input.IndividualId)
	input.RequisitionId = strings.TrimSpace(input.RequisitionId)
	input.VeteranHealthCard = strings.TrimSpace(input.VeteranHealthCard)
	input.DeliveryInitials = strings.TrimSpace(input.DeliveryInitials)
}

// Validate runs every declared field rule plus the required set of the customer type.
func (input *NewClient) Validate() error {
	failed := make(map[string]string)
	for _, spec := range clientSchema {
		value := input.Value(spec.Field)
		if spec.Tag == "" {
			continue
		}
		if err := ValidateClientField(spec.Field, value); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				for k, v := range ve.Fields {
					failed[k] = v
				}
			}
		}
	}
	for _, spec := range clientSchema {
		value := input.Value(spec.Field)
		// an identifier made only of spaces and dashes has no hash to index
		if spec.Sensitive && value != "" && utils.NormalizeForHash(value) == "" {
			failed[string(spec.Field)] = "identifier"
		}
	}
	for _, field := range RequiredFields(input.CustomerType) {
		if input.Value(field) == "" {
			failed[string(field)] = "required"
		}
	}
	if len(failed) > 0 {
		return &ValidationError{Fields: failed}
	}
	return nil
}

type ClientStore struct {
	db     *gorm.DB
	cipher FieldCipher
}

func NewClientStore(db *gorm.DB, cipher FieldCipher) *ClientStore {
	return &ClientStore{db: db, cipher: cipher}
}

func (s *ClientStore) Create(ctx context.Context, input *NewClient) (*Client, error) {
	input.trim()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	client := Client{}
	input.apply(&client)
	if err := s.applySensitive(ctx, &client, input, 0); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateIdentifier
		}
		return nil, err
	}
	return &client, nil
}

func (s *ClientStore) Update(ctx context.Context, id int, input *NewClient) (*Client, error) {
	input.trim()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	input.apply(client)
	if err := s.applySensitive(ctx, client, input, id); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(client).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateIdentifier
		}
		return nil, err
	}
	return client, nil
}

func (input *NewClient) apply(client *Client) {
	client.CustomerType = input.CustomerType
	client.FirstName = input.FirstName
	client.LastName = input.LastName
	client.Email = input.Email
	client.PhonePrimary = input.PhonePrimary
	client.PhoneSecondary = input.PhoneSecondary
	client.Address = input.Address
	client.City = input.City
	client.Province = input.Province
	if client.Province == "" {
		client.Province = "NB"
	}
	client.PostalCode = input.PostalCode
	client.DeliveryAddress = input.DeliveryAddress
	client.DeliveryNotes = input.DeliveryNotes
	client.Rate = input.Rate
	client.PaymentMethod = input.PaymentMethod
	client.DeliveryDays = strings.Join(input.DeliveryDays, ",")
}

// applySensitive encrypts the sensitive values and checks uniqueness by hash.
func (s *ClientStore) applySensitive(ctx context.Context, client *Client, input *NewClient, exceptId int) error {
	for _, spec := range clientSchema {
		if !spec.Sensitive {
			continue
		}
		encrypted, hash := client.sensitiveColumns(spec.Field)
		value := input.Value(spec.Field)
		if value == "" {
			*encrypted = ""
			*hash = nil
			continue
		}

		h := s.cipher.Hash(value)
		if h == "" {
			return &ValidationError{Fields: map[string]string{string(spec.Field): "identifier"}}
		}
		exists, err := s.hashExists(ctx, spec.Column+"_hash", h, exceptId)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, spec.Label)
		}

		ct, err := s.cipher.Encrypt(value)
		if err != nil {
			return err
		}
		*encrypted = ct
		*hash = &h
	}
	return nil
}

func (s *ClientStore) hashExists(ctx context.Context, column string, hash string, exceptId int) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&Client{}).Where(column+" = ?", hash)
	if exceptId > 0 {
		q = q.Where("id <> ?", exceptId)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByIdentifier looks a client up by a sensitive value, without decrypting anything.
func (s *ClientStore) FindByIdentifier(ctx context.Context, field ClientField, value string) (*Client, error) {
	spec, ok := LookupClientField(string(field))
	if !ok || !spec.Sensitive {
		return nil, errors.New("field is not an identifier")
	}
	var client Client
	err := s.db.WithContext(ctx).Where(spec.Column+"_hash = ?", s.cipher.Hash(value)).Take(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (client *Client) sensitiveColumns(field ClientField) (*string, **string) {
	switch field {
	case ClientFieldIndividualId:
		return &client.IndividualIdEncrypted, &client.IndividualIdHash
	case ClientFieldRequisitionId:
		return &client.RequisitionIdEncrypted, &client.RequisitionIdHash
	case ClientFieldVeteranHealthCard:
		return &client.VeteranHealthCardEncrypted, &client.VeteranHealthCardHash
	case ClientFieldDeliveryInitials:
		return &client.DeliveryInitialsEncrypted, &client.DeliveryInitialsHash
	}
	panic("not a sensitive field: " + string(field))
}

// DecryptSensitive returns the readable sensitive values. A value that fails
// to decrypt is left out and reported in the second map.
func (s *ClientStore) DecryptSensitive(client *Client) (map[ClientField]string, map[ClientField]error) {
	values := make(map[ClientField]string)
	var failures map[ClientField]error
	for _, spec := range clientSchema {
		if !spec.Sensitive {
			continue
		}
		encrypted, _ := client.sensitiveColumns(spec.Field)
		if *encrypted == "" {
			continue
		}
		plain, err := s.cipher.Decrypt(*encrypted)
		if err != nil {
			if failures == nil {
				failures = make(map[ClientField]error)
			}
			failures[spec.Field] = err
			continue
		}
		values[spec.Field] = plain
	}
	return values, failures
}

func (s *ClientStore) Get(ctx context.Context, id int) (*Client, error) {
	var client Client
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *ClientStore) List(ctx context.Context, filter ClientFilter) ([]Client, error) {
	var clients []Client
	q := s.db.WithContext(ctx).Model(&Client{})
	if filter.CustomerType != "" {
		q = q.Where("customer_type = ?", filter.CustomerType)
	}
	if filter.Linked != nil {
		if *filter.Linked {
			q = q.Where("wp_user_id IS NOT NULL AND wp_user_id > 0")
		} else {
			q = q.Where("wp_user_id IS NULL OR wp_user_id = 0")
		}
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		q = q.Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ?", like, like, like)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := q.Order("id").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

// FindByWpUserId returns gorm.ErrRecordNotFound when no client holds the user.
func (s *ClientStore) FindByWpUserId(ctx context.Context, wpUserId int) (*Client, error) {
	var client Client
	if err := s.db.WithContext(ctx).Where("wp_user_id = ?", wpUserId).Order("id").Take(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// UpdateColumn writes a single plain column. Sensitive columns are refused.
func (s *ClientStore) UpdateColumn(ctx context.Context, id int, field ClientField, value string) error {
	spec, ok := LookupClientField(string(field))
	if !ok || spec.Sensitive || field == ClientFieldCustomerType {
		return errors.New("field cannot be updated directly")
	}
	return s.db.WithContext(ctx).Model(&Client{}).Where("id = ?", id).Update(spec.Column, value).Error
}

func (s *ClientStore) SetWpUserId(ctx context.Context, id int, wpUserId *int) error {
	return s.db.WithContext(ctx).Model(&Client{}).Where("id = ?", id).Update("wp_user_id", wpUserId).Error
}

func (s *ClientStore) Delete(ctx context.Context, id int) (*Client, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}
