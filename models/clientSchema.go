package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/clients_backend/utils"
)

// ClientField is the stable name of a client record field, used as the JSON
// key, in required-field sets and in sync pushes.
type ClientField string

const (
	ClientFieldCustomerType      ClientField = "customer_type"
	ClientFieldFirstName         ClientField = "first_name"
	ClientFieldLastName          ClientField = "last_name"
	ClientFieldEmail             ClientField = "email"
	ClientFieldPhonePrimary      ClientField = "phone_primary"
	ClientFieldPhoneSecondary    ClientField = "phone_secondary"
	ClientFieldAddress           ClientField = "address"
	ClientFieldCity              ClientField = "city"
	ClientFieldProvince          ClientField = "province"
	ClientFieldPostalCode        ClientField = "postal_code"
	ClientFieldDeliveryAddress   ClientField = "delivery_address"
	ClientFieldDeliveryNotes     ClientField = "delivery_notes"
	ClientFieldRate              ClientField = "rate"
	ClientFieldPaymentMethod     ClientField = "payment_method"
	ClientFieldDeliveryDays      ClientField = "delivery_days"
	ClientFieldIndividualId      ClientField = "individual_id"
	ClientFieldRequisitionId     ClientField = "requisition_id"
	ClientFieldVeteranHealthCard ClientField = "veteran_health_card"
	ClientFieldDeliveryInitials  ClientField = "delivery_initials"
)

// FieldSpec declares one client field: its column, label and validator tag.
// Sensitive fields are stored encrypted with a parallel hash column.
type FieldSpec struct {
	Field     ClientField `json:"field"`
	Column    string      `json:"-"`
	Label     string      `json:"label"`
	Tag       string      `json:"rule,omitempty"`
	Sensitive bool        `json:"sensitive"`
}

var clientSchema = []FieldSpec{
	{Field: ClientFieldCustomerType, Column: "customer_type", Label: "Customer Type", Tag: "oneof=Private SDNB Veteran Staff"},
	{Field: ClientFieldFirstName, Column: "first_name", Label: "First Name", Tag: "max=100"},
	{Field: ClientFieldLastName, Column: "last_name", Label: "Last Name", Tag: "max=100"},
	{Field: ClientFieldEmail, Column: "email", Label: "Email", Tag: "omitempty,email,max=100"},
	{Field: ClientFieldPhonePrimary, Column: "phone_primary", Label: "Primary Phone", Tag: "omitempty,phone"},
	{Field: ClientFieldPhoneSecondary, Column: "phone_secondary", Label: "Secondary Phone", Tag: "omitempty,phone"},
	{Field: ClientFieldAddress, Column: "address", Label: "Address", Tag: "max=255"},
	{Field: ClientFieldCity, Column: "city", Label: "City", Tag: "max=100"},
	{Field: ClientFieldProvince, Column: "province", Label: "Province", Tag: "omitempty,len=2"},
	{Field: ClientFieldPostalCode, Column: "postal_code", Label: "Postal Code", Tag: "omitempty,postalcode"},
	{Field: ClientFieldDeliveryAddress, Column: "delivery_address", Label: "Delivery Address", Tag: "max=255"},
	{Field: ClientFieldDeliveryNotes, Column: "delivery_notes", Label: "Delivery Notes", Tag: "max=2000"},
	{Field: ClientFieldRate, Column: "rate", Label: "Rate", Tag: "omitempty,numeric"},
	{Field: ClientFieldPaymentMethod, Column: "payment_method", Label: "Payment Method", Tag: "omitempty,oneof=Cash Cheque CreditCard ETransfer Invoice"},
	{Field: ClientFieldDeliveryDays, Column: "delivery_days", Label: "Delivery Days", Tag: "omitempty,deliverydays"},
	{Field: ClientFieldIndividualId, Column: "individual_id", Label: "Individual ID", Tag: "max=50", Sensitive: true},
	{Field: ClientFieldRequisitionId, Column: "requisition_id", Label: "Requisition ID", Tag: "max=50", Sensitive: true},
	{Field: ClientFieldVeteranHealthCard, Column: "veteran_health_card", Label: "Veteran Health Card", Tag: "max=50", Sensitive: true},
	{Field: ClientFieldDeliveryInitials, Column: "delivery_initials", Label: "Delivery Initials", Tag: "max=10", Sensitive: true},
}

var weekDays = map[string]bool{"Mon": true, "Tue": true, "Wed": true, "Thu": true, "Fri": true, "Sat": true, "Sun": true}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return utils.ValidatePhoneNumber(fl.Field().String(), utils.CountryCode) == nil
	})
	_ = v.RegisterValidation("postalcode", func(fl validator.FieldLevel) bool {
		return utils.IsValidPostalCode(fl.Field().String())
	})
	_ = v.RegisterValidation("deliverydays", func(fl validator.FieldLevel) bool {
		for _, day := range strings.Split(fl.Field().String(), ",") {
			if !weekDays[strings.TrimSpace(day)] {
				return false
			}
		}
		return true
	})
	return v
}

func ClientSchema() []FieldSpec {
	return clientSchema
}

func LookupClientField(name string) (FieldSpec, bool) {
	for _, spec := range clientSchema {
		if string(spec.Field) == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

var baseRequired = []ClientField{
	ClientFieldCustomerType,
	ClientFieldFirstName,
	ClientFieldLastName,
	ClientFieldPhonePrimary,
	ClientFieldAddress,
	ClientFieldCity,
	ClientFieldPostalCode,
}

// RequiredFields is the required-field set of each customer type.
func RequiredFields(t CustomerType) []ClientField {
	switch t {
	case CustomerTypePrivate:
		return append(append([]ClientField{}, baseRequired...), ClientFieldPaymentMethod)
	case CustomerTypeSDNB:
		return append(append([]ClientField{}, baseRequired...), ClientFieldIndividualId, ClientFieldRequisitionId)
	case CustomerTypeVeteran:
		return append(append([]ClientField{}, baseRequired...), ClientFieldVeteranHealthCard)
	case CustomerTypeStaff:
		return []ClientField{ClientFieldCustomerType, ClientFieldFirstName, ClientFieldLastName, ClientFieldEmail}
	}
	return nil
}

// ValidationError maps field name to the failed rule.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid client: " + strings.Join(parts, ", ")
}

// ValidateClientField checks a single value against the field's declared rule.
func ValidateClientField(field ClientField, value string) error {
	spec, ok := LookupClientField(string(field))
	if !ok {
		return fmt.Errorf("unknown client field %q", field)
	}
	if spec.Tag == "" {
		return nil
	}
	if err := validate.Var(value, spec.Tag); err != nil {
		tag := "invalid"
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			tag = ve[0].Tag()
		}
		return &ValidationError{Fields: map[string]string{string(field): tag}}
	}
	return nil
}
