package models

import (
	"encoding/json"
	"errors"
)

type CustomerType string

const (
	CustomerTypePrivate CustomerType = "Private"
	CustomerTypeSDNB    CustomerType = "SDNB"
	CustomerTypeVeteran CustomerType = "Veteran"
	CustomerTypeStaff   CustomerType = "Staff"
)

var CustomerTypes = []CustomerType{
	CustomerTypePrivate,
	CustomerTypeSDNB,
	CustomerTypeVeteran,
	CustomerTypeStaff,
}

func ParseCustomerType(s string) (CustomerType, error) {
	switch s {
	case "Private":
		return CustomerTypePrivate, nil
	case "SDNB":
		return CustomerTypeSDNB, nil
	case "Veteran":
		return CustomerTypeVeteran, nil
	case "Staff":
		return CustomerTypeStaff, nil
	default:
		return "", errors.New("invalid customer type")
	}
}

// convert input to enum type
func (t *CustomerType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("customer type must be string")
	}
	parsed, err := ParseCustomerType(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "Cash"
	PaymentMethodCheque     PaymentMethod = "Cheque"
	PaymentMethodCreditCard PaymentMethod = "CreditCard"
	PaymentMethodETransfer  PaymentMethod = "ETransfer"
	// billed to the funding agency (SDNB, Veterans Affairs)
	PaymentMethodInvoice PaymentMethod = "Invoice"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case "Cash":
		return PaymentMethodCash, nil
	case "Cheque":
		return PaymentMethodCheque, nil
	case "CreditCard":
		return PaymentMethodCreditCard, nil
	case "ETransfer":
		return PaymentMethodETransfer, nil
	case "Invoice":
		return PaymentMethodInvoice, nil
	default:
		return "", errors.New("invalid payment method")
	}
}

func (t *PaymentMethod) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("payment method must be string")
	}
	if str == "" {
		*t = ""
		return nil
	}
	parsed, err := ParsePaymentMethod(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type AuditAction string

const (
	AuditActionPushField AuditAction = "push_field"
	AuditActionLink      AuditAction = "link"
	AuditActionIgnore    AuditAction = "ignore"
	AuditActionUnignore  AuditAction = "unignore"
)

// SyncSource names the system a value was taken from.
type SyncSource string

const (
	SyncSourceClient    SyncSource = "client"
	SyncSourceWordPress SyncSource = "wordpress"
	SyncSourceOperator  SyncSource = "operator"
)
