package clientsync

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrStoreUnavailable  = errors.New("storage unavailable")
	ErrClientNotFound    = errors.New("client not found")
	ErrUserNotFound      = errors.New("wordpress user not found")
	ErrUserAlreadyLinked = errors.New("wordpress user is already linked to another client")
	ErrInvalidInput      = errors.New("invalid input")
)

// StoreError is an unreachable or failing store. Its message is safe to show
// an operator; the cause is kept for logs.
type StoreError struct {
	Store string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store unavailable (%s)", e.Store, e.Op)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func storeError(store, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Store: store, Op: op, Err: err}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isTimeout reports a query cut off by the adapter timeout.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
