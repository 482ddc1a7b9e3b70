package appctx

import "context"

// Key types the values the HTTP middlewares and the CLI place on a request
// context.
type Key string

func (k Key) String() string { return "clients." + string(k) }

const (
	KeyOperatorID    = Key("OperatorID")
	KeyOperatorName  = Key("OperatorName")
	KeyCorrelationID = Key("CorrelationID")
)

func String(ctx context.Context, key Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Int(ctx context.Context, key Key) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}

func With(ctx context.Context, key Key, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
