package report

import "context"

type ctxKey int

const correlationKey ctxKey = iota + 1

// WithCorrelationID returns a copy of ctx carrying id. Download sends it
// upstream in place of a freshly generated one, which lets a gateway tie
// the report request to its own trace.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID returns the id set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
