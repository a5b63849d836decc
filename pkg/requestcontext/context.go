// Package requestcontext carries per-request metadata (correlation id,
// submitting device) from transport middleware down to domain services
// without widening every signature.
package requestcontext

import "context"

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyDevice
)

// WithRequestID stores the correlation id for downstream logging/audit.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestID returns the correlation id, or "" when none was set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequestID).(string)
	return id
}

// WithDevice stores a human-readable description of the submitting browser.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, keyDevice, device)
}

// Device returns the device description, or "" when none was set.
func Device(ctx context.Context) string {
	device, _ := ctx.Value(keyDevice).(string)
	return device
}
