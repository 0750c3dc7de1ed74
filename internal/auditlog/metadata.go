package auditlog

import "context"

// Metadata describes what a command acted on. Commands attach it to their
// context; the root command reads it back when writing the entry.
type Metadata struct {
	ResourceType   string
	ResourceID     string
	IdempotencyKey string
	Gateway        string
	Amount         float64
	Currency       string
	Detail         string
}

type metadataKey struct{}

// WithMetadata attaches audit metadata to a context. Non-empty fields of
// meta replace the ones already attached.
func WithMetadata(ctx context.Context, meta Metadata) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	existing, _ := ctx.Value(metadataKey{}).(Metadata)
	merged := Metadata{
		ResourceType:   pick(meta.ResourceType, existing.ResourceType),
		ResourceID:     pick(meta.ResourceID, existing.ResourceID),
		IdempotencyKey: pick(meta.IdempotencyKey, existing.IdempotencyKey),
		Gateway:        pick(meta.Gateway, existing.Gateway),
		Amount:         existing.Amount,
		Currency:       pick(meta.Currency, existing.Currency),
		Detail:         pick(meta.Detail, existing.Detail),
	}
	if meta.Amount != 0 {
		merged.Amount = meta.Amount
	}
	return context.WithValue(ctx, metadataKey{}, merged)
}

// MetadataFromContext returns audit metadata stored in the context.
func MetadataFromContext(ctx context.Context) Metadata {
	if ctx == nil {
		return Metadata{}
	}
	meta, _ := ctx.Value(metadataKey{}).(Metadata)
	return meta
}

func pick(next, fallback string) string {
	if next != "" {
		return next
	}
	return fallback
}
