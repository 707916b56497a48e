package domain

import "context"

// PersistentStore is the load/save boundary of the console. Implementations store
// whole namespace payloads and must preserve their order.
type PersistentStore interface {
	Load(ctx context.Context) ([]NamespacePayload, error)
	Save(ctx context.Context, namespaces []NamespacePayload) error
	Close() error
}
