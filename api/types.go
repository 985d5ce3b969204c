package api

import "context"

// Storage abstracts the document store for handlers. Documents are opaque
// serialized blobs keyed by list token.
type Storage interface {
	// Read returns found=false without an error when no document exists.
	Read(ctx context.Context, token string) (data []byte, found bool, err error)
	Write(ctx context.Context, token string, data []byte) error
	Delete(ctx context.Context, token string) error
	Ping(ctx context.Context) error
}

// Suggester produces candidate list items from a free text prompt.
type Suggester interface {
	Generate(ctx context.Context, prompt, catalog string) ([]any, error)
}
