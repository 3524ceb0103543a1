package ports

import "context"

// SecretStore holds opaque secret material keyed by slash-separated names
// such as "foundry/access_token". Get wraps domain.ErrTokenNotFound when
// the key has never been stored.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
