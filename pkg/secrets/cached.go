package secrets

import "context"

// CachedProvider wraps a Provider with a TTL cache so repeated lookups of
// the same secret don't hit the backing manager.
type CachedProvider struct {
	inner Provider
	cache *Cache
}

func NewCachedProvider(inner Provider, cache *Cache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache}
}

func (p *CachedProvider) GetSecret(ctx context.Context, key string) (Creds, error) {
	if creds, ok := p.cache.Get(key); ok {
		return creds, nil
	}

	creds, err := p.inner.GetSecret(ctx, key)
	if err != nil {
		return nil, err
	}
	p.cache.Put(key, creds)
	return creds, nil
}

// Bust drops the cached value for key, forcing the next lookup to re-fetch
// (e.g. after a credential rotation).
func (p *CachedProvider) Bust(key string) {
	p.cache.Bust(key)
}
