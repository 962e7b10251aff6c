package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"docai-gateway/api/internal/metrics"
)

const maxKeySetBytes = 1 << 20

// KeySet is an immutable mapping from key id to published verification key.
type KeySet struct {
	keys map[string]jose.JSONWebKey
	ids  []string
}

// ParseKeySet decodes a {"keys": [...]} document. The first key published
// under an id wins. Entries that do not decode (unknown kty or curve) are
// skipped; the set fails only when no entry is usable.
func ParseKeySet(data []byte) (*KeySet, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode key set: %w", err)
	}
	if doc.Keys == nil {
		return nil, fmt.Errorf("decode key set: no keys member")
	}

	keys := make([]jose.JSONWebKey, 0, len(doc.Keys))
	for i, raw := range doc.Keys {
		var k jose.JSONWebKey
		if err := json.Unmarshal(raw, &k); err != nil {
			log.Debug().Err(err).Int("index", i).Msg("skipping undecodable key set entry")
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("decode key set: no usable keys among %d", len(doc.Keys))
	}
	return NewKeySet(keys...), nil
}

func NewKeySet(keys ...jose.JSONWebKey) *KeySet {
	s := &KeySet{keys: make(map[string]jose.JSONWebKey, len(keys))}
	for _, k := range keys {
		if _, dup := s.keys[k.KeyID]; dup {
			continue
		}
		s.keys[k.KeyID] = k
		s.ids = append(s.ids, k.KeyID)
	}
	return s
}

// Lookup returns the signing key published under kid. Keys published for
// encryption only never match.
func (s *KeySet) Lookup(kid string) (jose.JSONWebKey, bool) {
	if s == nil {
		return jose.JSONWebKey{}, false
	}
	k, ok := s.keys[kid]
	if !ok || (k.Use != "" && k.Use != "sig") {
		return jose.JSONWebKey{}, false
	}
	return k, true
}

func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

func (s *KeySet) KeyIDs() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.ids...)
}

// KeySource yields the key set tokens are verified against.
type KeySource interface {
	KeySet(ctx context.Context) (*KeySet, error)
}

// StaticKeys is a KeySource over a fixed key set.
type StaticKeys struct {
	Set *KeySet
}

func (s StaticKeys) KeySet(context.Context) (*KeySet, error) { return s.Set, nil }

// JWKSURL derives the well-known key set location of an issuer domain. A
// domain given with a scheme is kept as is.
func JWKSURL(domain string) string {
	d := strings.TrimRight(strings.TrimSpace(domain), "/")
	if !strings.HasPrefix(d, "http://") && !strings.HasPrefix(d, "https://") {
		d = "https://" + d
	}
	return d + "/.well-known/jwks.json"
}

// IssuerURL is the issuer claim Auth0 puts into tokens for domain.
func IssuerURL(domain string) string {
	d := strings.TrimRight(strings.TrimSpace(domain), "/")
	if !strings.HasPrefix(d, "http://") && !strings.HasPrefix(d, "https://") {
		d = "https://" + d
	}
	return d + "/"
}

// KeyCache fetches the remote key set on first use and serves the memoized
// copy until Invalidate. Concurrent first callers share a single fetch.
type KeyCache struct {
	url     string
	httpc   *http.Client
	timeout time.Duration
	metrics *metrics.Metrics

	group singleflight.Group
	mu    sync.RWMutex
	// gen counts invalidations; a fetch started before one is not stored.
	gen uint64
	set   *KeySet
}

type KeyCacheOption func(*KeyCache)

func WithHTTPClient(c *http.Client) KeyCacheOption {
	return func(kc *KeyCache) { kc.httpc = c }
}

func WithFetchTimeout(d time.Duration) KeyCacheOption {
	return func(kc *KeyCache) { kc.timeout = d }
}

func WithMetrics(m *metrics.Metrics) KeyCacheOption {
	return func(kc *KeyCache) { kc.metrics = m }
}

func NewKeyCache(jwksURL string, opts ...KeyCacheOption) *KeyCache {
	c := &KeyCache{
		url:     jwksURL,
		httpc:   &http.Client{},
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *KeyCache) URL() string { return c.url }

// KeySet returns the cached key set, fetching it if the cache is empty.
func (c *KeyCache) KeySet(ctx context.Context) (*KeySet, error) {
	if s := c.cached(); s != nil {
		return s, nil
	}

	v, err, _ := c.group.Do("jwks", func() (any, error) {
		if s := c.cached(); s != nil {
			return s, nil
		}
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		// The fetch outlives any single caller that joined it.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		s, err := c.fetch(fctx)
		c.metrics.RecordJWKSFetch(err)
		if err != nil {
			return nil, &KeyFetchError{URL: c.url, Cause: err}
		}

		c.mu.Lock()
		if c.gen == gen {
			c.set = s
		}
		c.mu.Unlock()
		log.Info().Str("url", c.url).Int("keys", s.Len()).Msg("signing keys fetched")
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*KeySet), nil
}

// Prime populates the cache eagerly, typically at service start.
func (c *KeyCache) Prime(ctx context.Context) error {
	_, err := c.KeySet(ctx)
	return err
}

// Invalidate drops the cached key set; the next KeySet call fetches again.
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	c.set = nil
	c.gen++
	c.mu.Unlock()
	c.group.Forget("jwks")
}

func (c *KeyCache) cached() *KeySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

func (c *KeyCache) fetch(ctx context.Context) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("jwks %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return ParseKeySet(body)
}
