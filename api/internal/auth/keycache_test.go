package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jwksServer(t *testing.T, status int, body []byte, delay time.Duration) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestKeyCacheFetchesOnce(t *testing.T) {
	key, _ := testKeys(t)
	srv, hits := jwksServer(t, http.StatusOK, jwksDocument(t, publicJWK(key, testKID)), 0)
	cache := NewKeyCache(srv.URL)

	first, err := cache.KeySet(context.Background())
	require.NoError(t, err)
	second, err := cache.KeySet(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []string{testKID}, first.KeyIDs())
}

func TestKeyCacheConcurrentFirstCallersShareFetch(t *testing.T) {
	key, _ := testKeys(t)
	srv, hits := jwksServer(t, http.StatusOK, jwksDocument(t, publicJWK(key, testKID)), 50*time.Millisecond)
	cache := NewKeyCache(srv.URL)

	const callers = 32
	sets := make([]*KeySet, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := cache.KeySet(context.Background())
			assert.NoError(t, err)
			sets[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, s := range sets {
		assert.Same(t, sets[0], s)
	}
}

func TestKeyCacheInvalidateRefetches(t *testing.T) {
	key, _ := testKeys(t)
	srv, hits := jwksServer(t, http.StatusOK, jwksDocument(t, publicJWK(key, testKID)), 0)
	cache := NewKeyCache(srv.URL)

	require.NoError(t, cache.Prime(context.Background()))
	cache.Invalidate()
	_, err := cache.KeySet(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
}

func TestKeyCacheFetchFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
	}{
		{name: "non 2xx", status: http.StatusServiceUnavailable, body: []byte("down")},
		{name: "malformed body", status: http.StatusOK, body: []byte("{not json")},
		{name: "no keys member", status: http.StatusOK, body: []byte(`{"other":[]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := jwksServer(t, tt.status, tt.body, 0)
			cache := NewKeyCache(srv.URL)

			_, err := cache.KeySet(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrKeyFetch)

			var kfe *KeyFetchError
			require.True(t, errors.As(err, &kfe))
			assert.Equal(t, srv.URL, kfe.URL)
			assert.NotNil(t, kfe.Cause)

			// failures are not memoized
			_, _ = cache.KeySet(context.Background())
			assert.Equal(t, int32(2), hits.Load())
		})
	}
}

func TestKeyCacheTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cache := NewKeyCache(url, WithFetchTimeout(time.Second))
	_, err := cache.KeySet(context.Background())
	assert.ErrorIs(t, err, ErrKeyFetch)
}

func TestKeyCacheFetchSurvivesCallerCancel(t *testing.T) {
	key, _ := testKeys(t)
	srv, _ := jwksServer(t, http.StatusOK, jwksDocument(t, publicJWK(key, testKID)), 20*time.Millisecond)
	cache := NewKeyCache(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	set, err := cache.KeySet(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestParseKeySet(t *testing.T) {
	key, other := testKeys(t)
	enc := publicJWK(other, "enc-key")
	enc.Use = "enc"

	set, err := ParseKeySet(jwksDocument(t, publicJWK(key, "a"), publicJWK(other, "a"), enc))
	require.NoError(t, err)

	got, ok := set.Lookup("a")
	require.True(t, ok)
	assert.True(t, key.PublicKey.Equal(got.Key), "first key under an id wins")

	_, ok = set.Lookup("enc-key")
	assert.False(t, ok, "encryption keys never verify signatures")

	_, ok = set.Lookup("missing")
	assert.False(t, ok)

	var nilSet *KeySet
	_, ok = nilSet.Lookup("a")
	assert.False(t, ok)
}

func TestParseKeySetSkipsUnusableEntries(t *testing.T) {
	key, _ := testKeys(t)
	good, err := json.Marshal(publicJWK(key, "good"))
	require.NoError(t, err)

	doc := `{"keys":[` +
		`{"kid":"odd","kty":"OKP","crv":"X25519","x":"hSDwCYkwp1R0i33ctD73Wg2_Og0mOBr066SpjqqbTmo","use":"enc"},` +
		`{"kid":"weird","kty":"EC","crv":"P-999","x":"AA","y":"AA"},` +
		string(good) + `]}`
	set, err := ParseKeySet([]byte(doc))
	require.NoError(t, err)

	got, ok := set.Lookup("good")
	require.True(t, ok)
	assert.True(t, key.PublicKey.Equal(got.Key))
	assert.Equal(t, []string{"good"}, set.KeyIDs())

	_, err = ParseKeySet([]byte(`{"keys":[{"kid":"odd","kty":"OKP","crv":"X25519","x":"AA"}]}`))
	assert.ErrorContains(t, err, "no usable keys")
}

func TestKeyCacheMixedKeySetStillVerifies(t *testing.T) {
	key, _ := testKeys(t)
	good, err := json.Marshal(publicJWK(key, testKID))
	require.NoError(t, err)
	doc := []byte(`{"keys":[{"kid":"odd","kty":"OKP","crv":"X25519","x":"AA"},` + string(good) + `]}`)
	srv, _ := jwksServer(t, http.StatusOK, doc, 0)

	v := NewVerifier(NewKeyCache(srv.URL), VerifierConfig{
		Audience: testAudience,
		Now:      func() time.Time { return fixedNow },
	})
	_, err = v.Verify(context.Background(), signToken(t, key, testKID, validClaims(fixedNow)))
	require.NoError(t, err)
}

func TestKeyCacheInvalidateDuringFetchIsNotLost(t *testing.T) {
	key, _ := testKeys(t)
	body := jwksDocument(t, publicJWK(key, testKID))

	var hits atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			started <- struct{}{}
			<-release
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	cache := NewKeyCache(srv.URL)

	done := make(chan error, 1)
	go func() {
		_, err := cache.KeySet(context.Background())
		done <- err
	}()
	<-started
	cache.Invalidate()
	close(release)
	require.NoError(t, <-done)

	_, err := cache.KeySet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "a set fetched before Invalidate is not kept")

	_, err = cache.KeySet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestStaticKeys(t *testing.T) {
	key, _ := testKeys(t)
	set := NewKeySet(publicJWK(key, testKID))
	got, err := StaticKeys{Set: set}.KeySet(context.Background())
	require.NoError(t, err)
	assert.Same(t, set, got)
}

func TestWellKnownURLs(t *testing.T) {
	assert.Equal(t, "https://tenant.eu.auth0.com/.well-known/jwks.json", JWKSURL("tenant.eu.auth0.com"))
	assert.Equal(t, "https://tenant.eu.auth0.com/.well-known/jwks.json", JWKSURL("https://tenant.eu.auth0.com/"))
	assert.Equal(t, "http://127.0.0.1:9999/.well-known/jwks.json", JWKSURL("http://127.0.0.1:9999"))
	assert.Equal(t, "https://tenant.eu.auth0.com/", IssuerURL("tenant.eu.auth0.com"))
}
