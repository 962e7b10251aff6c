package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"docai-gateway/api/internal/metrics"
)

// Claims are the assertions of a token that passed verification.
type Claims map[string]any

// Subject returns the sub claim, or "" if absent.
func (c Claims) Subject() string {
	s, _ := c["sub"].(string)
	return s
}

type VerifierConfig struct {
	Audience string
	// Issuer is checked against the iss claim when non-empty.
	Issuer     string
	Algorithms []string
	Metrics    *metrics.Metrics
	// Now overrides the clock used for exp and nbf checks.
	Now func() time.Time
}

// Verifier validates bearer tokens against keys from a KeySource.
type Verifier struct {
	keys     KeySource
	audience string
	issuer   string
	methods  []string
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewVerifier(keys KeySource, cfg VerifierConfig) *Verifier {
	methods := cfg.Algorithms
	if len(methods) == 0 {
		methods = []string{"RS256"}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		keys:     keys,
		audience: cfg.Audience,
		issuer:   cfg.Issuer,
		methods:  methods,
		metrics:  cfg.Metrics,
		now:      now,
	}
}

// Verify runs header parsing, key resolution, signature and claim checks in
// order and stops at the first failure.
func (v *Verifier) Verify(ctx context.Context, raw string) (claims Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, fmt.Errorf("%w: %v", ErrVerifierInternal, r)
		}
		v.metrics.RecordTokenVerification(Reason(err))
	}()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	kid, err := unverifiedKeyID(raw)
	if err != nil {
		return nil, err
	}

	set, err := v.keys.KeySet(ctx)
	if err != nil {
		if errors.Is(err, ErrKeyFetch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrVerifierInternal, err)
	}
	key, ok := set.Lookup(kid)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
	}

	mc := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods(v.methods), jwt.WithoutClaimsValidation())
	_, err = parser.ParseWithClaims(raw, mc, func(*jwt.Token) (any, error) {
		return key.Key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if err := v.checkClaims(mc); err != nil {
		return nil, err
	}
	return Claims(mc), nil
}

func (v *Verifier) checkClaims(mc jwt.MapClaims) error {
	now := v.now().Unix()
	if !mc.VerifyExpiresAt(now, true) {
		return ErrTokenExpired
	}
	if !mc.VerifyNotBefore(now, false) {
		return ErrTokenNotYetValid
	}
	if !mc.VerifyAudience(v.audience, true) {
		return ErrInvalidAudience
	}
	if v.issuer != "" && !mc.VerifyIssuer(v.issuer, true) {
		return ErrInvalidIssuer
	}
	return nil
}

func unverifiedKeyID(raw string) (string, error) {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	kid, _ := tok.Header["kid"].(string)
	if kid == "" {
		return "", fmt.Errorf("%w: no kid", ErrMalformedToken)
	}
	return kid, nil
}
