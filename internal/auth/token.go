// Package auth implements the signed-token identity model shared by every
// service in the platform: the accessor shapes, RS256 sign/verify over them,
// and the bearer middleware services mount in front of internal routes.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the token lifetime used when callers do not choose one.
const DefaultTTL = time.Hour

// skewLeeway absorbs small clock differences between the signing and the
// verifying process. Nothing else in the platform compensates for skew.
const skewLeeway = 30 * time.Second

var (
	// ErrExpired is returned by Verify for tokens past their expiry.
	ErrExpired = errors.New("auth: token expired")
	// ErrBadSignature is returned by Verify when the signature does not check
	// out against the public key.
	ErrBadSignature = errors.New("auth: bad token signature")
	// ErrMalformed is returned by Verify for tokens that are not valid JWTs
	// or whose claims cannot be decoded.
	ErrMalformed = errors.New("auth: malformed token")
	// ErrSigning is returned by Sign on key or encoding faults.
	ErrSigning = errors.New("auth: token signing failed")
	// ErrNoPrivateKey is returned by Sign on a verify-only Config.
	ErrNoPrivateKey = errors.New("auth: no private key loaded")
)

// TokenClaim is the structured result of signing: the accessor that was
// embedded and the expiry that was stamped.
type TokenClaim struct {
	Accessor  Accessor
	ExpiresAt time.Time
}

type tokenClaims struct {
	Accessor Accessor `json:"accessor"`
	jwt.RegisteredClaims
}

// Config holds the RS256 key material for one issuing domain. The private
// key may be absent, in which case the Config can only verify. Key material
// is loaded once at process start and never mutated.
type Config struct {
	public  *rsa.PublicKey
	private *rsa.PrivateKey
}

// NewConfig builds a Config from already-parsed keys. private may be nil
// for a verify-only config.
func NewConfig(public *rsa.PublicKey, private *rsa.PrivateKey) *Config {
	return &Config{public: public, private: private}
}

// ConfigFromPEM parses PEM-encoded key material. privatePEM may be nil for
// a verify-only config.
func ConfigFromPEM(publicPEM, privatePEM []byte) (*Config, error) {
	public, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	cfg := &Config{public: public}
	if privatePEM != nil {
		cfg.private, err = jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
		if err != nil {
			return nil, fmt.Errorf("auth: parse private key: %w", err)
		}
	}
	return cfg, nil
}

// LoadKeyPair reads both keys from disk. privatePath may be empty for a
// verify-only config (the broadcast server never signs).
func LoadKeyPair(publicPath, privatePath string) (*Config, error) {
	publicPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("auth: read public key: %w", err)
	}
	var privatePEM []byte
	if privatePath != "" {
		privatePEM, err = os.ReadFile(privatePath)
		if err != nil {
			return nil, fmt.Errorf("auth: read private key: %w", err)
		}
	}
	return ConfigFromPEM(publicPEM, privatePEM)
}

// Sign encodes the accessor into an RS256 token expiring after ttl. It
// returns the transport string alongside the structured claim. Input shape
// never fails signing; only key or encoding faults do.
func (c *Config) Sign(accessor Accessor, ttl time.Duration) (string, TokenClaim, error) {
	if c.private == nil {
		return "", TokenClaim{}, ErrNoPrivateKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	expiresAt := time.Now().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, tokenClaims{
		Accessor: accessor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(c.private)
	if err != nil {
		return "", TokenClaim{}, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return signed, TokenClaim{Accessor: accessor, ExpiresAt: expiresAt}, nil
}

// Verify checks signature and expiry and returns the embedded accessor.
// No business authorization happens here; callers decide what the accessor
// may do. Expiry is checked with a small leeway for clock skew.
func (c *Config) Verify(token string) (Accessor, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.public, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithLeeway(skewLeeway), jwt.WithExpirationRequired())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Accessor{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Accessor{}, ErrBadSignature
		default:
			return Accessor{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	if !parsed.Valid {
		return Accessor{}, ErrBadSignature
	}
	return claims.Accessor, nil
}
