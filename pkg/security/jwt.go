package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type TokenType string

const (
	TypeAccess    TokenType = "access"
	TypeRefresh   TokenType = "refresh"
	TypeChallenge TokenType = "2fa"
	TypeReset     TokenType = "reset"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	Type TokenType `json:"typ"`
	// Fingerprint of the password hash at issue time, reset tokens only
	PasswordVersion string `json:"pwv,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 tokens with the active key and verifies against
// every key it knows. The key id travels in the "kid" header.
type TokenIssuer struct {
	activeKid string
	keys      map[string][]byte
	now       func() time.Time
}

func NewTokenIssuer(kid string, secret []byte, previous map[string][]byte) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("no signing secret provided")
	}

	keys := make(map[string][]byte, len(previous)+1)
	for k, v := range previous {
		keys[k] = v
	}
	keys[kid] = secret

	return &TokenIssuer{activeKid: kid, keys: keys, now: time.Now}, nil
}

// SetClock replaces the time source used for issuing and validating.
func (i *TokenIssuer) SetClock(now func() time.Time) {
	i.now = now
}

type IssueOpt func(*Claims)

func WithPasswordVersion(v string) IssueOpt {
	return func(c *Claims) { c.PasswordVersion = v }
}

// Issue signs a token of type typ for subject. The returned expiry is the
// exact value encoded in the token (second precision).
func (i *TokenIssuer) Issue(typ TokenType, subject string, ttl time.Duration, opts ...IssueOpt) (string, time.Time, error) {
	jti, err := gonanoid.New()
	if err != nil {
		return "", time.Time{}, err
	}

	now := i.now()
	exp := jwt.NewNumericDate(now.Add(ttl))

	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}
	for _, o := range opts {
		o(claims)
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = i.activeKid

	signed, err := t.SignedString(i.keys[i.activeKid])
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, exp.Time, nil
}

// Parse verifies signature, expiry and type. It returns ErrTokenExpired or
// ErrTokenInvalid, never the library's errors.
func (i *TokenIssuer) Parse(raw string, typ TokenType) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := i.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims.Type != typ || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// PasswordVersion fingerprints a stored password hash. Any change to the
// hash invalidates reset links issued before it.
func PasswordVersion(hash string) string {
	return Digest("pwv:" + hash)[:16]
}
