package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-storefront/internal/common"
)

const (
	claimRoles   = "roles"
	claimStoreID = "store_id"
)

// TokenValidator validates structural and contextual properties of JWT tokens.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate ensures the supplied token satisfies issuer, audience, expiry, and algorithm requirements.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("session: token is nil")
	}
	if algorithm == "" {
		return errors.New("session: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("session: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, options...)
}

// Verifier turns bearer tokens issued by the commerce backend into sessions.
type Verifier struct {
	secret    []byte
	validator TokenValidator
	now       func() time.Time
}

// NewVerifier builds an HS256 verifier for the shared secret.
func NewVerifier(secret string, validator TokenValidator) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session: secret is required")
	}
	if validator.Algorithm == "" {
		validator.Algorithm = jwa.HS256
	}
	return &Verifier{secret: []byte(secret), validator: validator, now: time.Now}, nil
}

func unauthorized(err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
}

// Parse validates token and returns the session it grants.
func (v *Verifier) Parse(token string) (Session, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Session{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Session{}, unauthorized(err)
	}
	if algorithm != v.validator.Algorithm {
		return Session{}, unauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret), jwt.WithValidate(false))
	if err != nil {
		return Session{}, unauthorized(err)
	}
	if err := v.validator.Validate(parsed, algorithm, v.now()); err != nil {
		return Session{}, unauthorized(err)
	}
	if parsed.Subject() == "" {
		return Session{}, unauthorized(errors.New("session: token missing subject"))
	}

	s := Session{Token: trimmed, UserID: parsed.Subject(), Roles: stringList(parsed, claimRoles)}
	if raw, ok := parsed.Get(claimStoreID); ok {
		if id, ok := raw.(string); ok {
			s.StoreID = strings.TrimSpace(id)
		}
	}
	if len(s.Roles) == 0 {
		s.Roles = []string{RoleCustomer}
	}
	return s, nil
}

func stringList(tok jwt.Token, claim string) []string {
	raw, ok := tok.Get(claim)
	if !ok {
		return nil
	}
	var out []string
	switch v := raw.(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		out = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}
	for i := range out {
		out[i] = strings.ToLower(strings.TrimSpace(out[i]))
	}
	return out
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("session: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("session: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("session: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("session: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("session: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
