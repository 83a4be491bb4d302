package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier validates bearer tokens issued by the identity collaborator and
// extracts the subject. User and session storage live outside this service.
type Verifier struct {
	Secret    string
	Issuer    string
	ClockSkew time.Duration
}

// Identity is the caller identity carried by a verified token. The tier
// claim is asserted by the identity collaborator, not by the client.
type Identity struct {
	UserID string
	Tier   string
}

// ParseIdentity parses and validates the token, returning subject and tier claim.
func (v Verifier) ParseIdentity(token string) (Identity, error) {
	if strings.TrimSpace(v.Secret) == "" {
		return Identity{}, errors.New("auth: secret not configured")
	}
	tok, err := v.parse(token)
	if err != nil {
		return Identity{}, err
	}
	sub := strings.TrimSpace(tok.Subject())
	if sub == "" {
		return Identity{}, errors.New("auth: token missing subject")
	}
	identity := Identity{UserID: sub}
	if raw, ok := tok.Get("tier"); ok {
		if tier, ok := raw.(string); ok {
			identity.Tier = strings.TrimSpace(tier)
		}
	}
	return identity, nil
}

// Subject parses and validates the token, returning the user identifier.
func (v Verifier) Subject(token string) (string, error) {
	identity, err := v.ParseIdentity(token)
	if err != nil {
		return "", err
	}
	return identity.UserID, nil
}

func (v Verifier) parse(token string) (jwt.Token, error) {
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, []byte(v.Secret)),
		jwt.WithValidate(true),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	return jwt.Parse([]byte(token), options...)
}
