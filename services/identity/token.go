package identity

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
)

// SigningMethod is the algorithm of every issued token.
const SigningMethod = "HS256"

var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity vouched for by a token: a stable email and display name in one course.
type Claims struct {
	jwt.StandardClaims
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Course string `json:"course,omitempty"`
}

// Valid also requires an email, which is what the rest of the app keys users on.
func (c Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if core.CleanString(c.Email) == "" {
		return ErrInvalidToken
	}
	return nil
}

type TokenIssuer struct {
	key        []byte
	issuer     string
	expiration time.Duration
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{
		key:        []byte(conf.SecretKey),
		issuer:     conf.AppName,
		expiration: conf.Server.JWTExpirationDelta,
	}
}

func (iss *TokenIssuer) SigningKey() []byte {
	return iss.key
}

// Claims builds the claims of a fresh token for email in course.
func (iss *TokenIssuer) Claims(email, name, course string) *Claims {
	now := time.Now()
	email = core.CleanString(email, true /* lower */)
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    iss.issuer,
			Subject:   email,
			ExpiresAt: now.Add(iss.expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:  email,
		Name:   core.CleanString(name),
		Course: course,
	}
}

// GenerateToken generates a signed JWT token string representing the claims.
func (iss *TokenIssuer) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(SigningMethod), claims)
	ss, err := token.SignedString(iss.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// ParseToken verifies a signed token and returns its claims.
func (iss *TokenIssuer) ParseToken(ss string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(ss, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != SigningMethod {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return iss.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
