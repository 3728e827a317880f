package usertoken

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL is the lifetime of signed local tokens.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultLeeway is clock skew tolerance for token validation.
	DefaultLeeway = 30 * time.Second

	defaultIssuer = "bookhub"
)

var ErrInvalidToken = errors.New("invalid token")

// Subject identifies who a token is issued to.
type Subject struct {
	ID       string
	Username string
}

// Issuer creates and checks local session tokens.
type Issuer interface {
	Issue(sub Subject) (string, error)
	Verify(token string, sub Subject) error
}

// Opaque issues base64("username:unixMillis") tokens. They carry no
// signature, so Verify only checks their shape and owner.
type Opaque struct {
	now func() time.Time
}

func NewOpaque() *Opaque {
	return &Opaque{now: time.Now}
}

func (o *Opaque) Issue(sub Subject) (string, error) {
	if strings.TrimSpace(sub.Username) == "" {
		return "", errors.New("token subject username required")
	}
	raw := fmt.Sprintf("%s:%d", sub.Username, o.now().UnixMilli())
	return base64.StdEncoding.EncodeToString([]byte(raw)), nil
}

func (o *Opaque) Verify(token string, sub Subject) error {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return ErrInvalidToken
	}
	idx := strings.LastIndex(string(decoded), ":")
	if idx <= 0 {
		return ErrInvalidToken
	}
	if string(decoded[:idx]) != sub.Username {
		return ErrInvalidToken
	}
	if _, err := strconv.ParseInt(string(decoded[idx+1:]), 10, 64); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// HS256Options configures signed local tokens.
type HS256Options struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Leeway time.Duration
}

// HS256 issues HMAC-signed JWTs whose subject is the user id.
type HS256 struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

func NewHS256(opts HS256Options) (*HS256, error) {
	secret := strings.TrimSpace(opts.Secret)
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Leeway <= 0 {
		opts.Leeway = DefaultLeeway
	}
	return &HS256{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    opts.TTL,
		leeway: opts.Leeway,
		now:    time.Now,
	}, nil
}

func (h *HS256) Issue(sub Subject) (string, error) {
	if strings.TrimSpace(sub.ID) == "" {
		return "", errors.New("token subject id required")
	}
	now := h.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    h.issuer,
		Subject:   sub.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
		ID:        randomHexID(12),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func (h *HS256) Verify(token string, sub Subject) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(h.leeway),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = ErrInvalidToken
		}
		return err
	}
	if claims.Subject != sub.ID {
		return errors.New("token subject mismatch")
	}
	return nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}
