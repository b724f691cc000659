// Package jwt — RS256 токены входа по ссылке из письма.
// Verification token живёт минуты и годится только для обмена на session token;
// session token лежит в http-only cookie и проверяется на каждом запросе.
package jwt

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind различает назначение токена.
type Kind string

const (
	KindVerification Kind = "verification"
	KindSession      Kind = "session"
)

// Роли, которые несёт токен.
const (
	RoleCustomer = "customer"
	RoleHost     = "host"
)

var (
	ErrInvalidToken = errors.New("невалидный токен")
	ErrWrongKind    = errors.New("токен не предназначен для этой операции")
	ErrRevoked      = errors.New("токен отозван")
)

type Claims struct {
	jwt.RegisteredClaims
	Kind Kind   `json:"kind"`
	Role string `json:"role"`
}

// Manager подписывает и проверяет токены.
type Manager struct {
	privateKey      *rsa.PrivateKey
	publicKey       *rsa.PublicKey
	blacklist       *Blacklist
	issuer          string
	verificationTTL time.Duration
	sessionTTL      time.Duration
}

type Config struct {
	PrivateKeyPath  string
	PublicKeyPath   string
	Issuer          string
	VerificationTTL time.Duration
	SessionTTL      time.Duration
}

func NewManager(cfg Config, blacklist *Blacklist) (*Manager, error) {
	publicKey, err := LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки публичного ключа: %w", err)
	}
	privateKey, err := LoadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки приватного ключа: %w", err)
	}

	return &Manager{
		privateKey:      privateKey,
		publicKey:       publicKey,
		blacklist:       blacklist,
		issuer:          cfg.Issuer,
		verificationTTL: cfg.VerificationTTL,
		sessionTTL:      cfg.SessionTTL,
	}, nil
}

// SessionTTL — max-age cookie с session token.
func (m *Manager) SessionTTL() time.Duration {
	return m.sessionTTL
}

// IssueVerification выдаёт одноразовый токен для ссылки в письме.
func (m *Manager) IssueVerification(subject, role string) (string, error) {
	token, _, err := m.issue(subject, role, KindVerification, m.verificationTTL)
	return token, err
}

// IssueSession выдаёт session token и время его истечения.
func (m *Manager) IssueSession(subject, role string) (string, time.Time, error) {
	return m.issue(subject, role, KindSession, m.sessionTTL)
}

func (m *Manager) issue(subject, role string, kind Kind, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind: kind,
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Validate проверяет подпись, срок, издателя и назначение токена.
// Для session token дополнительно проверяется blacklist.
func (m *Manager) Validate(ctx context.Context, tokenString string, kind Kind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}

	if kind == KindSession && m.blacklist != nil {
		revoked, err := m.blacklist.Check(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("ошибка проверки blacklist: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	return claims, nil
}

// Revoke отзывает токен до его естественного истечения.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.blacklist == nil || claims.ExpiresAt == nil {
		return nil
	}
	return m.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time)
}

// LoadPrivateKey читает RSA ключ в PKCS#1 или PKCS#8.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга приватного ключа: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("ключ не является RSA приватным ключом")
	}
	return rsaKey, nil
}

// LoadPublicKey читает RSA ключ в PKIX или PKCS#1.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("ключ не является RSA публичным ключом")
	}
	return rsaKey, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("не удалось декодировать PEM блок из %s", path)
	}
	return block, nil
}
