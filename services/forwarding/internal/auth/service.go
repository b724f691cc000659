// Package auth — вход по ссылке из письма для покупателей и хостов.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/shipforward/pkg/jwt"
	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

var (
	ErrTooManyRequests = errors.New("слишком много запросов ссылки входа")
	ErrUnauthorized    = errors.New("требуется авторизация")
)

const linkSubject = "Locly authentication link!"

// TokenManager — jwt.Manager.
type TokenManager interface {
	IssueVerification(subject, role string) (string, error)
	IssueSession(subject, role string) (string, time.Time, error)
	Validate(ctx context.Context, token string, kind jwt.Kind) (*jwt.Claims, error)
	Revoke(ctx context.Context, claims *jwt.Claims) error
}

type CustomerStore interface {
	Add(ctx context.Context, customer *domain.Customer) error
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
}

type HostFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.Host, error)
}

type Notifier interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Session — выданный session token.
type Session struct {
	Token     string
	Subject   string
	Role      string
	ExpiresAt time.Time
}

type Service struct {
	customers CustomerStore
	hosts     HostFinder
	tokens    TokenManager
	notifier  Notifier
	limiter   LinkLimiter // nil — без ограничений
	verifyURL string
}

func NewService(customers CustomerStore, hosts HostFinder, tokens TokenManager, notifier Notifier, limiter LinkLimiter, verifyURL string) *Service {
	return &Service{
		customers: customers,
		hosts:     hosts,
		tokens:    tokens,
		notifier:  notifier,
		limiter:   limiter,
		verifyURL: strings.TrimRight(verifyURL, "/"),
	}
}

// RequestCustomerAuth находит или создаёт покупателя и отправляет ссылку входа.
func (s *Service) RequestCustomerAuth(ctx context.Context, email string) error {
	email, err := s.prepare(ctx, email)
	if err != nil {
		return err
	}

	customer, err := s.customers.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		customer, err = s.createCustomer(ctx, email)
	}
	if err != nil {
		return err
	}

	return s.sendLink(ctx, email, customer.ID, jwt.RoleCustomer)
}

func (s *Service) createCustomer(ctx context.Context, email string) (*domain.Customer, error) {
	customer := &domain.Customer{ID: uuid.New().String(), Email: email}
	err := s.customers.Add(ctx, customer)
	if errors.Is(err, repository.ErrDuplicate) {
		// параллельный запрос успел создать покупателя
		return s.customers.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info().Str("customer_id", customer.ID).Msg("Зарегистрирован покупатель")
	return customer, nil
}

// RequestHostAuth отправляет ссылку только существующему хосту.
// Для неизвестного адреса ошибка не возвращается, чтобы не раскрывать список хостов.
func (s *Service) RequestHostAuth(ctx context.Context, email string) error {
	email, err := s.prepare(ctx, email)
	if err != nil {
		return err
	}

	host, err := s.hosts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrHostNotFound) {
		log := logger.FromContext(ctx)
		log.Warn().Msg("Запрос входа хоста с неизвестным email")
		return nil
	}
	if err != nil {
		return err
	}

	return s.sendLink(ctx, email, host.ID, jwt.RoleHost)
}

func (s *Service) prepare(ctx context.Context, email string) (string, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, email)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Лимит ссылок входа недоступен, запрос пропущен")
		} else if !allowed {
			return "", ErrTooManyRequests
		}
	}
	return email, nil
}

// sendLink — письмо fire-and-forget: ошибка SMTP только логируется.
func (s *Service) sendLink(ctx context.Context, email, subject, role string) error {
	token, err := s.tokens.IssueVerification(subject, role)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/%s", s.verifyURL, token)
	body := fmt.Sprintf(`<a href="%s">Click on this link to log in to Locly!</a>`, link)
	if err := s.notifier.SendEmail(ctx, email, linkSubject, body); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("role", role).Str("subject", subject).Msg("Не удалось отправить ссылку входа")
	}
	return nil
}

// Verify обменивает токен из письма на session token.
func (s *Service) Verify(ctx context.Context, verificationToken string) (*Session, error) {
	claims, err := s.tokens.Validate(ctx, verificationToken, jwt.KindVerification)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	token, expiresAt, err := s.tokens.IssueSession(claims.Subject, claims.Role)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info().Str("subject", claims.Subject).Str("role", claims.Role).Msg("Выдан session token")
	return &Session{Token: token, Subject: claims.Subject, Role: claims.Role, ExpiresAt: expiresAt}, nil
}

// Authenticate проверяет session token на каждом запросе.
func (s *Service) Authenticate(ctx context.Context, sessionToken string) (*jwt.Claims, error) {
	claims, err := s.tokens.Validate(ctx, sessionToken, jwt.KindSession)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return claims, nil
}

// Logout отзывает session token. Уже невалидный токен не считается ошибкой.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	claims, err := s.tokens.Validate(ctx, sessionToken, jwt.KindSession)
	if err != nil {
		return nil
	}
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("ошибка отзыва токена: %w", err)
	}
	return nil
}
