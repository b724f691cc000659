// Package notification — письма покупателям и хостам.
// Отправка fire-and-forget: ошибка пишется в лог и никогда не откатывает бизнес-операцию.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"example.com/shipforward/pkg/config"
	"example.com/shipforward/pkg/logger"
)

const defaultSMTPTimeout = 10 * time.Second

// Notifier — порт отправки писем.
type Notifier interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type sendFunc func(ctx context.Context, messages ...*mail.Msg) error

// SMTPNotifier отправляет HTML-письма через SMTP-релей (go-mail).
// Отмена ctx прерывает соединение с зависшим релеем.
type SMTPNotifier struct {
	from string
	send sendFunc
}

func NewSMTPNotifier(cfg config.SMTPConfig) (*SMTPNotifier, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	opts := []mail.Option{
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка настройки SMTP-клиента %s: %w", cfg.Host, err)
	}
	return &SMTPNotifier{from: cfg.From, send: client.DialAndSendWithContext}, nil
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch strings.ToLower(name) {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

func (n *SMTPNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	msg, err := n.message(to, subject, body)
	if err != nil {
		return err
	}
	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("ошибка отправки письма на %s: %w", to, err)
	}
	return nil
}

// message собирает письмо: тема в RFC 2047, тело в quoted-printable, Date и Message-ID.
func (n *SMTPNotifier) message(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("некорректный адрес отправителя %q: %w", n.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("некорректный адрес получателя %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

// LogNotifier пишет письма в лог вместо отправки. Для локальной разработки.
type LogNotifier struct{}

func (LogNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("Письмо (SMTP не настроен)")
	return nil
}

// New выбирает реализацию по конфигурации: без SMTP_HOST письма идут в лог.
func New(cfg config.SMTPConfig) (Notifier, error) {
	if cfg.Host == "" {
		return LogNotifier{}, nil
	}
	n, err := NewSMTPNotifier(cfg)
	if err != nil {
		return nil, err
	}
	return n, nil
}
