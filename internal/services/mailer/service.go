// -----------------------------------------------------------------------
// Mailer Service - SMTP submission for SET Watch notifications
// Security modes: starttls (587), tls (465 implicit), none (local relays)
// -----------------------------------------------------------------------

package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/common"
)

// Security modes
const (
	SecurityStartTLS = "starttls"
	SecurityTLS      = "tls"
	SecurityNone     = "none"
)

const (
	// DefaultDialTimeout bounds connecting to the relay
	DefaultDialTimeout = 30 * time.Second

	// DefaultSessionTimeout bounds a whole SMTP session, greeting to QUIT
	DefaultSessionTimeout = 2 * time.Minute
)

// Service submits composed messages to the configured SMTP relay
type Service struct {
	config         common.SMTPConfig
	logger         arbor.ILogger
	dialTimeout    time.Duration
	sessionTimeout time.Duration
	tlsConfig      *tls.Config
}

// NewService creates a new mailer service
func NewService(config common.SMTPConfig, logger arbor.ILogger) *Service {
	sessionTimeout := config.SessionTimeout()
	if sessionTimeout <= 0 {
		sessionTimeout = DefaultSessionTimeout
	}
	return &Service{
		config:         config,
		logger:         logger,
		dialTimeout:    min(DefaultDialTimeout, sessionTimeout),
		sessionTimeout: sessionTimeout,
		tlsConfig:      &tls.Config{ServerName: config.Host, MinVersion: tls.VersionTLS12},
	}
}

// IsConfigured checks if SMTP is configured with minimum required settings
func (s *Service) IsConfigured() bool {
	return s.config.IsConfigured()
}

// From returns the configured sender address and display name
func (s *Service) From() (address, name string) {
	return s.config.From, s.config.FromName
}

// Send delivers msg to every recipient in one SMTP transaction
func (s *Service) Send(ctx context.Context, to []string, msg []byte) error {
	if s.config.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if s.config.From == "" {
		return fmt.Errorf("from email not configured")
	}
	recipients, err := ParseRecipients(to)
	if err != nil {
		return err
	}

	client, stop, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer stop()
	defer client.Close()

	if err := s.authenticate(client); err != nil {
		return err
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt.Address); err != nil {
			return fmt.Errorf("failed to set mail recipient %s: %w", rcpt.Address, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := client.Quit(); err != nil {
		s.logger.Debug().Err(err).Msg("SMTP QUIT failed after message was accepted")
	}

	s.logger.Info().
		Str("host", s.config.Host).
		Int("port", s.config.Port).
		Int("recipients", len(recipients)).
		Msg("Email sent")

	return nil
}

// SendTestEmail sends a short message that confirms the relay settings work
func (s *Service) SendTestEmail(ctx context.Context, symbol string) error {
	msg, err := Compose(Message{
		From:     s.config.From,
		FromName: s.config.FromName,
		To:       s.config.To,
		Subject:  fmt.Sprintf("SMTP TEST: SET watcher (%s)", symbol),
		Text:     "If you got this email, the SMTP settings for SET Watch are working.",
	})
	if err != nil {
		return err
	}
	return s.Send(ctx, s.config.To, msg)
}

// dial connects to the relay and applies the configured transport security.
// Every read and write of the session shares one deadline: the session timeout or the ctx
// deadline, whichever comes first. The returned stop func releases the cancellation hook.
func (s *Service) dial(ctx context.Context) (*smtp.Client, func() bool, error) {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	dialer := &net.Dialer{Timeout: s.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}

	deadline := time.Now().Add(s.sessionTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to set SMTP session deadline: %w", err)
	}

	// Abort a stalled session when the run is cancelled
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	fail := func(err error) (*smtp.Client, func() bool, error) {
		stop()
		conn.Close()
		return nil, nil, err
	}

	if s.config.Security == SecurityTLS {
		tlsConn := tls.Client(conn, s.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fail(fmt.Errorf("TLS handshake with %s failed: %w", addr, err))
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fail(fmt.Errorf("failed to create SMTP client: %w", err))
	}

	if s.config.Security == SecurityStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			client.Close()
			return fail(fmt.Errorf("SMTP server %s does not support STARTTLS", addr))
		}
		if err := client.StartTLS(s.tlsConfig); err != nil {
			client.Close()
			return fail(fmt.Errorf("failed to start TLS: %w", err))
		}
	}

	return client, stop, nil
}

func (s *Service) authenticate(client *smtp.Client) error {
	if s.config.Username == "" {
		return nil
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		return fmt.Errorf("SMTP server does not support authentication")
	}
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	return nil
}
