// Package relay turns send requests into outbound mail using credentials from a destination.
package relay

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/pure-golang/orderbrowser/destination"
	"github.com/pure-golang/orderbrowser/logger"
	"github.com/pure-golang/orderbrowser/mail"
	"github.com/pure-golang/orderbrowser/mail/noop"
	"github.com/pure-golang/orderbrowser/mail/smtp"
)

const instrumentationName = "github.com/pure-golang/orderbrowser/relay"

var (
	meter = otel.GetMeterProvider().Meter(instrumentationName)
	// nolint:errcheck // Sync OpenTelemetry instruments never return errors
	sendCount, _    = meter.Int64Counter("relay.send_count")
	sendTimeHist, _ = meter.Int64Histogram("relay.send_time", metric.WithUnit("ms"))
	tracer          = otel.Tracer(instrumentationName)
)

// MailRequest is the body of POST /send-mail.
type MailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// SenderFactory opens a mail.Sender for one request.
type SenderFactory func(Credential) mail.Sender

// SMTPSenders builds an SMTP sender per credential.
func SMTPSenders(cfg Config) SenderFactory {
	return func(c Credential) mail.Sender {
		return smtp.NewSender(smtp.Config{
			Host:        c.Host,
			Port:        c.Port,
			Username:    c.User,
			Password:    c.Password,
			From:        c.From,
			TLS:         true,
			ImplicitTLS: c.Port == smtp.ImplicitTLSPort,
			Insecure:    cfg.Insecure,
			Timeout:     cfg.SendTimeout,
		})
	}
}

// SharedSender returns the same sender for every request. Close is left to the caller.
func SharedSender(s mail.Sender) SenderFactory {
	return func(Credential) mail.Sender {
		return unclosable{s}
	}
}

type unclosable struct {
	mail.Sender
}

func (unclosable) Close() error { return nil }

type Option func(*Service)

func WithSenderFactory(f SenderFactory) Option {
	return func(s *Service) {
		s.newSender = f
	}
}

// Service resolves credentials and sends one email per call. It keeps no state between calls.
type Service struct {
	cfg       Config
	finder    destination.Finder
	newSender SenderFactory
}

func New(cfg Config, finder destination.Finder, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		finder: finder,
	}
	switch cfg.Transport {
	case TransportNoop:
		s.newSender = SharedSender(noop.NewSender())
	default:
		s.newSender = SMTPSenders(cfg)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers req exactly once and returns the Message-ID.
// Errors are *ValidationError, *ConfigurationError, *CredentialError or *DeliveryError.
func (s *Service) Send(ctx context.Context, req MailRequest) (messageID string, err error) {
	ctx, span := tracer.Start(ctx, "Relay.Send")
	defer span.End()

	start := time.Now()
	log := logger.Component(ctx, "relay").With("destination", s.cfg.Destination)
	logCtx := logger.NewContext(ctx, log)
	log.Info("email request started")

	defer func() {
		outcome := outcomeOf(err)
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		sendCount.Add(ctx, 1, attrs)
		sendTimeHist.Record(ctx, time.Since(start).Milliseconds(), attrs)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.FromContextWithErr(logCtx, err).Error("error sending email", "outcome", outcome)
			return
		}
		span.SetStatus(codes.Ok, "")
	}()

	to, err := recipients(req.To)
	if err != nil {
		return "", err
	}

	d, err := s.lookup(ctx)
	if err != nil {
		return "", err
	}
	log.Info("destination loaded")

	cred, err := ResolveCredential(d, s.cfg)
	log.Info("credentials resolved",
		"user_found", cred.User != "",
		"user_key", cred.UserKey,
		"user", cred.User,
		"password_found", cred.Password != "",
		"password_key", cred.PasswordKey,
	)
	if err != nil {
		return "", err
	}
	span.SetAttributes(
		attribute.String("smtp.host", cred.Host),
		attribute.Int("smtp.port", cred.Port),
	)

	sender := s.newSender(cred)
	defer sender.Close()

	sendCtx, cancel := withTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	messageID, err = sender.Send(sendCtx, mail.Email{
		From:    mail.Address{Name: s.cfg.FromName, Address: cred.From},
		To:      to,
		Subject: req.Subject,
		Body:    req.Text,
	})
	if err != nil {
		return "", &DeliveryError{Host: cred.Host, Port: cred.Port, Err: err}
	}

	log.Info("email sent successfully", "message_id", messageID)
	return messageID, nil
}

// Resolve looks up the destination and its credentials without sending anything.
func (s *Service) Resolve(ctx context.Context) (*destination.Destination, Credential, error) {
	d, err := s.lookup(ctx)
	if err != nil {
		return nil, Credential{}, err
	}
	cred, err := ResolveCredential(d, s.cfg)
	return d, cred, err
}

func (s *Service) lookup(ctx context.Context) (*destination.Destination, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	d, err := s.finder.Find(ctx, s.cfg.Destination)
	switch {
	case destination.IsNotFound(err):
		return nil, &ConfigurationError{Destination: s.cfg.Destination, Reason: "not found", Err: err}
	case err != nil:
		return nil, &ConfigurationError{Destination: s.cfg.Destination, Reason: "could not be loaded", Err: err}
	case d == nil:
		return nil, &ConfigurationError{Destination: s.cfg.Destination, Reason: "not found", Err: destination.ErrNotFound}
	}
	if d.Name == "" {
		d.Name = s.cfg.Destination
	}
	return d, nil
}

// recipients accepts one address or a comma separated list.
func recipients(to string) ([]mail.Address, error) {
	if strings.TrimSpace(to) == "" {
		return nil, &ValidationError{Reason: "recipient is required"}
	}

	var result []mail.Address
	for _, part := range strings.Split(to, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := mail.ParseAddress(part)
		if err != nil {
			return nil, &ValidationError{Reason: "invalid recipient " + strings.TrimSpace(part) + ": " + err.Error()}
		}
		result = append(result, addr)
	}
	if len(result) == 0 {
		return nil, &ValidationError{Reason: "recipient is required"}
	}
	return result, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func outcomeOf(err error) string {
	var (
		validationErr    *ValidationError
		configurationErr *ConfigurationError
		credentialErr    *CredentialError
		deliveryErr      *DeliveryError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &configurationErr):
		return "configuration"
	case errors.As(err, &credentialErr):
		return "credential"
	case errors.As(err, &deliveryErr):
		return "delivery"
	default:
		return "error"
	}
}
