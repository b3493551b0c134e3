package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pure-golang/orderbrowser/mail"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ mail.Sender = (*Sender)(nil)

var tracer = otel.Tracer("github.com/pure-golang/orderbrowser/mail/smtp")

// Sender implements mail.Sender using net/smtp. Every Send opens its own connection.
type Sender struct {
	mx     sync.Mutex
	cfg    Config
	closed bool
}

// NewSender creates a new SMTP Sender.
func NewSender(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send delivers one email in a single SMTP session and returns the Message-ID it was sent with.
func (s *Sender) Send(ctx context.Context, email mail.Email) (string, error) {
	ctx, span := tracer.Start(ctx, "SMTP.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("smtp.host", s.cfg.Host),
		attribute.Int("smtp.port", s.cfg.Port),
		attribute.Int("smtp.to_count", len(email.To)),
		attribute.Bool("smtp.starttls", s.cfg.TLS),
		attribute.Bool("smtp.implicit_tls", s.cfg.ImplicitTLS),
		attribute.Bool("smtp.insecure", s.cfg.Insecure),
	)

	s.mx.Lock()
	closed := s.closed
	s.mx.Unlock()
	if closed {
		span.SetStatus(codes.Error, "sender is closed")
		return "", errors.New("sender is closed")
	}

	from := email.From
	if from.Address == "" {
		from.Address = s.cfg.From
	}
	if from.Address == "" {
		return "", errors.New("no from address specified")
	}
	email.From = from

	recipients := addresses(email.To)
	if len(recipients) == 0 {
		return "", errors.New("no recipients specified")
	}

	messageID := newMessageID(from.Address)
	msg, err := buildMessage(email, messageID, time.Now())
	if err != nil {
		return "", err
	}

	if err := s.deliver(ctx, from.Address, recipients, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", errors.Wrap(err, "failed to send email")
	}

	span.SetAttributes(attribute.String("smtp.message_id", messageID))
	span.SetStatus(codes.Ok, "")
	return messageID, nil
}

func (s *Sender) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.Insecure, // #nosec G402 -- controlled by config, user's responsibility
	}
}

// deliver runs the SMTP conversation. ctx cancellation closes the connection.
func (s *Sender) deliver(ctx context.Context, from string, to []string, msg []byte) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	dialer := &net.Dialer{}

	var conn net.Conn
	var err error
	if s.cfg.ImplicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: s.tlsConfig()}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return errors.Wrap(err, "failed to connect to SMTP server")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "failed to start SMTP session")
	}
	defer func() {
		// Close after Quit is a no-op; on error paths it releases the connection.
		_ = client.Close()
	}()

	localName := s.cfg.LocalName
	if localName == "" {
		localName = "localhost"
	}
	if err := client.Hello(localName); err != nil {
		return errors.Wrap(err, "failed to greet SMTP server")
	}

	if s.cfg.TLS && !s.cfg.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(s.tlsConfig()); err != nil {
				return errors.Wrap(err, "failed to start TLS")
			}
		}
	}

	if s.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return errors.Wrap(err, "failed to authenticate")
		}
	}

	if err := client.Mail(from); err != nil {
		return errors.Wrap(err, "failed to set sender")
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return errors.Wrapf(err, "failed to set recipient: %s", rcpt)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "failed to get data writer")
	}
	if _, err := writer.Write(msg); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	// The server accepts or rejects the message in reply to the final dot.
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "message rejected")
	}

	// The message is already accepted at this point.
	_ = client.Quit()
	return nil
}

// buildMessage builds the raw RFC 5322 message with a quoted-printable text body.
func buildMessage(email mail.Email, messageID string, date time.Time) ([]byte, error) {
	var msg bytes.Buffer

	writeHeader := func(k, v string) {
		msg.WriteString(k)
		msg.WriteString(": ")
		msg.WriteString(v)
		msg.WriteString("\r\n")
	}

	writeHeader("From", email.From.String())
	writeHeader("To", formatAddressList(email.To))
	if len(email.ReplyTo) > 0 {
		writeHeader("Reply-To", formatAddressList(email.ReplyTo))
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	writeHeader("Date", date.Format(time.RFC1123Z))
	writeHeader("Message-ID", messageID)
	writeHeader("MIME-Version", "1.0")

	keys := make([]string, 0, len(email.Headers))
	for k := range email.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(k, email.Headers[k])
	}

	writeHeader("Content-Type", "text/plain; charset=UTF-8")
	writeHeader("Content-Transfer-Encoding", "quoted-printable")
	msg.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&msg)
	body := strings.ReplaceAll(strings.ReplaceAll(email.Body, "\r\n", "\n"), "\n", "\r\n")
	if _, err := qp.Write([]byte(body)); err != nil {
		return nil, errors.Wrap(err, "failed to encode body")
	}
	if err := qp.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode body")
	}
	msg.WriteString("\r\n")

	return msg.Bytes(), nil
}

func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func formatAddressList(addrs []mail.Address) string {
	formatted := make([]string, len(addrs))
	for i, addr := range addrs {
		formatted[i] = addr.String()
	}
	return strings.Join(formatted, ", ")
}

func addresses(addrs []mail.Address) []string {
	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Address != "" {
			result = append(result, addr.Address)
		}
	}
	return result
}

// Close closes the sender.
func (s *Sender) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.closed = true
	return nil
}
