// Package dialog drives the mail drafting dialog for a selected purchase order.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/pure-golang/orderbrowser/logger"
	"github.com/pure-golang/orderbrowser/relay"
)

type State string

const (
	StateGenerate   State = "generate"
	StateGenerating State = "generating"
	StateRevise     State = "revise"
)

var (
	ErrNoOrder           = errors.New("Please select an Order first.")
	ErrRecipientRequired = errors.New("Please enter a recipient email address.")
	ErrNotOpen           = errors.New("dialog is not open")
	ErrBusy              = errors.New("dialog is busy")
	ErrUnknownRevision   = errors.New("unknown revision")
)

// UnknownError is reported when a failed send carries no message.
const UnknownError = "Unknown error"

// SendError is a failed send with the message shown to the user.
type SendError struct {
	Message string
	Err     error
}

func (e *SendError) Error() string {
	return "Failed to send email.\nReason: " + e.Message
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Mailer delivers a drafted mail. relay/client.Client implements it.
type Mailer interface {
	SendMail(ctx context.Context, req relay.MailRequest) error
}

type Order struct {
	ID       string
	Supplier string
}

func (o Order) Subject() string {
	return fmt.Sprintf("Inquiry regarding Order %s - %s", o.ID, o.Supplier)
}

// Snapshot is a copy of the session fields.
type Snapshot struct {
	State        State
	Open         bool
	Busy         bool
	Order        Order
	To           string
	Subject      string
	Output       string
	UserName     string
	UserInitials string
}

type Option func(*Session)

func WithGenerator(g Generator) Option {
	return func(s *Session) {
		s.gen = g
	}
}

func WithUserName(name string) Option {
	return func(s *Session) {
		if strings.TrimSpace(name) != "" {
			s.userName = name
		}
	}
}

// OnChange registers fn to receive a snapshot after every change.
// fn runs without the session lock held and must not block for long.
func OnChange(fn func(Snapshot)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// Session is one drafting dialog. At most one generation runs at a time.
type Session struct {
	mailer   Mailer
	gen      Generator
	userName string
	onChange func(Snapshot)
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	open     bool
	busy     bool
	// opened counts Open calls so a late send result can tell its dialog apart.
	opened   uint64
	order    Order
	to       string
	subject  string
	output   string
	revision Revision
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(mailer Mailer, opts ...Option) *Session {
	s := &Session{
		mailer:   mailer,
		gen:      Template{Interval: DefaultInterval},
		userName: DefaultUserName,
		logger:   logger.Component(context.Background(), "dialog"),
		state:    StateGenerate,
		revision: RevisionRegenerate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds a session with the template generator tuned by cfg.
func NewFromConfig(mailer Mailer, cfg Config, opts ...Option) *Session {
	base := []Option{
		WithGenerator(Template{Interval: cfg.Interval}),
		WithUserName(cfg.UserName),
	}
	return New(mailer, append(base, opts...)...)
}

// Open starts a fresh dialog for order.
func (s *Session) Open(order Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return ErrNoOrder
	}
	s.stopGeneration()

	s.mu.Lock()
	s.open = true
	s.busy = false
	s.opened++
	s.order = order
	s.to = ""
	s.subject = order.Subject()
	s.output = ""
	s.state = StateGenerate
	s.revision = RevisionRegenerate
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("dialog opened", "order", order.ID, "supplier", order.Supplier)
	s.notify(snap)
	return nil
}

// Activate presses the main button. In StateRevise it changes nothing and
// returns the revision menu; pass the choice to Revise.
func (s *Session) Activate() ([]Revision, error) {
	s.mu.Lock()
	state, open := s.state, s.open
	s.mu.Unlock()

	if !open {
		return nil, ErrNotOpen
	}

	switch state {
	case StateGenerate:
		return nil, s.startGeneration(RevisionRegenerate)
	case StateGenerating:
		s.stopGeneration()
		return nil, nil
	default:
		return Revisions, nil
	}
}

// Revise restarts generation. Every revision is drafted the same way.
func (s *Session) Revise(r Revision) error {
	if !r.Valid() {
		return errors.Wrapf(ErrUnknownRevision, "%q", r)
	}
	s.logger.Debug("revising text", "revision", string(r))
	return s.startGeneration(r)
}

func (s *Session) startGeneration(r Revision) error {
	s.mu.Lock()
	for s.cancel != nil {
		s.mu.Unlock()
		s.stopGeneration()
		s.mu.Lock()
	}
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.state = StateGenerating
	s.output = ""
	s.revision = r
	prompt := Prompt{
		OrderID:  s.order.ID,
		Supplier: s.order.Supplier,
		UserName: s.userName,
		Revision: r,
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	go s.generate(ctx, done, prompt)
	return nil
}

func (s *Session) generate(ctx context.Context, done chan struct{}, p Prompt) {
	defer close(done)

	for chunk, err := range s.gen.Stream(ctx, p) {
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("generation failed", "order", p.OrderID, "error", err)
			}
			break
		}

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		s.output += chunk
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.notify(snap)
	}

	s.mu.Lock()
	if s.done != done {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel, s.done = nil, nil
	s.state = StateRevise
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// stopGeneration cancels the running generation and waits for it to exit.
func (s *Session) stopGeneration() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	changed := s.state == StateGenerating
	if changed {
		s.state = StateRevise
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if changed {
		s.notify(snap)
	}
}

// Wait blocks until the current generation, if any, has finished.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Send posts the draft once. The dialog closes only on success.
func (s *Session) Send(ctx context.Context) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if strings.TrimSpace(s.to) == "" {
		s.mu.Unlock()
		return ErrRecipientRequired
	}
	s.busy = true
	opened := s.opened
	req := relay.MailRequest{To: strings.TrimSpace(s.to), Subject: s.subject, Text: s.output}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	err := s.mailer.SendMail(ctx, req)
	if err != nil {
		s.mu.Lock()
		current := s.opened == opened
		if current {
			s.busy = false
			snap = s.snapshotLocked()
		}
		s.mu.Unlock()
		if current {
			s.notify(snap)
		}

		msg := err.Error()
		if strings.TrimSpace(msg) == "" {
			msg = UnknownError
		}
		logger.FromContextWithErr(ctx, err).Error("failed to send email", "to", req.To)
		return &SendError{Message: msg, Err: err}
	}

	logger.FromContext(ctx).Info("email sent", "to", req.To, "order", snap.Order.ID)

	s.mu.Lock()
	current := s.opened == opened
	s.mu.Unlock()
	if !current {
		// The dialog was reopened while the mail was in flight.
		return nil
	}

	s.stopGeneration()
	s.mu.Lock()
	if s.opened == opened {
		s.busy = false
		s.open = false
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// Cancel stops any generation and closes the dialog without sending.
func (s *Session) Cancel() {
	s.stopGeneration()

	s.mu.Lock()
	s.open = false
	s.busy = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Session) SetRecipient(to string) {
	s.set(func() { s.to = to })
}

func (s *Session) SetSubject(subject string) {
	s.set(func() { s.subject = subject })
}

// SetOutput replaces the draft text. A running generation keeps appending to it.
func (s *Session) SetOutput(text string) {
	s.set(func() { s.output = text })
}

func (s *Session) set(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:        s.state,
		Open:         s.open,
		Busy:         s.busy,
		Order:        s.order,
		To:           s.to,
		Subject:      s.subject,
		Output:       s.output,
		UserName:     s.userName,
		UserInitials: Initials(s.userName),
	}
}

func (s *Session) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
