package dialog

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pure-golang/orderbrowser/relay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sampleDraft = "Dear Acme Corp,\n\n" +
	"I am writing to inquire about the status of Purchase Order #4500000001.\n\n" +
	"We would like to confirm the expected delivery date for the line items listed in this order. " +
	"Please let us know if there are any delays or updates we should be aware of.\n\n" +
	"Thank you for your prompt assistance.\n\n" +
	"Best regards,\nJane Doe"

var sampleOrder = Order{ID: "4500000001", Supplier: "Acme Corp"}

type fakeMailer struct {
	mu    sync.Mutex
	calls []relay.MailRequest
	err   error
}

func (m *fakeMailer) SendMail(_ context.Context, req relay.MailRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	return m.err
}

func (m *fakeMailer) Calls() []relay.MailRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]relay.MailRequest(nil), m.calls...)
}

// stepGenerator yields one chunk per value sent on steps.
type stepGenerator struct {
	steps chan string
	err   error
}

func (g *stepGenerator) Stream(ctx context.Context, _ Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-g.steps:
				if !ok {
					if g.err != nil {
						yield("", g.err)
					}
					return
				}
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

func fastSession(t *testing.T, mailer Mailer, opts ...Option) *Session {
	t.Helper()
	base := []Option{WithGenerator(Template{Interval: time.Millisecond}), WithUserName("Jane Doe")}
	s := New(mailer, append(base, opts...)...)
	t.Cleanup(s.Cancel)
	return s
}

func TestCompose(t *testing.T) {
	assert.Equal(t, sampleDraft, Compose(Prompt{OrderID: "4500000001", Supplier: "Acme Corp", UserName: "Jane Doe"}))
}

func TestSession_Open(t *testing.T) {
	s := fastSession(t, &fakeMailer{})

	require.NoError(t, s.Open(sampleOrder))

	snap := s.Snapshot()
	assert.True(t, snap.Open)
	assert.Equal(t, StateGenerate, snap.State)
	assert.Equal(t, "Inquiry regarding Order 4500000001 - Acme Corp", snap.Subject)
	assert.Empty(t, snap.To)
	assert.Empty(t, snap.Output)
	assert.Equal(t, "JD", snap.UserInitials)
}

func TestSession_OpenWithoutOrder(t *testing.T) {
	s := fastSession(t, &fakeMailer{})

	err := s.Open(Order{Supplier: "Acme Corp"})
	require.ErrorIs(t, err, ErrNoOrder)
	assert.Equal(t, "Please select an Order first.", err.Error())
	assert.False(t, s.IsOpen())
}

func TestSession_GenerateToCompletion(t *testing.T) {
	s := fastSession(t, &fakeMailer{})
	require.NoError(t, s.Open(sampleOrder))

	menu, err := s.Activate()
	require.NoError(t, err)
	assert.Nil(t, menu)

	s.Wait()

	assert.Equal(t, StateRevise, s.State())
	assert.Equal(t, sampleDraft, s.Output())
}

func TestSession_ActivateWhileGeneratingStops(t *testing.T) {
	gen := &stepGenerator{steps: make(chan string)}
	s := fastSession(t, &fakeMailer{}, WithGenerator(gen))
	require.NoError(t, s.Open(sampleOrder))

	_, err := s.Activate()
	require.NoError(t, err)
	assert.Equal(t, StateGenerating, s.State())

	gen.steps <- "Dear "
	gen.steps <- "Acme"
	require.Eventually(t, func() bool { return s.Output() == "Dear Acme" }, time.Second, time.Millisecond)

	_, err = s.Activate()
	require.NoError(t, err)

	assert.Equal(t, StateRevise, s.State())
	stopped := s.Output()

	select {
	case gen.steps <- "more":
		t.Fatal("generator still consuming after stop")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, stopped, s.Output())
}

func TestSession_TemplateStopsGrowingAfterCancel(t *testing.T) {
	s := New(&fakeMailer{}, WithGenerator(Template{Interval: 2 * time.Millisecond}), WithUserName("Jane Doe"))
	require.NoError(t, s.Open(sampleOrder))

	_, err := s.Activate()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(s.Output()) > 3 }, time.Second, time.Millisecond)

	s.Cancel()
	length := len(s.Output())
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, length, len(s.Output()))
	assert.Less(t, length, len(sampleDraft))
	assert.False(t, s.IsOpen())
	assert.Equal(t, StateRevise, s.State())
}

func TestSession_ReviseMenuAndRestart(t *testing.T) {
	s := fastSession(t, &fakeMailer{})
	require.NoError(t, s.Open(sampleOrder))

	_, err := s.Activate()
	require.NoError(t, err)
	s.Wait()

	menu, err := s.Activate()
	require.NoError(t, err)
	assert.Equal(t, []Revision{RevisionRegenerate, RevisionShorter, RevisionFormal}, menu)
	assert.Equal(t, StateRevise, s.State())

	for _, r := range menu {
		s.SetOutput("edited")
		require.NoError(t, s.Revise(r))
		s.Wait()
		assert.Equal(t, sampleDraft, s.Output(), r.Label())
		assert.Equal(t, StateRevise, s.State())
	}

	require.ErrorIs(t, s.Revise("longer"), ErrUnknownRevision)
}

func TestSession_RestartCancelsPrevious(t *testing.T) {
	gen := &stepGenerator{steps: make(chan string)}
	s := fastSession(t, &fakeMailer{}, WithGenerator(gen))
	require.NoError(t, s.Open(sampleOrder))

	_, err := s.Activate()
	require.NoError(t, err)
	gen.steps <- "first"
	require.Eventually(t, func() bool { return s.Output() == "first" }, time.Second, time.Millisecond)

	require.NoError(t, s.Revise(RevisionRegenerate))
	assert.Equal(t, StateGenerating, s.State())
	assert.Empty(t, s.Output())

	gen.steps <- "second"
	require.Eventually(t, func() bool { return s.Output() == "second" }, time.Second, time.Millisecond)

	close(gen.steps)
	s.Wait()
	assert.Equal(t, StateRevise, s.State())
	assert.Equal(t, "second", s.Output())
}

func TestSession_GeneratorError(t *testing.T) {
	gen := &stepGenerator{steps: make(chan string, 1), err: errors.New("quota exceeded")}
	s := fastSession(t, &fakeMailer{}, WithGenerator(gen))
	require.NoError(t, s.Open(sampleOrder))

	gen.steps <- "partial"
	close(gen.steps)
	_, err := s.Activate()
	require.NoError(t, err)
	s.Wait()

	assert.Equal(t, StateRevise, s.State())
	assert.Equal(t, "partial", s.Output())
}

func TestSession_ActivateClosed(t *testing.T) {
	s := fastSession(t, &fakeMailer{})

	_, err := s.Activate()
	require.ErrorIs(t, err, ErrNotOpen)
	require.ErrorIs(t, s.Revise(RevisionFormal), ErrNotOpen)
}

func TestSession_SendEmptyRecipient(t *testing.T) {
	mailer := &fakeMailer{}
	s := fastSession(t, mailer)
	require.NoError(t, s.Open(sampleOrder))

	s.SetRecipient("   ")
	err := s.Send(context.Background())

	require.ErrorIs(t, err, ErrRecipientRequired)
	assert.Empty(t, mailer.Calls())
	assert.True(t, s.IsOpen())
	assert.False(t, s.Busy())
}

func TestSession_SendSuccess(t *testing.T) {
	mailer := &fakeMailer{}
	s := fastSession(t, mailer)
	require.NoError(t, s.Open(sampleOrder))
	_, err := s.Activate()
	require.NoError(t, err)
	s.Wait()

	s.SetRecipient(" buyer@acme.example ")
	s.SetSubject("Custom subject")
	require.NoError(t, s.Send(context.Background()))

	calls := mailer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, relay.MailRequest{To: "buyer@acme.example", Subject: "Custom subject", Text: sampleDraft}, calls[0])
	assert.False(t, s.IsOpen())
	assert.False(t, s.Busy())
}

func TestSession_SendFailureKeepsDialogOpen(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("Failed to send email: Destination 'MyMailService' not found")}
	s := fastSession(t, mailer)
	require.NoError(t, s.Open(sampleOrder))
	s.SetRecipient("buyer@acme.example")

	err := s.Send(context.Background())

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "Failed to send email: Destination 'MyMailService' not found", sendErr.Message)
	assert.Equal(t, "Failed to send email.\nReason: Failed to send email: Destination 'MyMailService' not found", err.Error())
	assert.Len(t, mailer.Calls(), 1)
	assert.True(t, s.IsOpen())
	assert.False(t, s.Busy())
}

func TestSession_SendFailureWithoutMessage(t *testing.T) {
	s := fastSession(t, &fakeMailer{err: errors.New(" ")})
	require.NoError(t, s.Open(sampleOrder))
	s.SetRecipient("buyer@acme.example")

	var sendErr *SendError
	require.ErrorAs(t, s.Send(context.Background()), &sendErr)
	assert.Equal(t, UnknownError, sendErr.Message)
}

func TestSession_SendMarksBusy(t *testing.T) {
	release := make(chan struct{})
	var busyDuringSend bool
	var s *Session
	mailer := mailerFunc(func(context.Context, relay.MailRequest) error {
		busyDuringSend = s.Busy()
		<-release
		return nil
	})
	s = fastSession(t, mailer)
	require.NoError(t, s.Open(sampleOrder))
	s.SetRecipient("buyer@acme.example")

	errc := make(chan error, 1)
	go func() { errc <- s.Send(context.Background()) }()

	require.Eventually(t, s.Busy, time.Second, time.Millisecond)
	require.ErrorIs(t, s.Send(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, <-errc)
	assert.True(t, busyDuringSend)
}

func TestSession_LateSendKeepsReopenedDialog(t *testing.T) {
	release := make(chan struct{})
	s := fastSession(t, mailerFunc(func(context.Context, relay.MailRequest) error {
		<-release
		return nil
	}))
	require.NoError(t, s.Open(sampleOrder))
	s.SetRecipient("buyer@acme.example")

	errc := make(chan error, 1)
	go func() { errc <- s.Send(context.Background()) }()
	require.Eventually(t, s.Busy, time.Second, time.Millisecond)

	next := Order{ID: "4500000002", Supplier: "Globex"}
	require.NoError(t, s.Open(next))
	close(release)
	require.NoError(t, <-errc)

	snap := s.Snapshot()
	assert.True(t, snap.Open)
	assert.False(t, snap.Busy)
	assert.Equal(t, next, snap.Order)
	assert.Equal(t, StateGenerate, snap.State)
}

func TestSession_ReopenAfterSendResets(t *testing.T) {
	s := fastSession(t, &fakeMailer{})
	require.NoError(t, s.Open(sampleOrder))
	_, err := s.Activate()
	require.NoError(t, err)
	s.Wait()
	s.SetRecipient("buyer@acme.example")
	require.NoError(t, s.Send(context.Background()))

	require.NoError(t, s.Open(Order{ID: "4500000002", Supplier: "Globex"}))

	snap := s.Snapshot()
	assert.Equal(t, StateGenerate, snap.State)
	assert.Empty(t, snap.Output)
	assert.Empty(t, snap.To)
	assert.Equal(t, "Inquiry regarding Order 4500000002 - Globex", snap.Subject)
}

func TestSession_OpenStopsRunningGeneration(t *testing.T) {
	gen := &stepGenerator{steps: make(chan string)}
	s := fastSession(t, &fakeMailer{}, WithGenerator(gen))
	require.NoError(t, s.Open(sampleOrder))
	_, err := s.Activate()
	require.NoError(t, err)
	gen.steps <- "x"
	require.Eventually(t, func() bool { return s.Output() == "x" }, time.Second, time.Millisecond)

	require.NoError(t, s.Open(sampleOrder))

	assert.Equal(t, StateGenerate, s.State())
	assert.Empty(t, s.Output())
}

func TestSession_OnChange(t *testing.T) {
	var (
		mu     sync.Mutex
		states []State
	)
	s := fastSession(t, &fakeMailer{}, OnChange(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if len(states) == 0 || states[len(states)-1] != snap.State {
			states = append(states, snap.State)
		}
	}))
	require.NoError(t, s.Open(sampleOrder))
	_, err := s.Activate()
	require.NoError(t, err)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateGenerate, StateGenerating, StateRevise}, states)
}

func TestNewFromConfig(t *testing.T) {
	s := NewFromConfig(&fakeMailer{}, Config{UserName: "", Interval: time.Millisecond})
	t.Cleanup(s.Cancel)

	assert.Equal(t, DefaultUserName, s.Snapshot().UserName)
	assert.Equal(t, "CU", s.Snapshot().UserInitials)
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "JD", Initials("Jane Doe"))
	assert.Equal(t, "J", Initials("jane"))
	assert.Equal(t, "MV", Initials("Max von Sydow"))
	assert.Equal(t, "", Initials("  "))
}

func TestRevisionLabel(t *testing.T) {
	assert.Equal(t, "Regenerate", RevisionRegenerate.Label())
	assert.Equal(t, "Make Shorter", RevisionShorter.Label())
	assert.Equal(t, "Make Formal", RevisionFormal.Label())
}

type mailerFunc func(context.Context, relay.MailRequest) error

func (f mailerFunc) SendMail(ctx context.Context, req relay.MailRequest) error {
	return f(ctx, req)
}
