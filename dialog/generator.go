package dialog

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// DefaultInterval is the delay between two revealed characters.
const DefaultInterval = 25 * time.Millisecond

type Revision string

const (
	RevisionRegenerate Revision = "regenerate"
	RevisionShorter    Revision = "shorter"
	RevisionFormal     Revision = "formal"
)

// Revisions lists the menu offered in StateRevise.
var Revisions = []Revision{RevisionRegenerate, RevisionShorter, RevisionFormal}

func (r Revision) Label() string {
	switch r {
	case RevisionShorter:
		return "Make Shorter"
	case RevisionFormal:
		return "Make Formal"
	default:
		return "Regenerate"
	}
}

func (r Revision) Valid() bool {
	switch r {
	case RevisionRegenerate, RevisionShorter, RevisionFormal:
		return true
	}
	return false
}

// Prompt is what a Generator drafts from.
type Prompt struct {
	OrderID  string
	Supplier string
	UserName string
	Revision Revision
}

// Generator produces the mail body as a lazy sequence of chunks.
// The sequence must stop once ctx is done.
type Generator interface {
	Stream(ctx context.Context, p Prompt) iter.Seq2[string, error]
}

// Compose returns the inquiry mail for p.
func Compose(p Prompt) string {
	return fmt.Sprintf("Dear %s,\n\n"+
		"I am writing to inquire about the status of Purchase Order #%s.\n\n"+
		"We would like to confirm the expected delivery date for the line items listed in this order. "+
		"Please let us know if there are any delays or updates we should be aware of.\n\n"+
		"Thank you for your prompt assistance.\n\n"+
		"Best regards,\n%s", p.Supplier, p.OrderID, p.UserName)
}

// Template reveals Compose(p) one character per Interval.
// Revisions all produce the same text.
type Template struct {
	Interval time.Duration
}

var _ Generator = Template{}

func (t Template) Stream(ctx context.Context, p Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		interval := t.Interval
		if interval <= 0 {
			interval = DefaultInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for _, r := range Compose(p) {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if !yield(string(r), nil) {
				return
			}
		}
	}
}
