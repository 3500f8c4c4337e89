// Package notify announces finished regression runs.
package notify

import (
	"fmt"
	"time"

	"github.com/hochfrequenz/revdep-regress/internal/domain"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title     string
	Message   string
	Type      NotificationType
	CrateName string  // Optional library reference
	RunID     string  // Optional history reference
	Counts    []Count // Optional per-verdict tallies
}

// Count is one labeled tally shown alongside a notification
type Count struct {
	Label string
	Value int
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// New returns a notifier for the enabled channels, or a NoopNotifier when
// none is enabled.
func New(desktop bool, slackWebhook string) Notifier {
	var notifiers []Notifier
	if desktop {
		notifiers = append(notifiers, NewDesktopNotifier(true))
	}
	if slackWebhook != "" {
		notifiers = append(notifiers, NewSlackNotifier(slackWebhook))
	}
	switch len(notifiers) {
	case 0:
		return NoopNotifier{}
	case 1:
		return notifiers[0]
	default:
		return NewMultiNotifier(notifiers...)
	}
}

// RunFinished builds the end-of-run notification. Regressions make it an
// error; broken or errored packages alone make it a warning.
func RunFinished(crateName, runID string, sum domain.Summary, elapsed time.Duration) Notification {
	typ := NotifySuccess
	switch {
	case sum.Regressed > 0:
		typ = NotifyError
	case sum.Broken > 0 || sum.Errored > 0:
		typ = NotifyWarning
	}

	title := fmt.Sprintf("%s: no regressions", crateName)
	if sum.Regressed > 0 {
		title = fmt.Sprintf("%s: %d regressed", crateName, sum.Regressed)
	}

	return Notification{
		Title: title,
		Message: fmt.Sprintf("%d reverse deps in %s: %d pass, %d regressed, %d broken, %d error",
			sum.Total, elapsed.Round(time.Second), sum.Pass, sum.Regressed, sum.Broken, sum.Errored),
		Type:      typ,
		CrateName: crateName,
		RunID:     runID,
		Counts: []Count{
			{Label: string(domain.VerdictPass), Value: sum.Pass},
			{Label: string(domain.VerdictRegressed), Value: sum.Regressed},
			{Label: string(domain.VerdictBroken), Value: sum.Broken},
			{Label: string(domain.VerdictError), Value: sum.Errored},
		},
	}
}
