package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hochfrequenz/revdep-regress/internal/domain"
)

func TestSlackMessage_Build(t *testing.T) {
	msg := SlackMessage{
		Text: "mylib: 1 regressed",
		Attachments: []SlackAttachment{
			{
				Color: "danger",
				Title: "mylib",
				Text:  "3 reverse deps",
			},
		},
	}

	payload, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	if len(payload) == 0 {
		t.Error("Payload should not be empty")
	}
}

func TestSlackNotifier_Send(t *testing.T) {
	var got SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:     "mylib: 1 regressed",
		Message:   "3 reverse deps",
		Type:      NotifyError,
		CrateName: "mylib",
		RunID:     "run-1",
		Counts:    []Count{{Label: "pass", Value: 2}, {Label: "regressed", Value: 1}},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got.Text != "mylib: 1 regressed" {
		t.Errorf("Text = %q", got.Text)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(got.Attachments))
	}
	a := got.Attachments[0]
	if a.Color != "danger" || a.Title != "mylib" || a.Footer != "revdep-regress run run-1" {
		t.Errorf("unexpected attachment %+v", a)
	}
	wantFields := []SlackField{
		{Title: "pass", Value: "2", Short: true},
		{Title: "regressed", Value: "1", Short: true},
	}
	if diff := cmp.Diff(wantFields, a.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSlackMessage_WithoutReferences(t *testing.T) {
	msg := NewSlackMessage(Notification{Title: "hello", Message: "body", Type: NotifyInfo})

	a := msg.Attachments[0]
	if a.Title != "" || a.Footer != "revdep-regress" || len(a.Fields) != 0 {
		t.Errorf("unexpected attachment %+v", a)
	}
	if a.Color != "#439FE0" {
		t.Errorf("Color = %q", a.Color)
	}
}

func TestSlackNotifier_SendNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if err := NewSlackNotifier(server.URL).Send(Notification{Title: "x"}); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestSlackNotifier_DisabledWithoutWebhook(t *testing.T) {
	if err := NewSlackNotifier("").Send(Notification{Title: "x"}); err != nil {
		t.Errorf("disabled notifier returned %v", err)
	}
}

func TestNotificationTypeColors(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "good"},
		{NotifyWarning, "warning"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}

	for _, tt := range tests {
		got := SlackColor(tt.typ)
		if got != tt.want {
			t.Errorf("SlackColor(%v) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestIconForType(t *testing.T) {
	if IconForType(NotifyError) != "dialog-error" {
		t.Errorf("got %q", IconForType(NotifyError))
	}
	if IconForType(NotifyInfo) != "dialog-information" {
		t.Errorf("got %q", IconForType(NotifyInfo))
	}
}

func TestAppleScriptQuote(t *testing.T) {
	got := appleScriptQuote(`say "hi" \ bye`)
	want := `say \"hi\" \\ bye`
	if got != want {
		t.Errorf("appleScriptQuote = %q, want %q", got, want)
	}
}

func TestMultiNotifier(t *testing.T) {
	var called []string

	mock1 := &mockNotifier{name: "mock1", calls: &called}
	mock2 := &mockNotifier{name: "mock2", calls: &called, err: errors.New("down")}

	multi := NewMultiNotifier(mock1, mock2)
	err := multi.Send(Notification{Title: "Test"})

	if len(called) != 2 {
		t.Errorf("Expected 2 calls, got %d", len(called))
	}
	if err == nil {
		t.Error("expected the failing notifier's error")
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(false, "").(NoopNotifier); !ok {
		t.Error("no channels should give a NoopNotifier")
	}
	if _, ok := New(false, "https://hooks.example.com").(*SlackNotifier); !ok {
		t.Error("webhook only should give a SlackNotifier")
	}
	if _, ok := New(true, "https://hooks.example.com").(*MultiNotifier); !ok {
		t.Error("two channels should give a MultiNotifier")
	}
}

func TestRunFinished(t *testing.T) {
	tests := []struct {
		name      string
		sum       domain.Summary
		wantType  NotificationType
		wantTitle string
	}{
		{"clean", domain.Summary{Total: 2, Pass: 2}, NotifySuccess, "mylib: no regressions"},
		{"broken only", domain.Summary{Total: 2, Pass: 1, Broken: 1}, NotifyWarning, "mylib: no regressions"},
		{"errored only", domain.Summary{Total: 1, Errored: 1}, NotifyWarning, "mylib: no regressions"},
		{"regressed", domain.Summary{Total: 3, Pass: 1, Regressed: 2}, NotifyError, "mylib: 2 regressed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := RunFinished("mylib", "run-1", tt.sum, 90*time.Second)
			if n.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", n.Type, tt.wantType)
			}
			if n.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", n.Title, tt.wantTitle)
			}
			if !strings.Contains(n.Message, "in 1m30s") {
				t.Errorf("Message = %q, want elapsed time", n.Message)
			}
			if n.RunID != "run-1" || n.CrateName != "mylib" {
				t.Errorf("references not set: %+v", n)
			}
			if len(n.Counts) != 4 || n.Counts[1].Label != "regressed" || n.Counts[1].Value != tt.sum.Regressed {
				t.Errorf("Counts = %+v", n.Counts)
			}
		})
	}
}

type mockNotifier struct {
	name  string
	calls *[]string
	err   error
}

func (m *mockNotifier) Send(n Notification) error {
	*m.calls = append(*m.calls, m.name)
	return m.err
}
