package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubCompleter struct {
	text  string
	err   error
	calls int
	last  Request
}

func (s *stubCompleter) Complete(_ context.Context, req Request) (string, error) {
	s.calls++
	s.last = req
	return s.text, s.err
}

func TestFallbackBioMentionsInputs(t *testing.T) {
	bio := FallbackBio("Ada", "Engineer", []string{"Python", "Go"})
	for _, want := range []string{"Ada", "Engineer", "Python and Go"} {
		if !strings.Contains(bio, want) {
			t.Fatalf("bio %q missing %q", bio, want)
		}
	}
	if again := FallbackBio("Ada", "Engineer", []string{"Python", "Go"}); again != bio {
		t.Fatal("fallback bio must be deterministic")
	}
}

func TestSkillPhrase(t *testing.T) {
	cases := map[string][]string{
		"various technologies": nil,
		"Go":                   {"Go", " "},
		"Go and SQL":           {"Go", "SQL"},
		"Go, SQL, and Redis":   {"Go", "SQL", "Redis", "Kafka"},
	}
	for want, skills := range cases {
		if got := skillPhrase(skills); got != want {
			t.Errorf("skillPhrase(%v) = %q, want %q", skills, got, want)
		}
	}
}

func TestBioUsesCompletion(t *testing.T) {
	stub := &stubCompleter{text: `"I'm Ada, an engineer who ships."`}
	w := NewBioWriter(stub, nil)
	got := w.Bio(context.Background(), "Ada", "Engineer", []string{"Go"})
	if got != "I'm Ada, an engineer who ships." {
		t.Fatalf("bio = %q", got)
	}
	if stub.last.MaxTokens != 150 || stub.last.Temperature != 0.8 {
		t.Fatalf("unexpected request %+v", stub.last)
	}
}

func TestBioFallsBack(t *testing.T) {
	w := NewBioWriter(&stubCompleter{err: ErrNoCredential}, nil)
	got := w.Bio(context.Background(), "Ada", "Engineer", []string{"Python", "Go"})
	if got != FallbackBio("Ada", "Engineer", []string{"Python", "Go"}) {
		t.Fatalf("bio = %q", got)
	}
}

func TestEnhanceJobDescription(t *testing.T) {
	stub := &stubCompleter{text: "Led a team that cut latency by half."}
	w := NewBioWriter(stub, nil)

	if got := w.EnhanceJobDescription(context.Background(), "Dev", "Acme", "short"); got != "short" {
		t.Fatalf("short description changed to %q", got)
	}
	if stub.calls != 0 {
		t.Fatal("short description must not call the provider")
	}

	desc := "Worked on the backend services for payments"
	if got := w.EnhanceJobDescription(context.Background(), "Dev", "Acme", desc); got != stub.text {
		t.Fatalf("enhanced = %q", got)
	}

	failing := NewBioWriter(&stubCompleter{err: errors.New("boom")}, nil)
	if got := failing.EnhanceJobDescription(context.Background(), "Dev", "Acme", desc); got != desc {
		t.Fatalf("failure should keep original, got %q", got)
	}
}
