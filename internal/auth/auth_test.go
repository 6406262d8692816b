package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSessionRoundTrip(t *testing.T) {
	svc, err := NewSessionService("secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, issued, err := svc.Issue(42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != 42 || claims.ID != issued.ID || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestSessionRejectsForeignAndExpired(t *testing.T) {
	svc, _ := NewSessionService("secret", time.Hour)
	other, _ := NewSessionService("other-secret", time.Hour)

	token, _, err := other.Issue(1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Parse(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for foreign key, got %v", err)
	}

	token, _, err = svc.Issue(1)
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Parse(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for expired token, got %v", err)
	}
	if _, err := svc.Parse(""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for empty token, got %v", err)
	}
}

func TestNewSessionServiceRequiresSecret(t *testing.T) {
	if _, err := NewSessionService("", time.Hour); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Secret123")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPasswordHash("Secret123", hash) || CheckPasswordHash("secret123", hash) {
		t.Fatal("hash check mismatch")
	}
}

func TestCheckPasswordStrength(t *testing.T) {
	for pw, ok := range map[string]bool{
		"Secret123": true,
		"short1A":   false,
		"alllower1": false,
		"ALLUPPER1": false,
		"NoDigitsX": false,
	} {
		if err := CheckPasswordStrength(pw); (err == nil) != ok {
			t.Errorf("CheckPasswordStrength(%q) = %v, want ok=%v", pw, err, ok)
		}
	}
}

func TestRegistrationValidate(t *testing.T) {
	r := Registration{
		FirstName:       " Ada ",
		LastName:        "Lovelace",
		Email:           " Ada@Example.com ",
		Password:        "Secret123",
		ConfirmPassword: "Secret123",
	}
	r.Normalize()
	if errs := r.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	if r.Username() != "ada.lovelace" {
		t.Fatalf("username = %q", r.Username())
	}

	bad := r
	bad.Email = "ada'--@example.com"
	bad.ConfirmPassword = "Secret124"
	bad.FirstName = "A"
	if errs := bad.Validate(); len(errs) != 3 {
		t.Fatalf("errors = %v, want 3", errs)
	}
}

func TestRegistrationValidateMessages(t *testing.T) {
	base := Registration{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Password:        "Secret123",
		ConfirmPassword: "Secret123",
	}
	cases := map[string]struct {
		mutate func(r *Registration)
		want   string
	}{
		"long last name":  {func(r *Registration) { r.LastName = strings.Repeat("x", 31) }, "Last name must be between 2 and 30 characters."},
		"sql comment":     {func(r *Registration) { r.Email = "ada/*x*/@example.com" }, "Please enter a valid email address."},
		"not an address":  {func(r *Registration) { r.Email = "ada.example.com" }, "Please enter a valid email address."},
		"weak password":   {func(r *Registration) { r.Password, r.ConfirmPassword = "secret123", "secret123" }, "Password must be at least 8 characters and include uppercase, lowercase and a digit."},
		"short password":  {func(r *Registration) { r.Password, r.ConfirmPassword = "Sec1", "Sec1" }, "Password must be at least 8 characters and include uppercase, lowercase and a digit."},
		"missing confirm": {func(r *Registration) { r.ConfirmPassword = "" }, "Passwords must match."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := base
			tc.mutate(&r)
			errs := r.Validate()
			if len(errs) != 1 || errs[0] != tc.want {
				t.Fatalf("errors = %v, want [%s]", errs, tc.want)
			}
		})
	}
}

func TestValidationMessagesNonValidationError(t *testing.T) {
	if got := ValidationMessages(nil); got != nil {
		t.Fatalf("nil error gave %v", got)
	}
	got := ValidationMessages(errors.New("EOF"))
	if len(got) != 1 || got[0] != "The form could not be read. Please try again." {
		t.Fatalf("unexpected messages %v", got)
	}
}
