package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

func TestIssueParseRoundtrip(t *testing.T) {
	m := NewManager("secret", time.Hour)
	want := models.Principal{UserID: "u1", Name: "Asha", Role: models.RoleDriver}
	token, err := m.Issue(want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Parse(token)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _ := NewManager("secret-a", time.Hour).Issue(models.Principal{UserID: "u1", Role: models.RoleRider})
	if _, err := NewManager("secret-b", time.Hour).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager("secret", -time.Minute)
	token, _ := m.Issue(models.Principal{UserID: "u1", Role: models.RoleRider})
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsUnknownRole(t *testing.T) {
	m := NewManager("secret", time.Hour)
	token, _ := m.Issue(models.Principal{UserID: "u1", Role: models.Role("pilot")})
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
