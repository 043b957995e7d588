package model

import (
	"testing"
	"time"
)

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	margin := time.Minute

	cases := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"zero expiry", time.Time{}, true},
		{"already expired", now.Add(-time.Hour), true},
		{"inside margin", now.Add(30 * time.Second), true},
		{"comfortably valid", now.Add(time.Hour), false},
	}
	for _, tc := range cases {
		cred := &Credential{Expiry: tc.expiry}
		if got := cred.ExpiresWithin(margin, now); got != tc.want {
			t.Errorf("%s: ExpiresWithin = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTokenCarriesRefreshToken(t *testing.T) {
	cred := &Credential{AccessToken: "at", RefreshToken: "rt"}
	tok := cred.Token()
	if tok.AccessToken != "at" || tok.RefreshToken != "rt" || tok.TokenType != "Bearer" {
		t.Fatalf("token = %+v", tok)
	}
}
