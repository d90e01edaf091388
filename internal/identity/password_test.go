package identity

import (
	"errors"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		pw   string
		ok   bool
	}{
		{name: "valid", pw: "Password123", ok: true},
		{name: "minimum length", pw: "Aa345678", ok: true},
		{name: "too short", pw: "Pw1", ok: false},
		{name: "no uppercase", pw: "password123", ok: false},
		{name: "no lowercase", pw: "PASSWORD123", ok: false},
		{name: "no digit", pw: "PasswordABC", ok: false},
		{name: "empty", pw: "", ok: false},
		{name: "unicode letters count", pw: "Šifra1234", ok: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.pw)
			if tt.ok && err != nil {
				t.Fatalf("ValidatePassword(%q) = %v, want nil", tt.pw, err)
			}
			if !tt.ok && !errors.Is(err, ErrWeakPassword) {
				t.Fatalf("ValidatePassword(%q) = %v, want ErrWeakPassword", tt.pw, err)
			}
		})
	}
}
