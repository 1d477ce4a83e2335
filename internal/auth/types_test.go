package auth

import (
	"errors"
	"testing"
)

func TestRole_Rank(t *testing.T) {
	tests := []struct {
		role Role
		want int
	}{
		{RoleViewer, 1},
		{RoleOperator, 2},
		{RoleAdmin, 3},
		{Role("superuser"), 0},
		{Role(""), 0},
	}

	for _, tt := range tests {
		if got := tt.role.Rank(); got != tt.want {
			t.Errorf("Role(%q).Rank() = %d, want %d", tt.role, got, tt.want)
		}
	}
}

func TestRole_AtLeast(t *testing.T) {
	tests := []struct {
		name string
		role Role
		min  Role
		want bool
	}{
		{"admin passes operator check", RoleAdmin, RoleOperator, true},
		{"admin passes viewer check", RoleAdmin, RoleViewer, true},
		{"operator passes viewer check", RoleOperator, RoleViewer, true},
		{"operator fails admin check", RoleOperator, RoleAdmin, false},
		{"viewer fails operator check", RoleViewer, RoleOperator, false},
		{"exact match passes", RoleOperator, RoleOperator, true},
		{"unknown role fails every check", Role("root"), RoleViewer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.AtLeast(tt.min); got != tt.want {
				t.Errorf("Role(%q).AtLeast(%q) = %v, want %v", tt.role, tt.min, got, tt.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"Operator", RoleOperator, false},
		{"  VIEWER  ", RoleViewer, false},
		{"owner", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRole) {
				t.Errorf("ParseRole(%q) error = %v, want ErrInvalidRole", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"ana", "jan_kowalski", "Ops-Desk", "m.nowak", "  admin  "}
	for _, u := range valid {
		if err := ValidateUsername(u); err != nil {
			t.Errorf("ValidateUsername(%q) = %v, want nil", u, err)
		}
	}

	invalid := []string{"", "ab", "1admin", "_lead", "with space", "über"}
	for _, u := range invalid {
		if err := ValidateUsername(u); !errors.Is(err, ErrUsernameFormat) {
			t.Errorf("ValidateUsername(%q) = %v, want ErrUsernameFormat", u, err)
		}
	}
}

func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  Admin "); got != "admin" {
		t.Errorf("NormalizeUsername() = %q, want %q", got, "admin")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("ValidatePassword(short) = %v, want ErrWeakPassword", err)
	}
	if err := ValidatePassword("long-enough"); err != nil {
		t.Errorf("ValidatePassword(long) = %v, want nil", err)
	}
}
