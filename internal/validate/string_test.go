package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	t.Run("trims whitespace", func(t *testing.T) {
		got, err := String("  hello  ", StringConstraints{TrimSpace: true})
		if err != nil {
			t.Fatalf("String() returned error: %v", err)
		}
		if got != "hello" {
			t.Errorf("String() = %q, want %q", got, "hello")
		}
	})

	t.Run("empty rejected unless allowed", func(t *testing.T) {
		if _, err := String("", StringConstraints{}); !errors.Is(err, ErrEmpty) {
			t.Errorf("error = %v, want ErrEmpty", err)
		}
		if _, err := String("", StringConstraints{AllowEmpty: true}); err != nil {
			t.Errorf("error = %v, want nil with AllowEmpty", err)
		}
	})

	t.Run("length counted in runes", func(t *testing.T) {
		// 4 runes, 12 bytes
		if _, err := String("日本語字", StringConstraints{MaxLength: 4}); err != nil {
			t.Errorf("error = %v, want nil for 4 runes", err)
		}
		if _, err := String("日本語字", StringConstraints{MaxLength: 3}); !errors.Is(err, ErrStringTooLong) {
			t.Errorf("error = %v, want ErrStringTooLong", err)
		}
	})
}

func TestIdentity(t *testing.T) {
	valid := []string{"admin", "alice", "appUser-01", "user@org1.example.com", "Org1.admin"}
	for _, ref := range valid {
		if _, err := Identity(ref); err != nil {
			t.Errorf("Identity(%q) returned error: %v", ref, err)
		}
	}

	invalid := []string{"", "a b", "user/../../etc", "x;drop", strings.Repeat("a", 65)}
	for _, ref := range invalid {
		if _, err := Identity(ref); err == nil {
			t.Errorf("Identity(%q) should fail", ref)
		}
	}
}

func TestPolicyID(t *testing.T) {
	valid := []string{"policy0", "bd7c196f-7c90-4c61-98ab-0c4552b7cf9b", "p_1"}
	for _, id := range valid {
		if _, err := PolicyID(id); err != nil {
			t.Errorf("PolicyID(%q) returned error: %v", id, err)
		}
	}

	invalid := []string{"", "a/b", "a b", "p.1", strings.Repeat("x", 129)}
	for _, id := range invalid {
		if _, err := PolicyID(id); err == nil {
			t.Errorf("PolicyID(%q) should fail", id)
		}
	}
}

func TestField(t *testing.T) {
	if _, err := Field("service-provision"); err != nil {
		t.Errorf("Field() returned error: %v", err)
	}
	if _, err := Field("   "); !errors.Is(err, ErrEmpty) {
		t.Errorf("error = %v, want ErrEmpty for whitespace", err)
	}
	if _, err := Field(strings.Repeat("a", 1025)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("error = %v, want ErrStringTooLong", err)
	}
}
