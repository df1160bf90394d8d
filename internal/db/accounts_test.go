package db

import "testing"

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		role   Role
		action string
		want   bool
	}{
		{RoleReader, "read", true},
		{RoleReader, "publish", false},
		{RoleReader, "admin", false},
		{RolePublisher, "read", true},
		{RolePublisher, "publish", true},
		{RolePublisher, "admin", false},
		{RoleAdmin, "read", true},
		{RoleAdmin, "publish", true},
		{RoleAdmin, "admin", true},
		{RoleReader, "delete-everything", false},
		{Role("bogus"), "read", false},
	}

	for _, tt := range tests {
		if got := tt.role.Allows(tt.action); got != tt.want {
			t.Errorf("%s.Allows(%q) = %v, want %v", tt.role, tt.action, got, tt.want)
		}
	}
}

func TestRoleScan(t *testing.T) {
	var r Role
	if err := r.Scan("publisher"); err != nil {
		t.Fatalf("Scan(string): %v", err)
	}
	if r != RolePublisher {
		t.Errorf("scanned %q, want %q", r, RolePublisher)
	}

	if err := r.Scan([]byte("admin")); err != nil {
		t.Fatalf("Scan([]byte): %v", err)
	}
	if r != RoleAdmin {
		t.Errorf("scanned %q, want %q", r, RoleAdmin)
	}

	// NULL role falls back to reader.
	if err := r.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if r != RoleReader {
		t.Errorf("scanned %q, want %q", r, RoleReader)
	}

	if err := r.Scan(42); err == nil {
		t.Error("Scan(int) succeeded, want error")
	}
}

func TestRoleValue(t *testing.T) {
	v, err := RolePublisher.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "publisher" {
		t.Errorf("Value() = %v, want %q", v, "publisher")
	}
}
