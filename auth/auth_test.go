package auth

import (
	"testing"
)

func TestHasPerm(t *testing.T) {
	editor := &User{Name: "editor", Perms: map[string]bool{
		"read_road":   true,
		"change_road": true,
	}}
	admin := &User{Name: "admin", Superuser: true}
	internal := InternalUser("__internal__")
	var anonymous *User

	tests := []struct {
		user     *User
		codename string
		expected bool
	}{
		{editor, "read_road", true},
		{editor, "change_road", true},
		{editor, "delete_road", false},
		{editor, "read_signpost", false},
		{admin, "read_road", true},
		{admin, "delete_road", true},
		{internal, "read_road", true},
		{internal, "export_road", true},
		{internal, "change_road", false},
		{internal, "delete_road", false},
		{anonymous, "read_road", false},
	}

	for _, test := range tests {
		if got := test.user.HasPerm(test.codename); got != test.expected {
			t.Errorf("%v.HasPerm(%q): %v != %v", test.user, test.codename, got, test.expected)
		}
	}
}

func TestIsAnonymous(t *testing.T) {
	var nilUser *User
	if !nilUser.IsAnonymous() {
		t.Error("nil user not anonymous")
	}
	if (&User{}).IsAnonymous() != true {
		t.Error("unnamed user not anonymous")
	}
	if (&User{Name: "editor"}).IsAnonymous() {
		t.Error("named user anonymous")
	}
}

func TestMemoryAuth(t *testing.T) {
	a := NewMemoryAuth()
	a.AddUser("editor", "secret")
	a.Grant("editor", "read_road", "change_road")

	u, err := a.Authenticate("editor", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if !u.HasPerm("read_road") || !u.HasPerm("change_road") {
		t.Errorf("perms missing: %v", u.Perms)
	}

	if _, err := a.Authenticate("editor", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Authenticate("ghost", "secret"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, ok := a.UserByName("editor"); !ok {
		t.Error("user lookup failed")
	}
	if _, ok := a.UserByName("ghost"); ok {
		t.Error("unknown user found")
	}

	// granting to unknown users is a no-op
	a.Grant("ghost", "read_road")
}
