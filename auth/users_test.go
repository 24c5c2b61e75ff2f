package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func writeUsersFile(t *testing.T, content string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "users.yml")
	if err := os.WriteFile(fname, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return fname
}

func TestLoadUsersFile(t *testing.T) {
	fname := writeUsersFile(t, `
users:
  - name: admin
    password: topsecret
    superuser: true
  - name: viewer
    password: secret
    perms: [read_road, export_road]
`)
	a, err := LoadUsersFile(fname)
	if err != nil {
		t.Fatal(err)
	}

	admin, err := a.Authenticate("admin", "topsecret")
	if err != nil {
		t.Fatal(err)
	}
	if !admin.Superuser {
		t.Error("admin not superuser")
	}
	if !admin.HasPerm("delete_road") {
		t.Error("superuser misses permission")
	}

	viewer, err := a.Authenticate("viewer", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if viewer.Superuser {
		t.Error("viewer is superuser")
	}
	if !viewer.HasPerm("read_road") || !viewer.HasPerm("export_road") {
		t.Errorf("perms missing: %v", viewer.Perms)
	}
	if viewer.HasPerm("change_road") {
		t.Error("viewer has write permission")
	}
}

func TestLoadUsersFileErrors(t *testing.T) {
	if _, err := LoadUsersFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("missing file not reported")
	}

	fname := writeUsersFile(t, "users: [{password: secret}]")
	if _, err := LoadUsersFile(fname); err == nil {
		t.Error("user without name not reported")
	}

	fname = writeUsersFile(t, `
users:
  - name: admin
    password: a
  - name: admin
    password: b
`)
	if _, err := LoadUsersFile(fname); err == nil {
		t.Error("duplicate user not reported")
	}

	fname = writeUsersFile(t, "users: {broken")
	if _, err := LoadUsersFile(fname); err == nil {
		t.Error("invalid yaml not reported")
	}
}
