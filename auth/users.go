package auth

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type userFileEntry struct {
	Name      string   `yaml:"name"`
	Password  string   `yaml:"password"`
	Superuser bool     `yaml:"superuser"`
	Perms     []string `yaml:"perms"`
}

// LoadUsersFile reads accounts from a YAML file:
//
//	users:
//	  - name: admin
//	    password: secret
//	    superuser: true
//	  - name: viewer
//	    password: secret
//	    perms: [read_road, export_road]
func LoadUsersFile(filename string) (*MemoryAuth, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Users []userFileEntry `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing users file %s", filename)
	}
	a := NewMemoryAuth()
	for _, e := range doc.Users {
		if e.Name == "" {
			return nil, errors.Errorf("users file %s: user without name", filename)
		}
		if _, exists := a.UserByName(e.Name); exists {
			return nil, errors.Errorf("users file %s: duplicate user %q", filename, e.Name)
		}
		u := a.AddUser(e.Name, e.Password)
		u.Superuser = e.Superuser
		a.Grant(e.Name, e.Perms...)
	}
	return a, nil
}
