package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/thruflo/serverboard/internal/auth"
	"github.com/thruflo/serverboard/internal/servers"
)

// User is an account the stub API accepts.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

type serversFile struct {
	Servers []serverEntry `yaml:"servers"`
}

type serverEntry struct {
	Name     string  `yaml:"name"`
	Distance float64 `yaml:"distance"`
}

// Demo account created when no users file is configured.
const (
	DemoUsername = "testuser"
	DemoPassword = "testpassword"
)

// LoadUsers reads a users file:
//
//	users:
//	  - username: tesonet
//	    password_hash: $argon2id$v=19$m=65536,t=3,p=4$...
//
// An empty path yields the demo account.
func LoadUsers(path string) ([]User, error) {
	if path == "" {
		return DemoUsers()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	if len(f.Users) == 0 {
		return nil, fmt.Errorf("users file %s defines no users", path)
	}

	seen := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("users[%d]: username is required", i)
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("users[%d]: password_hash is required", i)
		}
		if seen[u.Username] {
			return nil, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = true
	}
	return f.Users, nil
}

// DemoUsers returns the demo account with a freshly hashed password.
func DemoUsers() ([]User, error) {
	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return nil, err
	}
	return []User{{Username: DemoUsername, PasswordHash: hash}}, nil
}

// LoadServers reads a servers file:
//
//	servers:
//	  - name: "Latvia #1"
//	    distance: 402
//
// An empty path yields DemoServers.
func LoadServers(path string) ([]servers.Server, error) {
	if path == "" {
		return DemoServers(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read servers file: %w", err)
	}

	var f serversFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse servers file: %w", err)
	}

	list := make([]servers.Server, 0, len(f.Servers))
	for i, s := range f.Servers {
		if s.Name == "" {
			return nil, fmt.Errorf("servers[%d]: name is required", i)
		}
		if s.Distance < 0 {
			return nil, fmt.Errorf("servers[%d]: distance must not be negative", i)
		}
		list = append(list, servers.Server{Name: s.Name, Distance: s.Distance})
	}
	return list, nil
}

// DemoServers returns a list shaped like the playground's.
func DemoServers() []servers.Server {
	return []servers.Server{
		{Name: "Canada #10", Distance: 1383},
		{Name: "Latvia #1", Distance: 402},
		{Name: "Japan #9", Distance: 1788},
		{Name: "Germany #11", Distance: 845},
		{Name: "United States #84", Distance: 1565},
		{Name: "Lithuania #2", Distance: 212},
		{Name: "Germany #2", Distance: 1127},
		{Name: "France #1", Distance: 990},
		{Name: "Latvia #23", Distance: 402},
		{Name: "Netherlands #46", Distance: 1431},
		{Name: "United Kingdom #6", Distance: 608},
		{Name: "Japan #3", Distance: 1296},
		{Name: "France #2", Distance: 1518},
		{Name: "Canada #3", Distance: 1701},
		{Name: "Lithuania #12", Distance: 35},
		{Name: "United States #3", Distance: 1843},
	}
}
