package testutil

import (
	"strconv"

	"github.com/thruflo/serverboard/internal/servers"
)

// Credentials accepted by the stub API.
const (
	TestUsername = "testuser"
	TestPassword = "testpassword"
	TestToken    = "test-token"
)

// InvalidCredentialsMessage is the message the stub API returns for a bad
// username or password.
const InvalidCredentialsMessage = "Invalid credentials"

// SampleServersJSON is SampleServers as the API serves it.
const SampleServersJSON = `[
  {"name": "Germany #11", "distance": 10},
  {"name": "Germany #2", "distance": 20},
  {"name": "France #1", "distance": 5},
  {"name": "France #2", "distance": 15}
]`

// SampleServers returns a new slice each time to prevent test interference.
func SampleServers() []servers.Server {
	return []servers.Server{
		{Name: "Germany #11", Distance: 10},
		{Name: "Germany #2", Distance: 20},
		{Name: "France #1", Distance: 5},
		{Name: "France #2", Distance: 15},
	}
}

// SampleServersByNameAsc is SampleServers sorted by name ascending.
func SampleServersByNameAsc() []string {
	return []string{"France #1", "France #2", "Germany #2", "Germany #11"}
}

// LargeServerList returns a list with repeated groups and distances, useful
// for stability checks.
func LargeServerList() []servers.Server {
	groups := []string{"Latvia", "Lithuania", "United States", "Japan"}
	var out []servers.Server
	for i := 0; i < 40; i++ {
		out = append(out, servers.Server{
			Name:     groups[i%len(groups)] + " #" + strconv.Itoa(40-i),
			Distance: float64((i * 7) % 11),
		})
	}
	return out
}
