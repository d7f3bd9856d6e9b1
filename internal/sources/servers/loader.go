package servers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads and validates the server list file.
type Loader struct {
	path string
}

// NewLoader creates a loader for the given file path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load parses the server list. At least one server is required; IDs
// must be unique since they key store records and schedulers.
func (l *Loader) Load() ([]Server, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read servers file %s: %w", l.path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse servers file %s: %w", l.path, err)
	}

	if len(file.Servers) == 0 {
		return nil, fmt.Errorf("servers file %s lists no servers", l.path)
	}

	seen := make(map[string]bool, len(file.Servers))
	for i, srv := range file.Servers {
		if srv.ID == "" {
			return nil, fmt.Errorf("server %d: id is required", i)
		}
		if srv.RconAddr == "" {
			return nil, fmt.Errorf("server %q: rcon_addr is required", srv.ID)
		}
		if srv.RconPassword == "" {
			return nil, fmt.Errorf("server %q: rcon_password is required", srv.ID)
		}
		if seen[srv.ID] {
			return nil, fmt.Errorf("duplicate server id %q", srv.ID)
		}
		seen[srv.ID] = true
	}

	return file.Servers, nil
}
