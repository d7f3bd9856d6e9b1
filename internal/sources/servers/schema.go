package servers

// File is the on-disk shape of the monitored server list.
type File struct {
	Servers []Server `yaml:"servers"`
}

// Server describes one monitored game server.
type Server struct {
	// ID is the stable identifier used in store keys and API paths.
	ID string `yaml:"id"`

	// RconAddr is the webrcon endpoint, "host:port".
	RconAddr string `yaml:"rcon_addr"`

	// RconPassword authenticates the webrcon connection.
	RconPassword string `yaml:"rcon_password"`

	// Optional per-server default zone colors ("r,g,b"), applied when
	// a creation request omits them.
	ColorOnline  string `yaml:"color_online,omitempty"`
	ColorOffline string `yaml:"color_offline,omitempty"`
}
