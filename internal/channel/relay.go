package channel

// RelayServer is one rendezvous-assist or relay candidate, ICE-server shaped.
type RelayServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// Credentialed reports whether the entry carries a user/credential pair.
func (s RelayServer) Credentialed() bool {
	return s.Username != "" && s.Credential != ""
}

// RelayConfig is the ordered candidate list handed to the substrate.
// Earlier entries have higher priority.
type RelayConfig struct {
	Servers []RelayServer `json:"servers"`
}

// DefaultRelays returns the public STUN list used when no credentials are stored.
func DefaultRelays() RelayConfig {
	return RelayConfig{Servers: []RelayServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun1.l.google.com:19302"}},
		{URLs: []string{"stun:stun2.l.google.com:19302"}},
		{URLs: []string{"stun:stun3.l.google.com:19302"}},
		{URLs: []string{"stun:stun4.l.google.com:19302"}},
	}}
}
