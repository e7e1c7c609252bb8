// internal/relay/ws_codes.go
package relay

// Custom WebSocket close codes used by the broker.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	NotRegisteredError  = 3001 // First frame was not a register frame.
	IdentityTakenError  = 3002 // Requested identity is held by another client.
)
