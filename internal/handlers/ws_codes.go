// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used within the party handlers. These provide
// more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	InvalidLobbyIDError   = 3002 // Target lobby ID in the WS URL does not exist or is malformed.
	DuplicateSessionError = 3003 // Player already has an active session from another client.
	KickedError           = 3004 // Player was removed from the lobby by the host.
)
