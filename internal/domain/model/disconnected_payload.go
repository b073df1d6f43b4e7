package model

// DisconnectedPayload represents the notification sent before the server closes the socket.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"` // Optional: "SHUTDOWN", "CLIENT_REQUEST"
}

// ErrorPayload is the client-visible shape of a rejected inbound event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
