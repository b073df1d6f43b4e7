package model

// RoomMember describes one connection of a room in presence payloads.
type RoomMember struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId,omitempty"`
}

// RoomJoinedPayload is sent to existing members when a connection joins.
type RoomJoinedPayload struct {
	RoomID       string       `json:"roomId"`
	UserID       string       `json:"userId,omitempty"`
	ConnectionID string       `json:"connectionId"`
	Members      []RoomMember `json:"members"`
}

// RoomReadyPayload is sent to every member once the room reaches its readiness threshold.
type RoomReadyPayload struct {
	RoomID  string       `json:"roomId"`
	Members []RoomMember `json:"members"`
}

// RoomLeftPayload is sent to the remaining members when a connection leaves.
type RoomLeftPayload struct {
	RoomID       string       `json:"roomId"`
	UserID       string       `json:"userId,omitempty"`
	ConnectionID string       `json:"connectionId"`
	Members      []RoomMember `json:"members"`
}

// PrimaryUser returns the first identity bound to conn, empty when anonymous.
func PrimaryUser(conn Connector) UserID {
	if conn == nil {
		return ""
	}
	if users := conn.Users(); len(users) > 0 {
		return users[0]
	}
	return ""
}

// Members converts connections into their presence view.
func Members(conns []Connector) []RoomMember {
	res := make([]RoomMember, 0, len(conns))
	for _, c := range conns {
		res = append(res, RoomMember{
			ConnectionID: c.GetID().String(),
			UserID:       string(PrimaryUser(c)),
		})
	}
	return res
}
