package model

import "time"

type HubStats struct {
	TotalUsers       int           `json:"total_users"`
	TotalConnections int           `json:"total_connections"`
	TotalRooms       int           `json:"total_rooms"`
	TrackedCalls     int           `json:"tracked_calls"`
	DroppedEvents    uint64        `json:"dropped_events"`
	Uptime           time.Duration `json:"uptime"`
}
