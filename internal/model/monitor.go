package model

// MonitorResponse reports realtime hub health for the monitor endpoint.
type MonitorResponse struct {
	Status      string          `json:"status"`
	Connections ConnectionStats `json:"connections"`
	Users       []UserSessions  `json:"users"`
}

// ConnectionStats summarizes the socket population.
type ConnectionStats struct {
	TotalSessions int `json:"totalSessions"`
	TotalUsers    int `json:"totalUsers"`
}

// UserSessions lists the live sessions of one connected user.
type UserSessions struct {
	UserID    string   `json:"userId"`
	Sessions  int      `json:"sessions"`
	ClientIDs []string `json:"clientIds"`
}
