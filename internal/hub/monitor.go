package hub

import (
	"sort"

	"Meetzy/internal/model"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	users := ms.getUserSessions()

	stats := model.ConnectionStats{
		TotalUsers: len(users),
	}
	for _, u := range users {
		stats.TotalSessions += u.Sessions
	}

	status := "healthy"
	if stats.TotalSessions == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: stats,
		Users:       users,
	}
}

func (ms *MonitorService) getUserSessions() []model.UserSessions {
	users := make([]model.UserSessions, 0)

	for _, bucket := range ms.hub.shards {
		bucket.RLock()
		for userID, sessions := range bucket.users {
			clientIDs := make([]string, 0, len(sessions))
			for clientID := range sessions {
				clientIDs = append(clientIDs, clientID)
			}
			sort.Strings(clientIDs)
			users = append(users, model.UserSessions{
				UserID:    userID,
				Sessions:  len(sessions),
				ClientIDs: clientIDs,
			})
		}
		bucket.RUnlock()
	}

	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}
