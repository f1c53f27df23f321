package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"Meetzy/internal/event"
	"Meetzy/internal/monitoring"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

type clientBucket struct {
	sync.RWMutex
	users map[string]map[string]*Client // userID -> clientID -> client
}

// GroupMemberLookup resolves a group id to its current member ids so group
// publishes can fan out to per-user registries.
type GroupMemberLookup func(ctx context.Context, groupID string) ([]string, error)

// DeliveredHandler is invoked when a session acknowledges delivery of
// messages. Wired by the container to the read-receipt service.
type DeliveredHandler func(ctx context.Context, userID string, messageIDs []string)

// Hub is the realtime notifier: it keeps every connected session in
// per-user registries and pushes engine events to them. Publishing is
// fire-and-forget; a slow or dead session never blocks the caller.
type Hub struct {
	shards     [shardCount]*clientBucket
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	memberLookup GroupMemberLookup
	OnDelivered  DeliveredHandler

	metrics *monitoring.Metrics
	logger  *zap.Logger

	allowedOrigins map[string]struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(memberLookup GroupMemberLookup, metrics *monitoring.Metrics, allowedOrigins []string, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		register:       make(chan *Client, 1024),
		unregister:     make(chan *Client, 1024),
		inbound:        make(chan inboundMessage, 4096), // buffer for burst handling
		memberLookup:   memberLookup,
		metrics:        metrics,
		logger:         logger,
		allowedOrigins: make(map[string]struct{}, len(allowedOrigins)),
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, origin := range allowedOrigins {
		h.allowedOrigins[origin] = struct{}{}
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &clientBucket{
			users: make(map[string]map[string]*Client),
		}
	}

	go h.run()

	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-h.inbound:
					if !ok {
						return
					}
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

// PublishToUser enqueues the event to every session of one user.
func (h *Hub) PublishToUser(userID string, ev event.WsEvent) {
	sh := getShard(userID)
	b := h.shards[sh]

	b.RLock()
	sessions, ok := b.users[userID]
	if !ok || len(sessions) == 0 {
		b.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(sessions))
	for _, c := range sessions {
		clients = append(clients, c)
	}
	b.RUnlock()

	// deliver without holding the lock
	for _, c := range clients {
		if !c.SafeSend(ev, sendTimeout) {
			h.logger.Debug("egress full or client closed, dropping event",
				zap.String("client_id", c.ID),
				zap.String("user_id", userID),
				zap.String("event", ev.Event),
			)
		}
	}
}

// PublishToGroup fans the event out to every current member of the group.
func (h *Hub) PublishToGroup(groupID string, ev event.WsEvent) {
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()

	members, err := h.memberLookup(ctx, groupID)
	if err != nil {
		h.logger.Warn("group member lookup failed",
			zap.String("group_id", groupID),
			zap.Error(err),
		)
		return
	}
	for _, userID := range members {
		h.PublishToUser(userID, ev)
	}
}

func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventTyping:
		var typing event.TypingPayload
		if err := json.Unmarshal(ev.Payload, &typing); err != nil {
			h.logger.Debug("malformed typing payload", zap.Error(err))
			return
		}
		typing.UserID = c.userID
		h.relayToConversation(typing.ConversationKey, c.userID, event.New(event.EventTyping, typing))
	case event.EventDelivered:
		if h.OnDelivered == nil {
			return
		}
		var ack event.DeliveredPayload
		if err := json.Unmarshal(ev.Payload, &ack); err != nil {
			h.logger.Debug("malformed delivered payload", zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
		defer cancel()
		h.OnDelivered(ctx, c.userID, ack.MessageIDs)
	default:
		h.logger.Debug("unknown inbound event", zap.String("event", ev.Event))
	}
}

// relayToConversation routes a session-originated event to the other
// parties of a conversation key ("direct:a:b" or "group:gid").
func (h *Hub) relayToConversation(conversationKey, fromUserID string, ev event.WsEvent) {
	parts := strings.SplitN(conversationKey, ":", 3)
	switch {
	case len(parts) == 3 && parts[0] == "direct":
		for _, userID := range parts[1:] {
			if userID != fromUserID {
				h.PublishToUser(userID, ev)
			}
		}
	case len(parts) >= 2 && parts[0] == "group":
		h.PublishToGroup(parts[1], ev)
	}
}

func getShard(userID string) uint32 {
	if userID == "" {
		return 0
	}
	sum := sha1.Sum([]byte(userID))
	return binary.BigEndian.Uint32(sum[:4]) % shardCount
}

func (h *Hub) addClient(c *Client) {
	sh := getShard(c.userID)
	b := h.shards[sh]
	b.Lock()
	defer b.Unlock()

	sessions, ok := b.users[c.userID]
	if !ok {
		sessions = make(map[string]*Client)
		b.users[c.userID] = sessions
	}
	sessions[c.ID] = c

	h.metrics.WsConnections.Inc()
	h.logger.Debug("client registered",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.userID),
		zap.Uint32("shard", sh),
	)
}

func (h *Hub) removeClient(c *Client) {
	sh := getShard(c.userID)
	b := h.shards[sh]
	b.Lock()
	defer b.Unlock()

	if sessions, ok := b.users[c.userID]; ok {
		if _, exists := sessions[c.ID]; exists {
			delete(sessions, c.ID)
			h.metrics.WsConnections.Dec()
		}
		if len(sessions) == 0 {
			delete(b.users, c.userID)
		}
		c.Close()
		h.logger.Debug("client removed",
			zap.String("client_id", c.ID),
			zap.String("user_id", c.userID),
		)
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()

	for _, shard := range h.shards {
		shard.RLock()
		for _, sessions := range shard.users {
			for _, client := range sessions {
				client.Close()
			}
		}
		shard.RUnlock()
	}

	close(h.inbound)
	h.wg.Wait()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, ok := h.allowedOrigins[origin]
	return ok
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	RegisterClient(userID, conn, h)
}
