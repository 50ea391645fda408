package devserver

import (
	"sync"

	rtmodel "tenant-portal/internal/realtime/domain/model"
	"tenant-portal/internal/shared/logger"
	"tenant-portal/internal/tenant"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const sendQueueSize = 64

type outbound struct {
	data      []byte
	closeCode int
}

type client struct {
	id     string
	claims *Claims
	path   string
	queue  chan outbound
	done   chan struct{}
}

// Hub tracks realtime subscribers and pushes frames to them
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  logger.Logger
}

// NewHub creates an empty hub
func NewHub(log logger.Logger) *Hub {
	return &Hub{clients: make(map[string]*client), logger: log.WithComponent("hub")}
}

// Count returns the number of connected subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// serve runs one subscriber until the socket closes
func (h *Hub) serve(conn *websocket.Conn, claims *Claims, path string, initial ...[]byte) {
	c := &client{
		id:     uuid.NewString(),
		claims: claims,
		path:   path,
		queue:  make(chan outbound, sendQueueSize),
		done:   make(chan struct{}),
	}
	for _, frame := range initial {
		c.queue <- outbound{data: frame}
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.WithFields(map[string]interface{}{
		"subscriber": c.id,
		"user_id":    claims.UserID,
		"path":       path,
	}).Info("Realtime subscriber connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		close(c.done)
		h.logger.Debugf("Realtime subscriber %s disconnected", c.id)
	}()

	go h.write(conn, c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.logger.Debugf("Ignoring client frame from %s: %s", c.id, data)
	}
}

func (h *Hub) write(conn *websocket.Conn, c *client) {
	for {
		select {
		case <-c.done:
			return
		case out := <-c.queue:
			if out.closeCode != 0 {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(out.closeCode, ""))
				_ = conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, out.data); err != nil {
				h.logger.Warnf("Write to subscriber %s failed: %v", c.id, err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *Hub) send(match func(*client) bool, out outbound) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.queue <- out:
			n++
		default:
			h.logger.Warnf("Subscriber %s queue full, dropping frame", c.id)
		}
	}
	return n
}

// Publish sends an envelope of messageType to matching subscribers
func (h *Hub) Publish(match func(claims *Claims, path string) bool, messageType string, payload interface{}) (int, error) {
	frame, err := rtmodel.Encode(messageType, payload)
	if err != nil {
		return 0, err
	}
	return h.send(func(c *client) bool { return match(c.claims, c.path) }, outbound{data: frame}), nil
}

// PublishToCompany sends to the admin and employee subscribers of companyID
func (h *Hub) PublishToCompany(companyID int64, messageType string, payload interface{}) (int, error) {
	return h.Publish(func(claims *Claims, _ string) bool {
		return claims.CompanyID == companyID && tenant.NormalizeRole(claims.Role) != tenant.RoleSuperAdmin
	}, messageType, payload)
}

// PublishToSuperAdmins sends to the superadmin dashboard subscribers
func (h *Hub) PublishToSuperAdmins(messageType string, payload interface{}) (int, error) {
	return h.Publish(func(claims *Claims, _ string) bool {
		return tenant.NormalizeRole(claims.Role) == tenant.RoleSuperAdmin
	}, messageType, payload)
}

// Disconnect closes the sockets of userID with code, 0 meaning every user
func (h *Hub) Disconnect(userID int64, code int) int {
	return h.send(func(c *client) bool {
		return userID == 0 || c.claims.UserID == userID
	}, outbound{closeCode: code})
}
