package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
)

// Subscriber is one websocket connection following a render job
type Subscriber struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans render progress out to the subscribers of each job
type Hub struct {
	subscribers map[string]map[*Subscriber]bool

	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan *jobMessage

	mu sync.RWMutex
}

type jobMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan *jobMessage, sendBuffer),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if h.subscribers[sub.JobID] == nil {
				h.subscribers[sub.JobID] = make(map[*Subscriber]bool)
			}
			h.subscribers[sub.JobID][sub] = true
			h.mu.Unlock()
			log.Printf("Subscriber registered for job %s", sub.JobID)

		case sub := <-h.unregister:
			h.mu.Lock()
			h.remove(sub)
			h.mu.Unlock()
			log.Printf("Subscriber unregistered from job %s", sub.JobID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for sub := range h.subscribers[msg.JobID] {
				select {
				case sub.Send <- msg.Message:
				default:
					// slow reader, drop it
					h.remove(sub)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(sub *Subscriber) {
	subs, ok := h.subscribers[sub.JobID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.Send)
	if len(subs) == 0 {
		delete(h.subscribers, sub.JobID)
	}
}

// Register adds a new subscriber
func (h *Hub) Register(sub *Subscriber) {
	h.register <- sub
}

// Unregister removes a subscriber
func (h *Hub) Unregister(sub *Subscriber) {
	h.unregister <- sub
}

// Subscribers returns how many connections follow jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[jobID])
}

// BroadcastProgress sends a progress update to all job subscribers
func (h *Hub) BroadcastProgress(jobID string, progress int, status model.JobStatus, stage, step string) {
	h.send(jobID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		JobID:       jobID,
		Progress:    progress,
		Status:      status,
		Stage:       stage,
		CurrentStep: step,
	})
}

// BroadcastComplete sends the published URLs to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, urls model.OutputURLs) {
	h.send(jobID, model.WSCompleteMessage{
		Type:       model.WSMessageTypeComplete,
		JobID:      jobID,
		OutputURLs: urls,
	})
}

// BroadcastError sends an error message to all job subscribers
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

func (h *Hub) send(jobID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}

	h.broadcast <- &jobMessage{
		JobID:   jobID,
		Message: data,
	}
}

// HandleConnection serves one websocket connection until the peer goes away
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	sub := &Subscriber{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, sendBuffer),
	}

	h.Register(sub)
	defer h.Unregister(sub)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-sub.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case sub.Send <- data:
			default:
			}
		}
	}
}
