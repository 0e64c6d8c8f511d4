package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"naskahlokal/pkg/logger"
)

const (
	// Page to host.
	ReadyType   = "READY"   // Editor finished initializing
	ActionType  = "ACTION"  // Menu or toolbar item clicked
	ContentType = "CONTENT" // Editor content, in reply to GET_CONTENT or on change

	// Host to page.
	SetContentType = "SET_CONTENT" // Replace editor content
	GetContentType = "GET_CONTENT" // Ask for editor content
	RegisterType   = "REGISTER"    // Menu items the host handles
	NoticeType     = "NOTICE"      // Message for the user
	PromptType     = "PROMPT"      // Open a dialog in the page

	DefaultContentTimeout = 5 * time.Second
)

var (
	ErrContentTimeout = errors.New("editor did not answer in time")
	ErrBridgeClosed   = errors.New("editor bridge is closed")
)

type WSMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Hub presents the editor running in a browser page as a widget. Only the
// most recently connected page is driven; older connections are dropped.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Inbound    chan WSMessage

	ContentTimeout time.Duration

	mu      sync.Mutex
	clients map[*Client]bool
	active  *Client
	content string // last content set by the host or reported by the page
	actions map[string]func()
	ready   []func()
	pending map[string]chan string

	quit chan struct{}
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		Inbound:        make(chan WSMessage),
		ContentTimeout: DefaultContentTimeout,
		clients:        make(map[*Client]bool),
		actions:        make(map[string]func()),
		pending:        make(map[string]chan string),
		quit:           make(chan struct{}),
	}
}

// Run processes connections and page messages until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer h.once.Do(func() { close(h.quit) })

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Conn.Close()
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			h.mu.Lock()
			previous := h.active
			h.clients[client] = true
			h.active = client
			content := h.content
			h.mu.Unlock()

			if previous != nil {
				logger.Sugar.Infof("Editor page replaced by a new connection")
				previous.Conn.Close()
			}

			// The new page gets the menu items and the current content straight away.
			h.sendTo(client, WSMessage{Type: RegisterType, Payload: mustJSON(h.actionNames())})
			h.sendTo(client, WSMessage{Type: SetContentType, Payload: mustJSON(content)})

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				if h.active == client {
					h.active = nil
				}
			}
			h.mu.Unlock()

		case msg := <-h.Inbound:
			h.handle(msg)
		}
	}
}

func (h *Hub) handle(msg WSMessage) {
	switch msg.Type {
	case ReadyType:
		h.mu.Lock()
		fns := append([]func(){}, h.ready...)
		h.mu.Unlock()
		for _, fn := range fns {
			go fn()
		}

	case ActionType:
		h.mu.Lock()
		fn, ok := h.actions[msg.Name]
		h.mu.Unlock()
		if !ok {
			logger.Sugar.Warnf("Unknown editor action %q", msg.Name)
			return
		}
		// Actions call back into the hub (GetContent), so they must not run on this goroutine.
		go fn()

	case ContentType:
		var content string
		if err := json.Unmarshal(msg.Payload, &content); err != nil {
			logger.Sugar.Errorf("Error unmarshalling editor content: %v", err)
			return
		}
		h.mu.Lock()
		h.content = content
		reply, ok := h.pending[msg.RequestID]
		delete(h.pending, msg.RequestID)
		h.mu.Unlock()
		if ok {
			reply <- content
		}

	default:
		logger.Sugar.Warnf("Ignoring editor message of type %q", msg.Type)
	}
}

func (h *Hub) OnReady(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = append(h.ready, fn)
}

func (h *Hub) RegisterAction(name string, fn func()) {
	h.mu.Lock()
	h.actions[name] = fn
	active := h.active
	h.mu.Unlock()

	if active != nil {
		h.sendTo(active, WSMessage{Type: RegisterType, Payload: mustJSON(h.actionNames())})
	}
}

// SetContent replaces the editor content. Without a connected page the
// content is kept and sent when a page connects.
func (h *Hub) SetContent(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	h.content = content
	active := h.active
	h.mu.Unlock()

	if active != nil {
		h.sendTo(active, WSMessage{Type: SetContentType, Payload: mustJSON(content)})
	}
	return nil
}

// GetContent asks the page for its live content. Without a connected page
// it returns the last known content.
func (h *Hub) GetContent(ctx context.Context) (string, error) {
	h.mu.Lock()
	active := h.active
	if active == nil {
		content := h.content
		h.mu.Unlock()
		return content, nil
	}
	id := uuid.NewString()
	reply := make(chan string, 1)
	h.pending[id] = reply
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	h.sendTo(active, WSMessage{Type: GetContentType, RequestID: id})

	timer := time.NewTimer(h.ContentTimeout)
	defer timer.Stop()

	select {
	case content := <-reply:
		return content, nil
	case <-timer.C:
		return "", ErrContentTimeout
	case <-h.quit:
		return "", ErrBridgeClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (h *Hub) Notify(level, message string) {
	h.broadcast(WSMessage{Type: NoticeType, Payload: mustJSON(Notice{Level: level, Message: message})})
}

func (h *Hub) Prompt(dialog string) {
	h.broadcast(WSMessage{Type: PromptType, Name: dialog})
}

// Connected reports whether an editor page is attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active != nil
}

func (h *Hub) broadcast(msg WSMessage) {
	h.mu.Lock()
	active := h.active
	h.mu.Unlock()
	if active == nil {
		logger.Sugar.Infof("No editor page for %s message", msg.Type)
		return
	}
	h.sendTo(active, msg)
}

func (h *Hub) sendTo(client *Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s message: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Send is closed once the client is unregistered.
	if !h.clients[client] {
		return
	}
	select {
	case client.Send <- payload:
	default:
		logger.Sugar.Warnf("Editor send buffer is full, dropping %s message", msg.Type)
	}
}

func (h *Hub) actionNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.actions))
	for name := range h.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("socket: marshal %T: %v", v, err))
	}
	return b
}
