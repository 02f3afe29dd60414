// Package extension relays messages between the browser extension's
// content scripts, its popup and the server. Each extension install is a
// client identified by an opaque id; state is held in memory per process.
package extension

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/extract"
)

// Message types.
const (
	SetAuthToken   = "SET_AUTH_TOKEN"
	GetAuthToken   = "GET_AUTH_TOKEN"
	ClearAuthToken = "CLEAR_AUTH_TOKEN"
	UpdateBadge    = "UPDATE_BADGE"
	VideoChanged   = "VIDEO_CHANGED"
	ExtractContent = "EXTRACT_CONTENT"
)

const subscriberBuffer = 16

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrInvalidToken = errors.New("invalid auth token")
	ErrBadMessage   = errors.New("malformed message")
)

// Message is one envelope sent by the extension.
type Message struct {
	Type  string          `json:"type"`
	Token string          `json:"token,omitempty"`
	Count *int            `json:"count,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Response answers a Message.
type Response struct {
	Success bool             `json:"success"`
	Token   *string          `json:"token,omitempty"`
	Content *extract.Content `json:"content,omitempty"`
}

// Event is pushed to subscribed popups.
type Event struct {
	Type  string          `json:"type"`
	Badge string          `json:"badge,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TokenStore resolves API tokens. *database.DB satisfies it.
type TokenStore interface {
	UserByToken(token string) (*database.User, error)
}

type client struct {
	token     string
	badge     string
	lastVideo json.RawMessage
}

// Relay holds per-client extension state and fans events out to subscribers.
type Relay struct {
	tokens TokenStore

	mu      sync.Mutex
	clients map[string]*client
	subs    map[string]map[chan Event]struct{}
}

func NewRelay(tokens TokenStore) *Relay {
	return &Relay{
		tokens:  tokens,
		clients: make(map[string]*client),
		subs:    make(map[string]map[chan Event]struct{}),
	}
}

func (r *Relay) client(id string) *client {
	c, ok := r.clients[id]
	if !ok {
		c = &client{}
		r.clients[id] = c
	}
	return c
}

// Handle applies one message from clientID.
func (r *Relay) Handle(clientID string, m Message) (*Response, error) {
	switch m.Type {
	case SetAuthToken:
		if m.Token == "" {
			return nil, fmt.Errorf("%w: token is required", ErrBadMessage)
		}
		u, err := r.tokens.UserByToken(m.Token)
		if err != nil {
			return nil, fmt.Errorf("checking token: %w", err)
		}
		if u == nil {
			return nil, ErrInvalidToken
		}
		r.mu.Lock()
		r.client(clientID).token = m.Token
		r.mu.Unlock()
		log.Debug().Str("client", clientID).Str("user", u.ID).Msg("extension token set")
		return &Response{Success: true}, nil

	case GetAuthToken:
		r.mu.Lock()
		defer r.mu.Unlock()
		resp := &Response{Success: true}
		if c, ok := r.clients[clientID]; ok && c.token != "" {
			tok := c.token
			resp.Token = &tok
		}
		return resp, nil

	case ClearAuthToken:
		r.mu.Lock()
		if c, ok := r.clients[clientID]; ok {
			c.token = ""
		}
		r.mu.Unlock()
		return &Response{Success: true}, nil

	case UpdateBadge:
		if m.Count == nil {
			return nil, fmt.Errorf("%w: count is required", ErrBadMessage)
		}
		badge := strconv.Itoa(*m.Count)
		r.mu.Lock()
		r.client(clientID).badge = badge
		r.mu.Unlock()
		r.publish(clientID, Event{Type: UpdateBadge, Badge: badge})
		return &Response{Success: true}, nil

	case VideoChanged:
		if len(m.Data) == 0 {
			return nil, fmt.Errorf("%w: data is required", ErrBadMessage)
		}
		r.mu.Lock()
		r.client(clientID).lastVideo = m.Data
		r.mu.Unlock()
		r.publish(clientID, Event{Type: VideoChanged, Data: m.Data})
		return &Response{Success: true}, nil

	case ExtractContent:
		var page struct {
			URL  string `json:"url"`
			HTML string `json:"html"`
		}
		if err := json.Unmarshal(m.Data, &page); err != nil || page.URL == "" {
			return nil, fmt.Errorf("%w: data needs url and html", ErrBadMessage)
		}
		content, err := extract.FromHTML(page.URL, page.HTML)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
		return &Response{Success: true, Content: content}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
}

// Subscribe registers a listener for clientID's events. The returned
// function unregisters it and closes the channel. A listener that falls
// behind misses events rather than blocking the sender.
func (r *Relay) Subscribe(clientID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	r.mu.Lock()
	if r.subs[clientID] == nil {
		r.subs[clientID] = make(map[chan Event]struct{})
	}
	r.subs[clientID][ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs[clientID], ch)
			if len(r.subs[clientID]) == 0 {
				delete(r.subs, clientID)
			}
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *Relay) publish(clientID string, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs[clientID] {
		select {
		case ch <- e:
		default:
			log.Warn().Str("client", clientID).Str("type", e.Type).Msg("dropping event for slow subscriber")
		}
	}
}

// Snapshot returns the events a newly connected popup should see first:
// the current badge and the last video, when known.
func (r *Relay) Snapshot(clientID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return nil
	}
	var out []Event
	if c.badge != "" {
		out = append(out, Event{Type: UpdateBadge, Badge: c.badge})
	}
	if len(c.lastVideo) > 0 {
		out = append(out, Event{Type: VideoChanged, Data: c.lastVideo})
	}
	return out
}
