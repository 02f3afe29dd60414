package extension

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/TobiSchelling/Folio/internal/database"
)

type tokenMap map[string]*database.User

func (m tokenMap) UserByToken(token string) (*database.User, error) {
	return m[token], nil
}

func newRelay() *Relay {
	return NewRelay(tokenMap{"good": {ID: "u1", Name: "ana"}})
}

func intPtr(n int) *int { return &n }

func TestAuthTokenLifecycle(t *testing.T) {
	r := newRelay()

	if _, err := r.Handle("c1", Message{Type: SetAuthToken, Token: "bad"}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := r.Handle("c1", Message{Type: SetAuthToken}); !errors.Is(err, ErrBadMessage) {
		t.Errorf("expected ErrBadMessage, got %v", err)
	}

	if _, err := r.Handle("c1", Message{Type: SetAuthToken, Token: "good"}); err != nil {
		t.Fatalf("SET_AUTH_TOKEN: %v", err)
	}
	resp, err := r.Handle("c1", Message{Type: GetAuthToken})
	if err != nil {
		t.Fatalf("GET_AUTH_TOKEN: %v", err)
	}
	if resp.Token == nil || *resp.Token != "good" {
		t.Errorf("expected token 'good', got %v", resp.Token)
	}

	other, _ := r.Handle("c2", Message{Type: GetAuthToken})
	if other.Token != nil {
		t.Error("tokens must not leak between clients")
	}

	r.Handle("c1", Message{Type: ClearAuthToken})
	resp, _ = r.Handle("c1", Message{Type: GetAuthToken})
	if resp.Token != nil {
		t.Errorf("expected token cleared, got %q", *resp.Token)
	}
}

func TestUnknownType(t *testing.T) {
	if _, err := newRelay().Handle("c1", Message{Type: "PING"}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestVideoChangedFanOut(t *testing.T) {
	r := newRelay()
	a, cancelA := r.Subscribe("c1")
	b, cancelB := r.Subscribe("c1")
	other, cancelOther := r.Subscribe("c2")
	defer cancelA()
	defer cancelB()
	defer cancelOther()

	data := json.RawMessage(`{"title":"New video"}`)
	if _, err := r.Handle("c1", Message{Type: VideoChanged, Data: data}); err != nil {
		t.Fatalf("VIDEO_CHANGED: %v", err)
	}

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			if e.Type != VideoChanged || string(e.Data) != string(data) {
				t.Errorf("unexpected event %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
	select {
	case e := <-other:
		t.Errorf("other client received %+v", e)
	default:
	}

	snap := r.Snapshot("c1")
	if len(snap) != 1 || snap[0].Type != VideoChanged {
		t.Errorf("expected last video in snapshot, got %+v", snap)
	}
}

func TestUpdateBadge(t *testing.T) {
	r := newRelay()
	if _, err := r.Handle("c1", Message{Type: UpdateBadge}); !errors.Is(err, ErrBadMessage) {
		t.Errorf("expected ErrBadMessage without count, got %v", err)
	}
	if _, err := r.Handle("c1", Message{Type: UpdateBadge, Count: intPtr(7)}); err != nil {
		t.Fatalf("UPDATE_BADGE: %v", err)
	}
	snap := r.Snapshot("c1")
	if len(snap) != 1 || snap[0].Badge != "7" {
		t.Errorf("expected badge 7, got %+v", snap)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	r := newRelay()
	_, cancel := r.Subscribe("c1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			r.Handle("c1", Message{Type: UpdateBadge, Count: intPtr(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	r := newRelay()
	ch, cancel := r.Subscribe("c1")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
}

func TestExtractContent(t *testing.T) {
	r := newRelay()
	data := json.RawMessage(`{"url": "https://www.youtube.com/shorts/abcdefghijk", "html": "<html><head><title>Crumb shot - YouTube</title></head></html>"}`)
	resp, err := r.Handle("c1", Message{Type: ExtractContent, Data: data})
	if err != nil {
		t.Fatalf("EXTRACT_CONTENT: %v", err)
	}
	if resp.Content == nil || resp.Content.Title != "Crumb shot" {
		t.Errorf("unexpected content %+v", resp.Content)
	}
	if resp.Content.VideoID == nil || *resp.Content.VideoID != "abcdefghijk" {
		t.Errorf("expected video id, got %v", resp.Content.VideoID)
	}

	if _, err := r.Handle("c1", Message{Type: ExtractContent, Data: json.RawMessage(`{"html": "x"}`)}); !errors.Is(err, ErrBadMessage) {
		t.Errorf("expected ErrBadMessage without url, got %v", err)
	}
}

func TestServeEvents(t *testing.T) {
	r := newRelay()
	r.Handle("c1", Message{Type: UpdateBadge, Count: intPtr(3)})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.ServeEvents(w, req, "c1")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	readEvent := func() []string {
		var ev []string
		for lines.Scan() {
			if lines.Text() == "" {
				return ev
			}
			ev = append(ev, lines.Text())
		}
		return ev
	}

	first := readEvent()
	if len(first) != 2 || first[0] != "event: UPDATE_BADGE" || !strings.Contains(first[1], `"badge":"3"`) {
		t.Fatalf("unexpected snapshot event %v", first)
	}

	r.Handle("c1", Message{Type: VideoChanged, Data: json.RawMessage(`{"title":"Next"}`)})
	second := readEvent()
	if len(second) != 2 || second[0] != "event: VIDEO_CHANGED" || !strings.Contains(second[1], `"title":"Next"`) {
		t.Errorf("unexpected pushed event %v", second)
	}
}
