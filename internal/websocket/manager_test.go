package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/session"
	"github.com/Tonic56/coinfolio/storage/redis"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func startManager(t *testing.T, userID *uuid.UUID) (*Manager, chan redis.Message, *websocket.Conn) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	messages := make(chan redis.Message, 4)
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), messages)
	go m.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Serve(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for m.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return m, messages, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev map[string]json.RawMessage
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func TestManagerBroadcastsScoreUpdates(t *testing.T) {
	_, messages, conn := startManager(t, nil)

	postID := uuid.New()
	payload, _ := json.Marshal(models.ScoreUpdate{PostID: postID, Likes: 3, Dislikes: 1, Score: 2})
	messages <- redis.Message{Channel: "post-scores", Payload: "not json"}
	messages <- redis.Message{Channel: "post-scores", Payload: string(payload)}

	ev := readEvent(t, conn)
	if string(ev["type"]) != `"score"` {
		t.Fatalf("unexpected event type %s", ev["type"])
	}

	var got models.ScoreUpdate
	if err := json.Unmarshal(ev["data"], &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if got.PostID != postID || got.Score != 2 {
		t.Errorf("unexpected update %+v", got)
	}
}

func TestManagerNotifiesOnlyMatchingUser(t *testing.T) {
	userID := uuid.New()
	m, _, conn := startManager(t, &userID)

	m.NotifySession(session.Status{State: session.NeedsProfile, Identity: &session.Identity{UserID: uuid.New()}})
	m.NotifySession(session.Status{State: session.NeedsProfile, Identity: &session.Identity{UserID: userID}})

	ev := readEvent(t, conn)
	if string(ev["type"]) != `"session"` {
		t.Fatalf("unexpected event type %s", ev["type"])
	}

	var st session.Status
	if err := json.Unmarshal(ev["data"], &st); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if st.Identity == nil || st.Identity.UserID != userID || st.State != session.NeedsProfile {
		t.Errorf("unexpected status %+v", st)
	}
}
