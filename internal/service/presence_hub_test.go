package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceConnectDisconnect(t *testing.T) {
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	users := repository.NewUserRepository(db)
	hub := NewPresenceHub(rdb, users)
	ctx := context.Background()

	user := &model.User{Name: "ana", Email: "ana@example.com", IsActive: true}
	require.NoError(t, users.Create(ctx, user))

	require.NoError(t, hub.Connect(ctx, user.ID))
	online, err := hub.IsOnline(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, online)

	stored, err := users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOnline)

	require.NoError(t, hub.Disconnect(ctx, user.ID))
	online, err = hub.IsOnline(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, online)

	stored, err = users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
	assert.NotNil(t, stored.LastSeen)
}

func TestPresenceOverWebSocket(t *testing.T) {
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	users := repository.NewUserRepository(db)
	hub := NewPresenceHub(rdb, users)
	go hub.Run()
	ctx := context.Background()

	user := &model.User{Name: "ben", Email: "ben@example.com", IsActive: true}
	require.NoError(t, users.Create(ctx, user))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, user.ID)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "PRESENCE", msg.Type)

	assert.Eventually(t, func() bool {
		online, err := hub.IsOnline(ctx, user.ID)
		return err == nil && online
	}, 3*time.Second, 20*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		online, err := hub.IsOnline(ctx, user.ID)
		return err == nil && !online
	}, 3*time.Second, 20*time.Millisecond)

	hub.Stop()
}
