package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

type staticTokens map[string]uuid.UUID

func (s staticTokens) GetUserIDFromToken(token string) (uuid.UUID, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return uuid.Nil, domain.ErrInvalidToken
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?access_token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_PushesReachUserClients(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(NewHandler(hub, staticTokens{"alice": alice, "bob": bob}, nil))
	defer srv.Close()
	defer hub.Close()

	aliceConn, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	defer aliceConn.Close()
	bobConn, _, err := dial(t, srv, "bob")
	require.NoError(t, err)
	defer bobConn.Close()

	require.Eventually(t, func() bool {
		return hub.ConnectedCount(alice) == 1 && hub.ConnectedCount(bob) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.PushLogOut(context.Background(), alice))
	require.NoError(t, hub.PushSyncOrgKeys(context.Background(), bob))

	msg := readMessage(t, aliceConn)
	assert.Equal(t, MessageLogOut, msg.Type)
	assert.Equal(t, alice.String(), msg.Payload["userId"])

	msg = readMessage(t, bobConn)
	assert.Equal(t, MessageSyncOrgKeys, msg.Type)
}

func TestHub_PingGetsPong(t *testing.T) {
	alice := uuid.New()
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(NewHandler(hub, staticTokens{"alice": alice}, nil))
	defer srv.Close()
	defer hub.Close()

	conn, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`)))
	assert.Equal(t, MessagePong, readMessage(t, conn).Type)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	alice := uuid.New()
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(NewHandler(hub, staticTokens{"alice": alice}, nil))
	defer srv.Close()

	conn, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ConnectedCount(alice) == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ConnectedCount(alice) == 0 }, 2*time.Second, 10*time.Millisecond)

	// Pushing to a user without clients is not an error.
	assert.NoError(t, hub.PushLogOut(context.Background(), alice))
}

func TestHandler_RejectsUnauthenticated(t *testing.T) {
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(NewHandler(hub, staticTokens{}, nil))
	defer srv.Close()

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"unknown token", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := dial(t, srv, tt.token)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	alice := uuid.New()
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(NewHandler(hub, staticTokens{"alice": alice}, []string{"https://vault.example.com"}))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?access_token=alice"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://vault.example.com"}})
	require.NoError(t, err)
	conn.Close()
}

type memDevices struct {
	devices []*domain.Device
	err     error
}

func (m *memDevices) Upsert(_ context.Context, d *domain.Device) error {
	if m.err != nil {
		return m.err
	}
	for i, existing := range m.devices {
		if existing.UserID == d.UserID && existing.Identifier == d.Identifier {
			m.devices[i].PushToken = d.PushToken
			m.devices[i].OrganizationID = d.OrganizationID
			return nil
		}
	}
	m.devices = append(m.devices, d)
	return nil
}

func (m *memDevices) GetManyByUser(_ context.Context, userID uuid.UUID) ([]*domain.Device, error) {
	var out []*domain.Device
	for _, d := range m.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDevices) ClearOrganization(_ context.Context, userID, organizationID uuid.UUID) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, d := range m.devices {
		if d.UserID == userID && d.OrganizationID != nil && *d.OrganizationID == organizationID {
			d.OrganizationID = nil
			n++
		}
	}
	return n, nil
}

func TestDeviceService_DeleteUserRegistrationOrganization(t *testing.T) {
	ctx := context.Background()
	store := &memDevices{}
	s := NewDeviceService(store, discardLogger())
	userID, orgA, orgB := uuid.New(), uuid.New(), uuid.New()

	_, err := s.RegisterDevice(ctx, userID, "phone", nil, &orgA)
	require.NoError(t, err)
	_, err = s.RegisterDevice(ctx, userID, "laptop", nil, &orgB)
	require.NoError(t, err)

	require.NoError(t, s.DeleteUserRegistrationOrganization(ctx, userID, orgA))

	devices, err := s.ListDevices(ctx, userID)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Nil(t, devices[0].OrganizationID)
	require.NotNil(t, devices[1].OrganizationID)
	assert.Equal(t, orgB, *devices[1].OrganizationID)
}

func TestDeviceService_StoreError(t *testing.T) {
	s := NewDeviceService(&memDevices{err: errors.New("db down")}, discardLogger())
	err := s.DeleteUserRegistrationOrganization(context.Background(), uuid.New(), uuid.New())
	assert.EqualError(t, err, "db down")
}
