package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

type fakeWriter struct {
	batches [][]kafka.Message
	err     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type memStore struct {
	events []domain.Event
	err    error
}

func (s *memStore) CreateMany(_ context.Context, events []domain.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_LogOrganizationUserEvents(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	writer := &fakeWriter{}
	s := NewService(store, NewKafkaPublisherWithWriter(writer), discardLogger())

	orgA, orgB := uuid.New(), uuid.New()
	actor := uuid.New()
	scim := domain.SystemUserSCIM
	date := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ouA1 := &domain.OrganizationUser{ID: uuid.New(), OrganizationID: orgA}
	ouA2 := &domain.OrganizationUser{ID: uuid.New(), OrganizationID: orgA}
	ouB := &domain.OrganizationUser{ID: uuid.New(), OrganizationID: orgB}

	err := s.LogOrganizationUserEvents(ctx, []domain.OrganizationUserEvent{
		{OrganizationUser: ouA1, Type: domain.EventOrganizationUserRevoked, ActingUserID: &actor, Date: date},
		{OrganizationUser: ouB, Type: domain.EventOrganizationUserRemoved, SystemUser: &scim, Date: date},
		{OrganizationUser: ouA2, Type: domain.EventOrganizationUserRevoked, ActingUserID: &actor, Date: date},
	})
	require.NoError(t, err)

	require.Len(t, store.events, 3)
	assert.Equal(t, ouA1.ID, store.events[0].OrganizationUserID)
	assert.Equal(t, orgA, store.events[0].OrganizationID)
	assert.Equal(t, &actor, store.events[0].ActingUserID)
	assert.Equal(t, &scim, store.events[1].SystemUser)
	assert.NotEqual(t, uuid.Nil, store.events[0].ID)

	require.Len(t, writer.batches, 2)
	assert.Len(t, writer.batches[0], 2)
	assert.Equal(t, orgA.String(), string(writer.batches[0][0].Key))
	assert.Equal(t, orgB.String(), string(writer.batches[1][0].Key))

	var published domain.Event
	require.NoError(t, json.Unmarshal(writer.batches[1][0].Value, &published))
	assert.Equal(t, domain.EventOrganizationUserRemoved, published.Type)
	assert.Equal(t, ouB.ID, published.OrganizationUserID)
}

func TestService_StoreErrorSkipsPublish(t *testing.T) {
	writer := &fakeWriter{}
	s := NewService(&memStore{err: errors.New("db down")}, NewKafkaPublisherWithWriter(writer), discardLogger())

	err := s.LogOrganizationUserEvent(context.Background(), domain.OrganizationUserEvent{
		OrganizationUser: &domain.OrganizationUser{ID: uuid.New(), OrganizationID: uuid.New()},
		Type:             domain.EventOrganizationUserConfirmed,
	})
	assert.EqualError(t, err, "db down")
	assert.Empty(t, writer.batches)
}

func TestService_PublishErrorIsNotReturned(t *testing.T) {
	store := &memStore{}
	s := NewService(store, NewKafkaPublisherWithWriter(&fakeWriter{err: errors.New("broker down")}), discardLogger())

	err := s.LogOrganizationUserEvent(context.Background(), domain.OrganizationUserEvent{
		OrganizationUser: &domain.OrganizationUser{ID: uuid.New(), OrganizationID: uuid.New()},
		Type:             domain.EventOrganizationUserConfirmed,
	})
	require.NoError(t, err)
	assert.Len(t, store.events, 1)
}

func TestService_WithoutPublisher(t *testing.T) {
	store := &memStore{}
	s := NewService(store, nil, discardLogger())

	require.NoError(t, s.LogOrganizationUserEvents(context.Background(), nil))
	require.NoError(t, s.LogOrganizationUserEvent(context.Background(), domain.OrganizationUserEvent{
		OrganizationUser: &domain.OrganizationUser{ID: uuid.New(), OrganizationID: uuid.New()},
		Type:             domain.EventOrganizationUserLeft,
	}))
	assert.Len(t, store.events, 1)
}

func TestReferenceService_RaiseEvent(t *testing.T) {
	orgID := uuid.New()
	e := domain.ReferenceEvent{Type: domain.ReferenceEventInvitedUsers, OrganizationID: &orgID, Users: 3}

	t.Run("published", func(t *testing.T) {
		writer := &fakeWriter{}
		s := NewReferenceService(NewKafkaPublisherWithWriter(writer), discardLogger())
		require.NoError(t, s.RaiseEvent(context.Background(), e))
		require.Len(t, writer.batches, 1)
		assert.Equal(t, "invited_users", string(writer.batches[0][0].Key))
		assert.JSONEq(t, `{"type":"invited_users","organization_id":"`+orgID.String()+`","users":3,"date":"0001-01-01T00:00:00Z"}`,
			string(writer.batches[0][0].Value))
	})

	t.Run("logged only", func(t *testing.T) {
		s := NewReferenceService(nil, discardLogger())
		assert.NoError(t, s.RaiseEvent(context.Background(), e))
	})
}
