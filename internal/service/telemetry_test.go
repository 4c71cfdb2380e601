package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/safedrive-risk/internal/db"
	"github.com/septivank/safedrive-risk/internal/mq"
	"github.com/septivank/safedrive-risk/internal/repository"
	"github.com/septivank/safedrive-risk/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTx implements the commit/rollback part of pgx.Tx
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeTelemetryStore struct {
	tx        *fakeTx
	beginErr  error
	insertErr error
	inserted  []*db.TelemetryRecord
}

func (s *fakeTelemetryStore) BeginTx(ctx context.Context) (repository.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.tx, nil
}

func (s *fakeTelemetryStore) InsertTelemetryTx(ctx context.Context, tx repository.Tx, rec *db.TelemetryRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, rec)
	return nil
}

type fakePublisher struct {
	events      []mq.TelemetryAcceptedEvent
	routingKeys []string
	err         error
}

func (p *fakePublisher) PublishTelemetryAccepted(ctx context.Context, event mq.TelemetryAcceptedEvent, routingKey string) error {
	p.events = append(p.events, event)
	p.routingKeys = append(p.routingKeys, routingKey)
	return p.err
}

var ingestNow = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestProcessor(store *fakeTelemetryStore, pub *fakePublisher) *TelemetryProcessor {
	p := NewTelemetryProcessor(store, pub, validator.NewValidator(60), "device.telemetry.accepted", zap.NewNop())
	p.now = func() time.Time { return ingestNow }
	return p
}

const twoSamples = `{
	"request_id": "req-1",
	"received_at": "2026-05-20T12:00:00Z",
	"samples": [
		{"device_id": "17", "event_time": "2026-05-20T11:59:58Z", "speed": 82.5, "accel_x": 0.3, "accel_y": -0.1, "accel_z": 9.8, "raw_payload_json": {"obd": "ok"}},
		{"device_id": " 18 ", "event_time": "2026-05-20 11:59:59", "latitude": 36.8, "longitude": 10.18}
	]
}`

func TestProcessMessage_StoresAndPublishes(t *testing.T) {
	store := &fakeTelemetryStore{tx: &fakeTx{}}
	pub := &fakePublisher{}
	p := newTestProcessor(store, pub)

	err := p.ProcessMessage(context.Background(), []byte(twoSamples))
	require.NoError(t, err)

	require.Len(t, store.inserted, 2)
	first := store.inserted[0]
	assert.Equal(t, "17", first.DeviceID)
	assert.Equal(t, time.Date(2026, 5, 20, 11, 59, 58, 0, time.UTC), first.EventTime)
	assert.Equal(t, 82.5, *first.Speed)
	assert.Nil(t, first.GyroX)
	assert.JSONEq(t, `{"obd":"ok"}`, string(first.RawPayload))

	second := store.inserted[1]
	assert.Equal(t, "18", second.DeviceID)
	assert.Nil(t, second.Speed)
	assert.Empty(t, second.RawPayload)

	assert.True(t, store.tx.committed)
	require.Len(t, pub.events, 2)
	assert.Equal(t, "req-1", pub.events[0].RequestID)
	assert.Equal(t, "2026-05-20T11:59:58Z", pub.events[0].EventTime)
	assert.Equal(t, []string{"device.telemetry.accepted", "device.telemetry.accepted"}, pub.routingKeys)
}

func TestProcessMessage_DropsInvalidSamples(t *testing.T) {
	store := &fakeTelemetryStore{tx: &fakeTx{}}
	pub := &fakePublisher{}
	p := newTestProcessor(store, pub)

	body := `{"samples": [
		{"device_id": "17", "event_time": "2026-05-20T11:59:00Z", "speed": -5},
		{"device_id": "", "event_time": "2026-05-20T11:59:00Z"},
		{"device_id": "17", "event_time": "2020-01-01T00:00:00Z"},
		{"device_id": "17", "event_time": "2026-05-20T11:59:00Z", "speed": 40}
	]}`

	require.NoError(t, p.ProcessMessage(context.Background(), []byte(body)))

	require.Len(t, store.inserted, 1)
	assert.Equal(t, 40.0, *store.inserted[0].Speed)
	require.Len(t, pub.events, 1)
	assert.NotEmpty(t, pub.events[0].RequestID, "a request id is generated when missing")
}

func TestProcessMessage_NothingValid(t *testing.T) {
	store := &fakeTelemetryStore{tx: &fakeTx{}}
	pub := &fakePublisher{}
	p := newTestProcessor(store, pub)

	err := p.ProcessMessage(context.Background(), []byte(`{"samples": [
		{"device_id": "17", "event_time": "nope"},
		{"device_id": "", "event_time": "2026-05-20T11:59:00Z"}
	]}`))

	require.ErrorIs(t, err, ErrNoValidSamples)
	assert.Empty(t, store.inserted)
	assert.False(t, store.tx.committed)
	assert.Empty(t, pub.events)
}

func TestProcessMessage_NoSamples(t *testing.T) {
	store := &fakeTelemetryStore{tx: &fakeTx{}}
	pub := &fakePublisher{}
	p := newTestProcessor(store, pub)

	err := p.ProcessMessage(context.Background(), []byte(`{"request_id": "req-2", "samples": []}`))

	require.NoError(t, err)
	assert.Empty(t, store.inserted)
	assert.Empty(t, pub.events)
}

func TestProcessMessage_Malformed(t *testing.T) {
	p := newTestProcessor(&fakeTelemetryStore{tx: &fakeTx{}}, &fakePublisher{})

	err := p.ProcessMessage(context.Background(), []byte(`{"samples": [`))

	assert.Error(t, err)
}

func TestProcessMessage_InsertFailureRollsBack(t *testing.T) {
	store := &fakeTelemetryStore{tx: &fakeTx{}, insertErr: errors.New("disk full")}
	pub := &fakePublisher{}
	p := newTestProcessor(store, pub)

	err := p.ProcessMessage(context.Background(), []byte(twoSamples))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, store.tx.rolledBack)
	assert.Empty(t, pub.events, "nothing is published for an uncommitted message")
}

func TestProcessMessage_CommitFailure(t *testing.T) {
	store := &fakeTelemetryStore{tx: &fakeTx{commitErr: errors.New("serialization failure")}}
	pub := &fakePublisher{}
	p := newTestProcessor(store, pub)

	err := p.ProcessMessage(context.Background(), []byte(twoSamples))

	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestProcessMessage_BeginFailure(t *testing.T) {
	store := &fakeTelemetryStore{beginErr: errors.New("pool exhausted")}
	p := newTestProcessor(store, &fakePublisher{})

	err := p.ProcessMessage(context.Background(), []byte(twoSamples))

	require.Error(t, err)
}

func TestProcessMessage_PublishFailureDoesNotFailMessage(t *testing.T) {
	store := &fakeTelemetryStore{tx: &fakeTx{}}
	pub := &fakePublisher{err: errors.New("channel closed")}
	p := newTestProcessor(store, pub)

	err := p.ProcessMessage(context.Background(), []byte(twoSamples))

	require.NoError(t, err)
	assert.True(t, store.tx.committed)
	assert.Len(t, pub.events, 2)
}
