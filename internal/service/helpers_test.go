package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"wisefido-patient-status/internal/domain"
	"wisefido-patient-status/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingPublisher keeps every event it receives.
type recordingPublisher struct {
	mu     sync.Mutex
	events []StatusEvent
	err    error
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(_ context.Context, evt StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	mr     *miniredis.Miniredis
	client *redis.Client
	kv     *store.RedisKV
	clock  *fakeClock
	svc    *PatientStatusService
}

func setupService(t *testing.T, opts ...Option) *testEnv {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	kv := store.NewRedisKV(client)
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &testEnv{
		mr:     mr,
		client: client,
		kv:     kv,
		clock:  clock,
		svc:    NewPatientStatusService(kv, zap.NewNop(), opts...),
	}
}

func strPtr(s string) *string { return &s }

func statusPtr(s domain.PatientStatusType) *domain.PatientStatusType { return &s }

func sampleInput(patientID string) domain.CreatePatientStatusInput {
	return domain.CreatePatientStatusInput{
		PatientID:           patientID,
		PatientName:         "John Doe",
		MedicalRecordNumber: "MR-123456",
		Status:              domain.StatusRegistered,
		Department:          "Cardiology",
		RoomNumber:          strPtr("A-101"),
		DoctorName:          strPtr("Dr. Smith"),
	}
}

func mustCreate(t *testing.T, env *testEnv, input domain.CreatePatientStatusInput) *domain.PatientStatus {
	t.Helper()
	rec, err := env.svc.Create(context.Background(), input, "user-b")
	require.NoError(t, err)
	return rec
}
