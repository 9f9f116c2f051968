package upload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anoixa/photo-mailer/cache"
	"github.com/anoixa/photo-mailer/cache/memory"
	"github.com/anoixa/photo-mailer/database/models"
	"github.com/anoixa/photo-mailer/internal/intake"
	"github.com/anoixa/photo-mailer/internal/notify"
	"github.com/anoixa/photo-mailer/internal/throttle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegStub = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0xFF, 0xD9}

// --- fakes ---

type fakeStore struct {
	mu        sync.Mutex
	records   []*models.Upload
	createErr error
	markErr   error
	nextID    uint
}

func (f *fakeStore) Create(_ context.Context, upload *models.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	upload.ID = f.nextID
	stored := *upload
	stored.Image = append([]byte(nil), upload.Image...)
	f.records = append(f.records, &stored)
	return nil
}

func (f *fakeStore) MarkDelivery(_ context.Context, id uint, status models.DeliveryStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	for _, r := range f.records {
		if r.ID == id {
			r.DeliveryStatus = status
			return nil
		}
	}
	return errors.New("not found")
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (f *fakeMailer) Send(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

type fakeLimiter struct {
	allowed    bool
	reserveErr error
	retryAfter time.Duration
	reserved   []string
	released   []string
}

func (f *fakeLimiter) Reserve(_ context.Context, email string) (bool, error) {
	if f.reserveErr != nil {
		return false, f.reserveErr
	}
	if f.allowed {
		f.reserved = append(f.reserved, email)
	}
	return f.allowed, nil
}

func (f *fakeLimiter) Release(_ context.Context, email string) error {
	f.released = append(f.released, email)
	return nil
}

func (f *fakeLimiter) RetryAfter(context.Context, string) time.Duration {
	return f.retryAfter
}

func validSubmission() *intake.Submission {
	return &intake.Submission{
		Email:       "a@example.com",
		Nickname:    "Alice",
		Photo:       append([]byte(nil), jpegStub...),
		Filename:    "selfie.jpg",
		ContentType: "image/jpeg",
	}
}

// --- tests ---

func TestProcess_Success(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{}
	svc := NewService(store, mailer)

	result, err := svc.Process(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, StateResponded, result.State)
	assert.Equal(t, uint(1), result.UploadID)

	require.Len(t, store.records, 1)
	record := store.records[0]
	assert.Equal(t, "a@example.com", record.Email)
	assert.Equal(t, "Alice", record.Nickname)
	assert.Equal(t, jpegStub, record.Image)
	assert.Equal(t, models.DeliverySent, record.DeliveryStatus)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "a@example.com", mailer.sent[0].To)
	assert.Equal(t, "selfie.jpg", mailer.sent[0].Filename)
	assert.Len(t, mailer.sent[0].Photo, 17)
}

func TestProcess_InvalidSubmission(t *testing.T) {
	tests := []struct {
		name string
		sub  *intake.Submission
	}{
		{"nil", nil},
		{"no email", &intake.Submission{Nickname: "Alice", Photo: jpegStub}},
		{"no nickname", &intake.Submission{Email: "a@example.com", Photo: jpegStub}},
		{"no photo", &intake.Submission{Email: "a@example.com", Nickname: "Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			mailer := &fakeMailer{}
			svc := NewService(store, mailer)

			result, err := svc.Process(context.Background(), tt.sub)
			var verr *intake.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, StateRejected, result.State)
			assert.Empty(t, store.records)
			assert.Empty(t, mailer.sent)
		})
	}
}

func TestProcess_PersistenceFailureSkipsMail(t *testing.T) {
	store := &fakeStore{createErr: errors.New("dial tcp: connection refused")}
	mailer := &fakeMailer{}
	svc := NewService(store, mailer)

	result, err := svc.Process(context.Background(), validSubmission())

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.EqualError(t, perr.Unwrap(), "dial tcp: connection refused")
	assert.Equal(t, StateFailed, result.State)
	assert.Zero(t, result.UploadID)
	assert.Empty(t, mailer.sent)
}

func TestProcess_NotificationFailureKeepsRecord(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{err: errors.New("535 authentication failed")}
	svc := NewService(store, mailer)

	result, err := svc.Process(context.Background(), validSubmission())

	var nerr *NotificationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, uint(1), nerr.UploadID)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, uint(1), result.UploadID)

	require.Len(t, store.records, 1)
	assert.Equal(t, jpegStub, store.records[0].Image)
	assert.Equal(t, models.DeliveryFailed, store.records[0].DeliveryStatus)
}

func TestProcess_MarkFailureDoesNotFailRequest(t *testing.T) {
	store := &fakeStore{markErr: errors.New("database is locked")}
	mailer := &fakeMailer{}
	svc := NewService(store, mailer)

	result, err := svc.Process(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, StateResponded, result.State)
	assert.Len(t, mailer.sent, 1)
}

func TestProcess_NoDeduplication(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{}
	svc := NewService(store, mailer)

	for i := 0; i < 2; i++ {
		_, err := svc.Process(context.Background(), validSubmission())
		require.NoError(t, err)
	}

	require.Len(t, store.records, 2)
	assert.NotEqual(t, store.records[0].ID, store.records[1].ID)
	assert.Len(t, mailer.sent, 2)
}

func TestProcess_Throttled(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{}
	limiter := &fakeLimiter{allowed: false, retryAfter: 42 * time.Second}
	svc := NewService(store, mailer, WithLimiter(limiter))

	result, err := svc.Process(context.Background(), validSubmission())

	var terr *ThrottledError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 42*time.Second, terr.RetryAfter)
	assert.Equal(t, StateRejected, result.State)
	assert.Empty(t, store.records)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, limiter.released)
}

func TestProcess_LimiterKeepsReservationOnSuccess(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	svc := NewService(&fakeStore{}, &fakeMailer{}, WithLimiter(limiter))

	_, err := svc.Process(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, limiter.reserved)
	assert.Empty(t, limiter.released)
}

func TestProcess_LimiterReleasedOnFailure(t *testing.T) {
	t.Run("persistence", func(t *testing.T) {
		limiter := &fakeLimiter{allowed: true}
		svc := NewService(&fakeStore{createErr: errors.New("disk full")}, &fakeMailer{}, WithLimiter(limiter))

		_, err := svc.Process(context.Background(), validSubmission())
		require.Error(t, err)
		assert.Equal(t, []string{"a@example.com"}, limiter.released)
	})

	t.Run("notification", func(t *testing.T) {
		limiter := &fakeLimiter{allowed: true}
		svc := NewService(&fakeStore{}, &fakeMailer{err: errors.New("550")}, WithLimiter(limiter))

		_, err := svc.Process(context.Background(), validSubmission())
		require.Error(t, err)
		assert.Equal(t, []string{"a@example.com"}, limiter.released)
	})
}

func TestProcess_LimiterErrorFailsOpen(t *testing.T) {
	store := &fakeStore{}
	limiter := &fakeLimiter{reserveErr: errors.New("redis: connection refused")}
	svc := NewService(store, &fakeMailer{}, WithLimiter(limiter))

	_, err := svc.Process(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Len(t, store.records, 1)
	assert.Empty(t, limiter.released)
}

func TestProcess_ConcurrentSameRecipientWithCooldown(t *testing.T) {
	m, err := memory.NewMemory(cache.DefaultMemoryConfig)
	require.NoError(t, err)
	defer m.Close()

	store := &fakeStore{}
	mailer := &fakeMailer{}
	svc := NewService(store, mailer, WithLimiter(throttle.New(m, time.Minute)))

	var wg sync.WaitGroup
	var throttled atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Process(context.Background(), validSubmission())
			var terr *ThrottledError
			if errors.As(err, &terr) {
				throttled.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, store.records, 1)
	assert.Len(t, mailer.sent, 1)
	assert.Equal(t, int32(7), throttled.Load())
}

func TestResend(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{err: errors.New("timeout")}
	svc := NewService(store, mailer)

	_, err := svc.Process(context.Background(), validSubmission())
	require.Error(t, err)
	record := store.records[0]
	require.Equal(t, models.DeliveryFailed, record.DeliveryStatus)

	mailer.err = nil
	require.NoError(t, svc.Resend(context.Background(), record))
	assert.Equal(t, models.DeliverySent, store.records[0].DeliveryStatus)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, jpegStub, mailer.sent[0].Photo)
}

func TestResend_Failure(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeMailer{})
	_, err := svc.Process(context.Background(), validSubmission())
	require.NoError(t, err)

	svc.mailer = &fakeMailer{err: errors.New("550 rejected")}
	err = svc.Resend(context.Background(), store.records[0])

	var nerr *NotificationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, models.DeliveryFailed, store.records[0].DeliveryStatus)
}

func TestStatsSnapshot(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{}
	svc := NewService(store, mailer)

	_, _ = svc.Process(context.Background(), validSubmission())
	_, _ = svc.Process(context.Background(), nil)
	mailer.err = errors.New("boom")
	_, _ = svc.Process(context.Background(), validSubmission())
	store.createErr = errors.New("boom")
	_, _ = svc.Process(context.Background(), validSubmission())

	snap := svc.Stats().Snapshot()
	assert.Equal(t, int64(4), snap["uploads_received"])
	assert.Equal(t, int64(1), snap["uploads_rejected"])
	assert.Equal(t, int64(2), snap["uploads_persisted"])
	assert.Equal(t, int64(1), snap["uploads_persist_failed"])
	assert.Equal(t, int64(1), snap["uploads_notified"])
	assert.Equal(t, int64(1), snap["uploads_notify_failed"])
}
