package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(context.Background(), ClientOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

var lockDate = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)

func TestLockReleasedAfterUse(t *testing.T) {
	rdb, mr := newTestClient(t)
	locker := NewRedisDayLocker(rdb, time.Second, 100*time.Millisecond)
	doctorID := uuid.New()

	err := locker.WithDoctorDayLock(context.Background(), doctorID, lockDate, func(ctx context.Context) error {
		assert.True(t, mr.Exists(LockKey(doctorID, lockDate)))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(LockKey(doctorID, lockDate)))
}

func TestLockPropagatesCallbackError(t *testing.T) {
	rdb, mr := newTestClient(t)
	locker := NewRedisDayLocker(rdb, time.Second, 100*time.Millisecond)
	doctorID := uuid.New()
	boom := errors.New("boom")

	err := locker.WithDoctorDayLock(context.Background(), doctorID, lockDate, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(LockKey(doctorID, lockDate)))
}

func TestLockTimesOutWhenHeld(t *testing.T) {
	rdb, mr := newTestClient(t)
	locker := NewRedisDayLocker(rdb, time.Second, 60*time.Millisecond)
	doctorID := uuid.New()

	require.NoError(t, mr.Set(LockKey(doctorID, lockDate), "someone-else"))

	called := false
	err := locker.WithDoctorDayLock(context.Background(), doctorID, lockDate, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)

	// a foreign token is never deleted by us
	got, err := mr.Get(LockKey(doctorID, lockDate))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLockSerializesCallers(t *testing.T) {
	rdb, _ := newTestClient(t)
	locker := NewRedisDayLocker(rdb, 2*time.Second, 2*time.Second)
	doctorID := uuid.New()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithDoctorDayLock(context.Background(), doctorID, lockDate, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxSeen)
					if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxSeen))
}

func TestLocksAreScopedPerDoctorAndDate(t *testing.T) {
	doctorID := uuid.New()
	assert.NotEqual(t, LockKey(doctorID, lockDate), LockKey(doctorID, lockDate.AddDate(0, 0, 1)))
	assert.NotEqual(t, LockKey(doctorID, lockDate), LockKey(uuid.New(), lockDate))
	assert.Contains(t, LockKey(doctorID, lockDate), "2025-01-06")
}
