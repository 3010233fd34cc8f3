package otp

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestVerifier() (*Verifier, *MemoryStore, *fakeClock) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now)
	return NewVerifier(store, WithClock(clock.Now)), store, clock
}

func TestIssue_SixDigitCode(t *testing.T) {
	v, _, _ := newTestVerifier()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		code, err := v.Issue(ctx, "a@example.com")
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestVerify_SingleUse(t *testing.T) {
	v, _, _ := newTestVerifier()
	ctx := context.Background()

	code, err := v.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	require.NoError(t, v.Verify(ctx, "A@Example.com ", code))
	assert.ErrorIs(t, v.Verify(ctx, "a@example.com", code), ErrNotFound)
}

func TestVerify_WrongCodeKeepsEntry(t *testing.T) {
	v, _, _ := newTestVerifier()
	ctx := context.Background()

	code, err := v.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, v.Verify(ctx, "a@example.com", wrong), ErrInvalid)
	assert.NoError(t, v.Verify(ctx, "a@example.com", code))
}

func TestVerify_Expired(t *testing.T) {
	v, store, clock := newTestVerifier()
	ctx := context.Background()

	code, err := v.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	clock.Advance(10*time.Minute + time.Second)
	assert.ErrorIs(t, v.Verify(ctx, "a@example.com", code), ErrExpired)
	assert.Zero(t, store.Len())
	assert.ErrorIs(t, v.Verify(ctx, "a@example.com", code), ErrNotFound)
}

func TestVerify_JustBeforeDeadline(t *testing.T) {
	v, _, clock := newTestVerifier()
	ctx := context.Background()

	code, err := v.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	clock.Advance(10*time.Minute - time.Second)
	assert.NoError(t, v.Verify(ctx, "a@example.com", code))
}

func TestIssue_OverwritesPreviousCode(t *testing.T) {
	v, _, _ := newTestVerifier()
	ctx := context.Background()

	first, err := v.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	var second string
	for second == "" || second == first {
		second, err = v.Issue(ctx, "a@example.com")
		require.NoError(t, err)
	}

	assert.ErrorIs(t, v.Verify(ctx, "a@example.com", first), ErrInvalid)
	assert.NoError(t, v.Verify(ctx, "a@example.com", second))
}

func TestVerifiedMarker(t *testing.T) {
	v, _, clock := newTestVerifier()
	ctx := context.Background()

	ok, err := v.ConsumeVerified(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.MarkVerified(ctx, "a@example.com"))
	ok, err = v.ConsumeVerified(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.ConsumeVerified(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, ok, "marker is single use")

	require.NoError(t, v.MarkVerified(ctx, "a@example.com"))
	clock.Advance(11 * time.Minute)
	ok, err = v.ConsumeVerified(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheck(t *testing.T) {
	v, _, _ := newTestVerifier()
	ctx := context.Background()

	assert.ErrorIs(t, v.Check(ctx, "a@example.com", ""), ErrNotFound)

	code, err := v.Issue(ctx, "a@example.com")
	require.NoError(t, err)
	require.NoError(t, v.Check(ctx, "a@example.com", code))

	// Code already consumed by /verify-otp, marker carries the proof.
	code, err = v.Issue(ctx, "b@example.com")
	require.NoError(t, err)
	require.NoError(t, v.Verify(ctx, "b@example.com", code))
	require.NoError(t, v.MarkVerified(ctx, "b@example.com"))
	require.NoError(t, v.Check(ctx, "b@example.com", code))
	assert.ErrorIs(t, v.Check(ctx, "b@example.com", code), ErrNotFound)
}

func TestMemoryStore_SweepsExpiredOnPut(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "old", Entry{Code: "1", ExpiresAt: clock.Now().Add(time.Minute)}))
	clock.Advance(2 * time.Minute)
	require.NoError(t, store.Put(ctx, "new", Entry{Code: "2", ExpiresAt: clock.Now().Add(time.Minute)}))

	assert.Equal(t, 1, store.Len())
	_, outcome, err := store.Consume(ctx, "old", "1", 5)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissing, outcome)
}

func TestVerify_ConcurrentFirstWins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	v, _, _ := newTestVerifier()
	ctx := context.Background()

	code, err := v.Issue(ctx, "race@example.com")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v.Verify(ctx, "race@example.com", code) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestVerify_WrongCodesBurnEntry(t *testing.T) {
	v, store, _ := newTestVerifier()
	ctx := context.Background()

	code, err := v.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, v.Verify(ctx, "a@example.com", wrong), ErrInvalid)
	}

	assert.Zero(t, store.Len())
	assert.ErrorIs(t, v.Verify(ctx, "a@example.com", code), ErrNotFound)
}

func TestVerify_MaxAttemptsOption(t *testing.T) {
	clock := newFakeClock()
	v := NewVerifier(NewMemoryStore(clock.Now), WithClock(clock.Now), WithMaxAttempts(1))
	ctx := context.Background()

	code, err := v.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, v.Verify(ctx, "a@example.com", wrong), ErrInvalid)
	assert.ErrorIs(t, v.Verify(ctx, "a@example.com", code), ErrNotFound)
}

func TestMemoryStore_ConsumeCountsFailures(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", Entry{Code: "123456", ExpiresAt: clock.Now().Add(time.Minute)}))

	entry, outcome, err := store.Consume(ctx, "k", "654321", 3)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatched, outcome)
	assert.Zero(t, entry.Attempts)

	entry, outcome, err = store.Consume(ctx, "k", "654321", 3)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatched, outcome)
	assert.Equal(t, 1, entry.Attempts)

	entry, outcome, err = store.Consume(ctx, "k", "123456", 3)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, outcome)
	assert.Equal(t, 2, entry.Attempts)
	assert.Zero(t, store.Len())
}
