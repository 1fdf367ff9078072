package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdempotencyStatusValid(t *testing.T) {
	for status, want := range map[IdempotencyStatus]bool{
		IdempotencyStatusProcessing:   true,
		IdempotencyStatusDone:         true,
		IdempotencyStatusFailed:       true,
		IdempotencyStatus("replayed"): false,
	} {
		require.Equal(t, want, status.Valid(), status)
	}
}

func TestNewIdempotencyRecord(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	rec, err := NewIdempotencyRecord(" 7:key ", " hash ", time.Time{}, now)
	require.NoError(t, err)
	require.Equal(t, "7:key", rec.Key)
	require.Equal(t, "hash", rec.RequestHash)
	require.Equal(t, IdempotencyStatusProcessing, rec.Status)
	require.Equal(t, now.Add(DefaultIdempotencyTTL), rec.TTLAt)

	_, err = NewIdempotencyRecord(" ", "hash", now, now)
	require.ErrorIs(t, err, ErrIdempotencyKeyRequired)
	_, err = NewIdempotencyRecord("key", "", now, now)
	require.ErrorIs(t, err, ErrIdempotencyRequestHashRequired)
}

func TestIdempotencyRecord_ConflictAndExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec, err := NewIdempotencyRecord("key", "hash-a", now.Add(time.Minute), now)
	require.NoError(t, err)

	require.ErrorIs(t, rec.ConflictWith("hash-a"), ErrIdempotencyKeyAlreadyExists)
	require.ErrorIs(t, rec.ConflictWith("hash-b"), ErrIdempotencyHashMismatch)
	require.False(t, rec.Expired(now))
	require.True(t, rec.Expired(now.Add(time.Minute)))
}

func TestIdempotencyRecord_CompleteCopiesBody(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec, err := NewIdempotencyRecord("key", "hash", time.Time{}, now)
	require.NoError(t, err)

	body := []byte(`{"id":1}`)
	rec.Complete(IdempotencyStatusDone, body, 201, now.Add(time.Second))
	body[0] = 'x'

	require.Equal(t, IdempotencyStatusDone, rec.Status)
	require.Equal(t, 201, rec.HTTPStatus)
	require.JSONEq(t, `{"id":1}`, string(rec.ResponseBody))
	require.Equal(t, now.Add(time.Second), rec.UpdatedAt)
}

func TestIdempotencyErrorsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, err := range []error{
		ErrIdempotencyKeyRequired,
		ErrIdempotencyRequestHashRequired,
		ErrIdempotencyKeyAlreadyExists,
		ErrIdempotencyHashMismatch,
		ErrIdempotencyKeyNotFound,
	} {
		require.False(t, seen[err.Error()], err)
		seen[err.Error()] = true
	}
}
