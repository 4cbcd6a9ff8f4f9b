package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMessage(t *testing.T) {
	stored := time.Date(2026, 2, 16, 6, 15, 30, 0, time.UTC)
	expires := stored.Add(time.Minute)

	msg := toMessage(fetch.Update{
		Key:       "earthquake:latest",
		Category:  fetch.CategoryLatest,
		Value:     []byte(`{"magnitude":5.4}`),
		StoredAt:  stored,
		ExpiresAt: &expires,
	})

	assert.Equal(t, []byte("earthquake:latest"), msg.Key)
	assert.JSONEq(t, `{"magnitude":5.4}`, string(msg.Value))
	assert.Equal(t, stored, msg.Time)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "category", msg.Headers[0].Key)
	assert.Equal(t, []byte("latest"), msg.Headers[0].Value)
	assert.Equal(t, "stored_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-02-16T06:15:30Z"), msg.Headers[1].Value)
	assert.Equal(t, "expires_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2026-02-16T06:16:30Z"), msg.Headers[2].Value)
}

func TestToMessage_NoExpiry(t *testing.T) {
	msg := toMessage(fetch.Update{
		Key:      "region:dataset",
		Category: fetch.CategoryStatic,
		Value:    []byte(`[]`),
		StoredAt: time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
	})

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "stored_at", msg.Headers[1].Key)
}

func TestNewPublisher(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "bmkg-resource-updates", nil)
	assert.Equal(t, "bmkg-resource-updates", p.writer.Topic)
	assert.NoError(t, p.Close())
}
