package redis

import (
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestIsBusyGroup(t *testing.T) {
	require.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	require.False(t, isBusyGroup(errors.New("connection refused")))
	require.False(t, isBusyGroup(nil))
}

func TestToEntryCoercesValuesToStrings(t *testing.T) {
	e := toEntry(redis.XMessage{
		ID: "1700000000000-0",
		Values: map[string]interface{}{
			"brand_id": "b1",
			"retries":  int64(3),
		},
	})
	require.Equal(t, "1700000000000-0", e.ID)
	require.Equal(t, "b1", e.Fields["brand_id"])
	require.Equal(t, "3", e.Fields["retries"])
}
