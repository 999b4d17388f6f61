package publisher_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/publisher"
)

func TestMemStoreRoundTrip(t *testing.T) {
	store := publisher.NewMemStore()

	_, ok := store.Outcome("acme/widgets", 1)
	require.False(t, ok)

	store.Record(publisher.Outcome{Repository: "acme/widgets", Number: 1, Message: "first"})
	store.Record(publisher.Outcome{Repository: "acme/widgets", Number: 1, Message: "second"})

	got, ok := store.Outcome("acme/widgets", 1)
	require.True(t, ok)
	require.Equal(t, "second", got.Message)

	_, ok = store.Outcome("acme/widgets", 2)
	require.False(t, ok)
}
