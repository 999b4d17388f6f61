package logging_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/observability/logging"
)

func TestIsAllowlisted(t *testing.T) {
	require.True(t, logging.IsAllowlisted("Component"))
	require.False(t, logging.IsAllowlisted("signature"))
}

func TestMaskValue(t *testing.T) {
	require.Equal(t, logging.RedactedValue, logging.MaskValue("3045022100abcd"))
	require.Equal(t, "", logging.MaskValue(""))
}

func TestMaskField(t *testing.T) {
	allowed := logging.MaskField("component", "aggregator")
	require.Equal(t, "aggregator", allowed.Value.String())

	masked := logging.MaskField("signature", "3045022100abcd")
	require.Equal(t, logging.RedactedValue, masked.Value.String())
}

func TestRedactionAllowlistSorted(t *testing.T) {
	keys := logging.RedactionAllowlist()
	require.NotEmpty(t, keys)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}
