package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStringMap(t *testing.T) {
	input := map[string]string{
		" KRAAL_API_BASE_URL ": " https://api.kraal.test ",
		"KRAAL_STATE_DIR":      " /tmp/kraal ",
		"KRAAL_API_TIMEOUT":    " ",
		"  ":                   "orphaned value",
		"":                     "also orphaned",
	}

	require.Equal(t, map[string]string{
		"KRAAL_API_BASE_URL": "https://api.kraal.test",
		"KRAAL_STATE_DIR":    "/tmp/kraal",
		"KRAAL_API_TIMEOUT":  "",
	}, NormalizeStringMap(input))
}

func TestNormalizeStringMapEmpty(t *testing.T) {
	require.Nil(t, NormalizeStringMap(nil))
	require.Nil(t, NormalizeStringMap(map[string]string{}))
	require.Nil(t, NormalizeStringMap(map[string]string{" ": "x", "": "y"}))
}
