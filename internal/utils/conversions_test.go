package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/brokerauth/internal/utils"
)

func TestToStringSlice(t *testing.T) {
	require.Equal(t, []string{"a", "1", "true"}, utils.ToStringSlice([]any{"a", nil, 1, true}))
	require.Empty(t, utils.ToStringSlice(nil))
}

func TestValueAndPtr(t *testing.T) {
	require.Equal(t, 0, utils.Value[int](nil))
	require.Equal(t, "x", utils.Value(utils.Ptr("x")))
}
