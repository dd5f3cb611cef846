package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONB_ValueAndScan(t *testing.T) {
	var empty JSONB
	v, err := empty.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var j JSONB
	require.NoError(t, j.Scan([]byte(`{"time_period":"last_month","amounts":["$500"]}`)))
	assert.Equal(t, "last_month", j["time_period"])

	require.NoError(t, j.Scan("{\"k\":1}"))
	assert.Equal(t, float64(1), j["k"])

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)

	assert.Error(t, j.Scan(42))
}
