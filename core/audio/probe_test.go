package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	d, err := parseDuration([]byte(`{"format": {"duration": "215.040000"}}`))
	require.NoError(t, err)
	assert.InDelta(t, 215.04, d, 1e-9)

	_, err = parseDuration([]byte(`{"format": {}}`))
	assert.Error(t, err)

	_, err = parseDuration([]byte(`{"format": {"duration": "N/A"}}`))
	assert.Error(t, err)

	_, err = parseDuration([]byte(`garbage`))
	assert.Error(t, err)
}
