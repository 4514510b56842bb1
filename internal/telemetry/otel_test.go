package telemetry

import (
	"context"
	"testing"

	"bizportal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), config.OTelConfig{})
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("authorization=Bearer abc, x-team = ops,broken")
	assert.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-team":        "ops",
	}, h)
	assert.Empty(t, parseHeaders(""))
}
