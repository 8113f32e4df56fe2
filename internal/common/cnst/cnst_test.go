package cnst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppConstants(t *testing.T) {
	assert.Equal(t, "mdprovider", AppName)
	assert.Equal(t, "mdprovider.yaml", ProviderYaml)
}

func TestErrorConstants(t *testing.T) {
	assert.Equal(t, "notifier cannot receive updates", ErrNotReceiver.Error())
	assert.Equal(t, "notifier cannot send updates", ErrNotSender.Error())
	assert.NotEqual(t, ErrInvalidConfig, ErrUnsupportedBackend)
}
