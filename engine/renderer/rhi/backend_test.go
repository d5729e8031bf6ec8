package rhi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func TestParseBackendType(t *testing.T) {
	b, err := rhi.ParseBackendType(" Headless ")
	require.NoError(t, err)
	assert.Equal(t, rhi.BackendHeadless, b)

	b, err = rhi.ParseBackendType("vulkan")
	require.NoError(t, err)
	assert.Equal(t, rhi.BackendVulkan, b)

	_, err = rhi.ParseBackendType("metal")
	assert.ErrorIs(t, err, core.ErrUnknownBackend)
}

func TestNewDeviceFromRegistry(t *testing.T) {
	// the headless package registers itself on import
	assert.Contains(t, rhi.Backends(), rhi.BackendHeadless)

	device, err := rhi.NewDevice(rhi.BackendHeadless, rhi.DeviceConfig{ApplicationName: "test"})
	require.NoError(t, err)
	assert.True(t, device.Initialized())
	assert.Equal(t, "test", device.Name())

	_, err = rhi.NewDevice(rhi.BackendType(99), rhi.DeviceConfig{})
	assert.ErrorIs(t, err, core.ErrUnknownBackend)
}

func TestParseFormatAndPresentFlags(t *testing.T) {
	f, err := rhi.ParseFormat("B8G8R8A8_UNORM")
	require.NoError(t, err)
	assert.Equal(t, rhi.FormatB8G8R8A8Unorm, f)
	_, err = rhi.ParseFormat("undefined")
	assert.Error(t, err)

	flags, err := rhi.ParsePresentFlags([]string{"fifo", "mailbox"})
	require.NoError(t, err)
	assert.Equal(t, []rhi.PresentFlags{rhi.PresentMailbox, rhi.PresentFifo}, flags.Modes())
	assert.Equal(t, "mailbox|fifo", flags.String())

	_, err = rhi.ParsePresentFlags([]string{"vsync"})
	assert.Error(t, err)
}
