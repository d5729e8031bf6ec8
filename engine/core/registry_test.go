package core

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

type recordingSubsystem struct {
	name    string
	log     *[]string
	initErr error
	downErr error
}

func (s *recordingSubsystem) Initialize() error {
	*s.log = append(*s.log, "init "+s.name)
	return s.initErr
}

func (s *recordingSubsystem) Shutdown() error {
	*s.log = append(*s.log, "shutdown "+s.name)
	return s.downErr
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	var log []string
	device := &recordingSubsystem{name: "device", log: &log}

	require.NoError(t, r.Register(SubsystemDevice, device))
	assert.ErrorIs(t, r.Register(SubsystemDevice, device), ErrSubsystemRegistered)
	assert.ErrorIs(t, r.Register(SubsystemPipeline, nil), ErrInvalidArgument)

	got, ok := r.Get(SubsystemDevice)
	require.True(t, ok)
	assert.Same(t, device, got)

	_, ok = r.Get(SubsystemSwapChain)
	assert.False(t, ok)
	assert.Nil(t, r.Profiler())
}

func TestRegistryProfiler(t *testing.T) {
	r := NewRegistry()
	p := NewProfiler()
	require.NoError(t, r.Register(SubsystemProfiler, p))
	assert.Same(t, p, r.Profiler())
}

func TestRegistryOrdering(t *testing.T) {
	r := NewRegistry()
	var log []string
	for _, s := range []struct {
		tag  SubsystemTag
		name string
	}{
		{SubsystemDevice, "device"},
		{SubsystemSwapChain, "swapchain"},
		{SubsystemPipeline, "pipeline"},
	} {
		require.NoError(t, r.Register(s.tag, &recordingSubsystem{name: s.name, log: &log}))
	}

	require.NoError(t, r.InitializeAll())
	require.NoError(t, r.ShutdownAll())

	assert.Equal(t, []string{
		"init device", "init swapchain", "init pipeline",
		"shutdown pipeline", "shutdown swapchain", "shutdown device",
	}, log)

	// shutdown empties the registry
	_, ok := r.Get(SubsystemDevice)
	assert.False(t, ok)
	assert.NoError(t, r.ShutdownAll())
}

func TestRegistryReportsFailures(t *testing.T) {
	r := NewRegistry()
	var log []string
	boom := errors.New("boom")
	require.NoError(t, r.Register(SubsystemDevice, &recordingSubsystem{name: "device", log: &log, initErr: boom}))
	require.NoError(t, r.Register(SubsystemPipeline, &recordingSubsystem{name: "pipeline", log: &log, downErr: boom}))

	err := r.InitializeAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device")
	// later subsystems still get initialized
	assert.Contains(t, log, "init pipeline")

	assert.ErrorIs(t, r.ShutdownAll(), boom)
	assert.Contains(t, log, "shutdown device")
}

func TestSubsystemTagString(t *testing.T) {
	assert.Equal(t, "swapchain", SubsystemSwapChain.String())
	assert.Equal(t, "platform", SubsystemPlatform.String())
	assert.Equal(t, "subsystem(42)", SubsystemTag(42).String())
}
