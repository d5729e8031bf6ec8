package core

import (
	"errors"
)

var (
	ErrSwapchainBooting    = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainOutOfDate  = errors.New("swapchain out of date")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidResolution   = errors.New("invalid resolution")
	ErrNoRenderTarget      = errors.New("no render target bound")
	ErrNotInitialized      = errors.New("not initialized")
	ErrImageNotAcquired    = errors.New("image has not been acquired")
	ErrDeviceLost          = errors.New("device lost")
	ErrUnknownBackend      = errors.New("unknown renderer backend")
	ErrSubsystemRegistered = errors.New("subsystem already registered")
	ErrUnknown             = errors.New("unknown")
)
