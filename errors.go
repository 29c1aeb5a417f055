package webcodecs

import "errors"

// Common errors.
var (
	// ErrNotConfigured is returned when units are submitted before Configure.
	ErrNotConfigured = errors.New("codec not configured")
	// ErrClosed is returned when operating on a closed instance.
	ErrClosed = errors.New("codec closed")
	// ErrCodecNotSupported indicates an unrecognized or unavailable codec.
	ErrCodecNotSupported = errors.New("codec not supported")
	// ErrUnsupportedScalabilityMode indicates a scalability mode outside the
	// supported temporal-only set (L1T1..L1T3).
	ErrUnsupportedScalabilityMode = errors.New("unsupported scalability mode")
	// ErrNoEncoder indicates no implementation satisfied the hardware
	// preference for the requested codec.
	ErrNoEncoder = errors.New("no suitable encoder found")
	// ErrFFmpegUnavailable indicates the FFmpeg shared libraries could not be
	// loaded at runtime.
	ErrFFmpegUnavailable = errors.New("ffmpeg libraries not available")
	// ErrInvalidFrame indicates a submitted frame has no payload or an
	// inconsistent plane layout.
	ErrInvalidFrame = errors.New("invalid frame")
)
