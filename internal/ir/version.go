package ir

// Version constants for the wire format and the binary.
const (
	// FormatVersion is the action wire format version. It is part of the
	// hash domain, so bumping it changes every action id.
	FormatVersion = "1"

	// Version is the cobs release version.
	Version = "0.1.0"
)
