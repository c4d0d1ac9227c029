package stt

// Segment represents a speech-to-text result from an STT provider.
// Both interim and final segments use this type.
type Segment struct {
	// Text is the transcribed speech content.
	Text string

	// Final indicates whether this is a final (authoritative) or interim segment.
	Final bool

	// ElapsedSeconds is the time since session start at which the segment was
	// received, in seconds.
	ElapsedSeconds float64
}

// Capabilities describes what an STT provider supports.
type Capabilities struct {
	// Vendor is the provider's short identifier (e.g., "smallest-pulse").
	Vendor string

	// Streaming indicates real-time duplex transcription support.
	Streaming bool

	// InterimResults indicates the provider emits preliminary hypotheses before
	// finalising a segment.
	InterimResults bool
}
