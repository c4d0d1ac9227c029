// Package session implements the per-lecture runtime: the pipeline scheduler
// that turns finalized utterances into cards, takeaways, topics, and
// summaries, and the Runtime that multiplexes the STT streams, the scheduler,
// and the outbound event sink behind one WebSocket connection.
package session

import (
	"encoding/json"

	"github.com/lectern-ai/lectern/internal/lecture"
)

// EventType identifies an outbound WebSocket event.
type EventType string

const (
	EventTranscriptInterim  EventType = "transcript_interim"
	EventTranscriptFinal    EventType = "transcript_final"
	EventNewCard            EventType = "new_card"
	EventDeepResearchStart  EventType = "deep_research_start"
	EventDeepResearchResult EventType = "deep_research_result"
	EventNewTakeaway        EventType = "new_takeaway"
	EventSummaryUpdate      EventType = "summary_update"
	EventTopicUpdate        EventType = "topic_update"
)

// Event is one outbound frame. Exactly the fields belonging to the event's
// type are populated; the rest are omitted from the JSON encoding.
type Event struct {
	Type EventType `json:"type"`

	// transcript_interim, transcript_final
	Text             string `json:"text,omitempty"`
	Speaker          string `json:"speaker,omitempty"`
	TimestampSeconds *int   `json:"timestamp_seconds,omitempty"`

	// new_card, deep_research_result
	Card *lecture.Card `json:"card,omitempty"`

	// new_takeaway
	Takeaway *lecture.Takeaway `json:"takeaway,omitempty"`

	// summary_update
	Summary string `json:"summary,omitempty"`

	// topic_update
	Topic         string   `json:"topic,omitempty"`
	EmphasisLevel *float64 `json:"emphasis_level,omitempty"`

	// deep_research_start
	SelectedText string `json:"selected_text,omitempty"`
}

// Marshal encodes the event as a single JSON text frame.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// TranscriptInterim builds a transcript_interim event.
func TranscriptInterim(text string) Event {
	return Event{Type: EventTranscriptInterim, Text: text}
}

// TranscriptFinal builds a transcript_final event stamped with the lecture
// timestamp in whole seconds.
func TranscriptFinal(text string, timestampSeconds int) Event {
	return Event{Type: EventTranscriptFinal, Text: text, TimestampSeconds: &timestampSeconds}
}

// NewCard builds a new_card event.
func NewCard(card lecture.Card) Event {
	return Event{Type: EventNewCard, Card: &card}
}

// DeepResearchStart builds a deep_research_start event.
func DeepResearchStart(selectedText string) Event {
	return Event{Type: EventDeepResearchStart, SelectedText: selectedText}
}

// DeepResearchResult builds a deep_research_result event.
func DeepResearchResult(card lecture.Card) Event {
	return Event{Type: EventDeepResearchResult, Card: &card}
}

// NewTakeaway builds a new_takeaway event.
func NewTakeaway(takeaway lecture.Takeaway) Event {
	return Event{Type: EventNewTakeaway, Takeaway: &takeaway}
}

// SummaryUpdate builds a summary_update event.
func SummaryUpdate(summary string) Event {
	return Event{Type: EventSummaryUpdate, Summary: summary}
}

// TopicUpdate builds a topic_update event.
func TopicUpdate(topic string, emphasisLevel float64) Event {
	return Event{Type: EventTopicUpdate, Topic: topic, EmphasisLevel: &emphasisLevel}
}

// Emitter is the serializing outbound sink events flow through. The Runtime
// implements it; tests substitute a recording fake.
type Emitter interface {
	// Emit queues the event for delivery to the client. It never blocks.
	Emit(event Event)
}
