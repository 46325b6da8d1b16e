package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

// AuthorAgent and AuthorSystem are the reserved author labels for
// outbound messages; end-user messages carry the sender display name.
const (
	AuthorAgent  = "Agent"
	AuthorSystem = "System"
)

// MessageKind differentiates conversation content.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindAudio    MessageKind = "audio"
	KindDocument MessageKind = "document"
)

// MediaKinds lists every non-text content kind.
var MediaKinds = []MessageKind{KindImage, KindVideo, KindAudio, KindDocument}

// IsMedia reports whether the kind requires a media descriptor.
func (k MessageKind) IsMedia() bool {
	switch k {
	case KindImage, KindVideo, KindAudio, KindDocument:
		return true
	}
	return false
}

// MediaRef describes the remote file behind a media message.
type MediaRef struct {
	URL         string `json:"url"`
	FileName    string `json:"file_name"`
	SizeBytes   int64  `json:"size_bytes"`
	MimeType    string `json:"mime_type"`
	DurationSec int    `json:"duration_sec,omitempty"`
}

// Message is one unit of conversation content within a ticket.
// The (ticket id, Timestamp) pair is the idempotency key used for
// dedup on persistence replay.
type Message struct {
	Author    string         `json:"author"`
	Kind      MessageKind    `json:"kind"`
	Body      string         `json:"body,omitempty"`
	Media     *MediaRef      `json:"media,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewTextMessage builds a text message, rejecting empty bodies.
func NewTextMessage(author, body string) (Message, error) {
	if strings.TrimSpace(body) == "" {
		return Message{}, apperrors.NewValidationError("message body required", nil)
	}
	return Message{
		Author:    author,
		Kind:      KindText,
		Body:      body,
		Timestamp: time.Now(),
	}, nil
}

// NewMediaMessage builds a media message, rejecting missing descriptors
// and unrecognized kinds.
func NewMediaMessage(author string, kind MessageKind, body string, media *MediaRef) (Message, error) {
	if !kind.IsMedia() {
		return Message{}, apperrors.NewValidationError("unrecognized media kind", map[string]any{"kind": string(kind)})
	}
	if media == nil {
		return Message{}, apperrors.NewValidationError("media descriptor required", map[string]any{"kind": string(kind)})
	}
	return Message{
		Author:    author,
		Kind:      kind,
		Body:      body,
		Media:     media,
		Timestamp: time.Now(),
	}, nil
}
