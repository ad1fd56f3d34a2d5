package notification

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindLectureNote  Kind = "lecture-note"
	KindAnnouncement Kind = "announcement"
	KindTest         Kind = "test"
	KindCustom       Kind = "custom"
)

const (
	EventNewLectureNote  = "newLectureNote"
	EventNewAnnouncement = "newAnnouncement"
	EventNewTest         = "newTest"
	EventNotification    = "notification"
)

// Event returns the room broadcast event bound to the kind.
func (k Kind) Event() string {
	switch k {
	case KindLectureNote:
		return EventNewLectureNote
	case KindAnnouncement:
		return EventNewAnnouncement
	case KindTest:
		return EventNewTest
	default:
		return EventNotification
	}
}

func (k Kind) summaryPrefix() string {
	switch k {
	case KindLectureNote:
		return "New lecture note"
	case KindAnnouncement:
		return "New announcement"
	case KindTest:
		return "New test"
	default:
		return "New notification"
	}
}

type Payload struct {
	Type      Kind      `json:"type"`
	Data      any       `json:"data"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func New(kind Kind, data any, now time.Time) Payload {
	message := kind.summaryPrefix()
	if title := TitleOf(data); title != "" {
		message += ": " + title
	}

	return Payload{
		Type:      kind,
		Data:      data,
		Message:   message,
		Timestamp: now.UTC(),
	}
}

// Titled is implemented by domain payloads that expose a title.
type Titled interface {
	Title() string
}

// TitleOf extracts the title of an opaque domain payload, or "" if it has
// none.
func TitleOf(data any) string {
	switch v := data.(type) {
	case Titled:
		return v.Title()
	case map[string]any:
		title, _ := v["title"].(string)
		return title
	case map[string]string:
		return v["title"]
	case json.RawMessage:
		return titleOfJSON(v)
	case *json.RawMessage:
		if v == nil {
			return ""
		}
		return titleOfJSON(*v)
	case []byte:
		return titleOfJSON(v)
	default:
		return ""
	}
}

func titleOfJSON(raw []byte) string {
	var titled struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &titled); err != nil {
		return ""
	}

	return titled.Title
}
