package items

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"loopforge/internal/services"
)

// Status represents a work item's position in the pipeline. Statuses only
// ever move forward; a stage never writes a status earlier than the one the
// item already carries.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRendered  Status = "rendered"
	StatusProcessed Status = "processed"
	StatusUploaded  Status = "uploaded"
)

var statusOrder = map[Status]int{
	StatusPending:   0,
	StatusRendered:  1,
	StatusProcessed: 2,
	StatusUploaded:  3,
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusOrder[status]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", services.ErrValidation, value)
	}
	return status, nil
}

// AtLeast reports whether s is the same as or later than other in the
// pipeline ordering.
func (s Status) AtLeast(other Status) bool {
	return statusOrder[s] >= statusOrder[other]
}

func (s Status) String() string {
	return string(s)
}

// Aspect ratios the pipeline renders. Anything else fails validation.
const (
	AspectSquare   = "1:1"
	AspectVertical = "9:16"
)

// Metadata is the coordination block every work item carries. It is the
// single source of truth for which stage owns the item next.
type Metadata struct {
	ID         string               `json:"id"`
	Status     Status               `json:"status"`
	Timestamps map[string]time.Time `json:"timestamps"`
	OutputPath string               `json:"output_path,omitempty"`
	FinalPath  string               `json:"final_path,omitempty"`
}

// WorkItem is the unit of content flowing through the pipeline. Payload
// fields describe what to render; Metadata tracks where the item is.
type WorkItem struct {
	Prompt      string   `json:"prompt"`
	Caption     string   `json:"caption"`
	Tags        []string `json:"tags"`
	AspectRatio string   `json:"aspect_ratio"`
	Niche       string   `json:"niche,omitempty"`
	Title       string   `json:"title,omitempty"`
	Metadata    Metadata `json:"metadata"`

	// path is where this item was loaded from, if anywhere.
	path string
}

// New creates a pending work item with a fresh identifier.
func New(prompt, caption string, tags []string, aspectRatio string) *WorkItem {
	now := time.Now().UTC()
	return &WorkItem{
		Prompt:      prompt,
		Caption:     caption,
		Tags:        tags,
		AspectRatio: aspectRatio,
		Metadata: Metadata{
			ID:     uuid.NewString(),
			Status: StatusPending,
			Timestamps: map[string]time.Time{
				string(StatusPending): now,
			},
		},
	}
}

// Path returns the file this item was loaded from, or empty for an item not
// yet persisted.
func (w *WorkItem) Path() string {
	return w.path
}

// Advance moves the item to the next status and stamps the transition time.
// Moving backward, or re-applying the current status, is an error.
func (w *WorkItem) Advance(next Status) error {
	nextRank, ok := statusOrder[next]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", services.ErrValidation, next)
	}
	if nextRank <= statusOrder[w.Metadata.Status] {
		return fmt.Errorf("%w: cannot move item %s from %s to %s", services.ErrValidation, w.Metadata.ID, w.Metadata.Status, next)
	}
	w.Metadata.Status = next
	if w.Metadata.Timestamps == nil {
		w.Metadata.Timestamps = make(map[string]time.Time)
	}
	w.Metadata.Timestamps[string(next)] = time.Now().UTC()
	return nil
}

// Validate checks the payload fields the generate stage is required to
// produce. A batch containing any invalid item is rejected in full.
func (w *WorkItem) Validate() error {
	var missing []string
	if strings.TrimSpace(w.Prompt) == "" {
		missing = append(missing, "prompt")
	}
	if strings.TrimSpace(w.Caption) == "" {
		missing = append(missing, "caption")
	}
	if len(w.Tags) == 0 {
		missing = append(missing, "tags")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: item missing required fields: %s", services.ErrValidation, strings.Join(missing, ", "))
	}
	switch w.AspectRatio {
	case AspectSquare, AspectVertical:
	default:
		return fmt.Errorf("%w: unsupported aspect ratio %q (supported: %s, %s)", services.ErrValidation, w.AspectRatio, AspectSquare, AspectVertical)
	}
	return nil
}
