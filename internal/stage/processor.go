package stage

import (
	"context"

	"loopforge/internal/items"
)

// Known stage names, in pipeline order.
const (
	Generate    = "generate"
	Render      = "render"
	PostProcess = "post-process"
	Upload      = "upload"
)

// Order lists the stages in execution order.
func Order() []string {
	return []string{Generate, Render, PostProcess, Upload}
}

// Processor is the contract a watcher needs from a stage's business logic.
// Process transforms exactly one item and returns the path of the artifact
// it produced. Failures are contained to the item; the watcher re-queues it.
type Processor interface {
	// Name identifies the stage in logs and notifications.
	Name() string

	// Completed reports whether the item's status already reflects this
	// stage's completion. Completed items are skipped during reconciliation
	// so restarts never reprocess finished work.
	Completed(item *items.WorkItem) bool

	// Process performs the stage's work for one item.
	Process(ctx context.Context, item *items.WorkItem) (string, error)
}
