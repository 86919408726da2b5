// Package items defines the work item that flows through the pipeline and
// the JSON-file store the stages coordinate through. The status field on an
// item's metadata is the single source of truth for which stage owns it
// next; statuses advance forward only.
package items
