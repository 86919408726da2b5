// Package rendering implements the render pipeline stage: resolving pixel
// dimensions from the configured tier and the item's aspect ratio, invoking
// the selected render backend, and promoting the finished clip to the
// rendered directory.
package rendering
