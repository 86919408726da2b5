// Package watcher implements the per-stage retry queue: a startup
// reconciliation scan plus live file-creation events feeding a FIFO of item
// paths that drains once per tick. Failures rotate to the tail of the queue
// rather than blocking the head.
package watcher
