// Package notifications delivers best-effort alerts about stage and
// pipeline outcomes to a chat webhook, an ntfy topic, or both. Delivery
// failures are reported to the caller for logging but never block the
// pipeline.
package notifications
