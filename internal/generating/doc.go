// Package generating implements the first pipeline stage: asking a
// chat-completion backend for video concepts and persisting them as pending
// work items.
package generating
