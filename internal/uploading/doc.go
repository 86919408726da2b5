// Package uploading implements the final pipeline stage: publishing
// finished clips to the configured platforms, recording every attempt in an
// append-only per-artifact log, and keeping aggregate statistics with a
// bounded ring of recent uploads.
package uploading
