// Package stage defines the contract between a stage watcher and the
// per-stage business logic, plus the file lock that keeps each stage to a
// single running instance.
package stage
