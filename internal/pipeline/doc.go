// Package pipeline chains the four stages into one batch run. Each stage
// executes as a child process of this binary in run-once mode, so a full run
// behaves identically to operating the stages by hand, and a crash in one
// stage cannot take the coordinator down with it.
package pipeline
