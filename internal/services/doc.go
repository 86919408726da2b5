// Package services holds the shared error taxonomy and context annotations
// used by the external backend clients and the stage processors.
//
// Errors produced at backend boundaries are tagged with one of the sentinel
// markers (configuration, validation, external tool, transient, timeout) so
// that stage code can decide between retrying an item and rejecting it
// without inspecting error strings.
package services
