// Package render holds the closed registry of render backend variants and
// the resolution-tier dimension table. Backends are asynchronous: a render
// is submitted, a bounded completion window is waited out, and the newest
// file in the backend's output directory is taken as the artifact.
package render
