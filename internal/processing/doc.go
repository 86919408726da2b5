// Package processing implements the post-process pipeline stage: a fixed
// ordered chain of loop, b-roll overlay, captioning, and watermarking over
// each rendered clip, with a sidecar recording which steps actually ran.
package processing
