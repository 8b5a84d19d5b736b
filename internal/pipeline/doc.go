// Package pipeline runs a build as an ordered list of steps over one mutable
// Context. The first failing step aborts the build and later steps are skipped.
package pipeline
