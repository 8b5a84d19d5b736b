// Package build is the single entry point for running a build. The CLI and
// the watch loop both route through BuildService, which turns a loaded
// configuration into plugins, a cache and a step pipeline.
package build
