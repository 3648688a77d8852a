// Package deployment provides pure functions shared by the deployment
// pipeline: conventional resource naming and internal port selection.
//
// All functions are pure: no I/O, no side effects, deterministic for a given
// input (ImageTag takes the timestamp as an argument for that reason).
package deployment
