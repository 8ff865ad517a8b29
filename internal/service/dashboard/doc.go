// Package dashboard aggregates per-role summary figures. Results are cached
// briefly because front ends poll them.
package dashboard
