// Package conversation implements direct and group messaging between
// platform users, with per-participant read and archive state.
package conversation
