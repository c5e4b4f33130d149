// Package scheduler places pending tasks around fixed busy intervals.
//
// Suggest is the only entry point. It resolves task dependencies into an
// order, then walks that order once, giving each task the earliest slot that
// fits the work-window policy, avoids busy time and respects the buffer after
// the previous placement. The package performs no I/O and keeps no state
// between calls.
package scheduler
