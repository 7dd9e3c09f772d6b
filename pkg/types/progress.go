package types

// ProgressUpdate represents raw transfer progress data
type ProgressUpdate struct {
	NewBytes   uint64 // New bytes received in this update
	Received   uint64 // Cumulative bytes, stays accurate when updates are dropped
	TotalBytes uint64 // Transfer target, so consumers can size their display
}
