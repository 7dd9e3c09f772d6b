package utils

import "fmt"

// FormatFileSize formats a byte count in human readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// FormatThroughput formats bytes per second as MiB/s
func FormatThroughput(bytesPerSecond float64) string {
	return fmt.Sprintf("%.2f MiB/s", bytesPerSecond/(1024*1024))
}
