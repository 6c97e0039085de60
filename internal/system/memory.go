// Package system reports host memory so training can refuse models whose
// weights would not fit.
package system

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported means memory cannot be measured on this platform
	ErrUnsupported = errors.New("memory information unavailable on this platform")

	// ErrInsufficientMemory means a requested allocation exceeds usable RAM
	ErrInsufficientMemory = errors.New("insufficient memory")
)

// reserveBytes is left for the OS and other processes
const reserveBytes = int64(512 * 1024 * 1024)

// RAMInfo contains information about system memory
type RAMInfo struct {
	TotalBytes     int64
	AvailableBytes int64
}

// UsedBytes returns memory in use
func (r RAMInfo) UsedBytes() int64 {
	return r.TotalBytes - r.AvailableBytes
}

// UsableBytes returns available memory minus the OS reserve
func (r RAMInfo) UsableBytes() int64 {
	if r.AvailableBytes < reserveBytes {
		return 0
	}
	return r.AvailableBytes - reserveBytes
}

// Fits returns ErrInsufficientMemory when required exceeds usable memory
func (r RAMInfo) Fits(required int64) error {
	if usable := r.UsableBytes(); required > usable {
		return fmt.Errorf("%w: need %s, %s usable", ErrInsufficientMemory, FormatBytes(required), FormatBytes(usable))
	}
	return nil
}

// GetRAMInfo returns information about system RAM
func GetRAMInfo() (RAMInfo, error) {
	return getRAMInfo()
}

// FormatBytes formats bytes as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
