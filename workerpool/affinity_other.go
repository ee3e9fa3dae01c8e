//go:build !linux

package workerpool

// PinToCPU is a no-op outside Linux.
func PinToCPU(int) error { return nil }
