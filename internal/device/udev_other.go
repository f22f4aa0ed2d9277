//go:build !linux

package device

// EnrichFromUdev is a no-op on non-Linux platforms; go-udev wraps libudev
// which is Linux-only.
func EnrichFromUdev() (map[string]string, error) {
	return nil, nil
}
