//go:build !linux

package system

func getRAMInfo() (RAMInfo, error) {
	return RAMInfo{}, ErrUnsupported
}
