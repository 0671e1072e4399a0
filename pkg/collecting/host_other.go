//go:build !linux

package collecting

func collectPlatformInfo(h *HostInfo) {
	h.CPUType = unknownValue
}
