package collecting

import "runtime"

// HostInfo identifies the machine a run was recorded on.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	NumProcessors int    `json:"numProcessors"`
	CPUType       string `json:"cpuType,omitempty"`
	KernelInfo    string `json:"kernelInfo,omitempty"`
}

func CollectHostInfo(hostname string) HostInfo {
	h := HostInfo{
		Hostname:      hostname,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		NumProcessors: runtime.NumCPU(),
	}
	collectPlatformInfo(&h)
	return h
}
