//go:build linux

package collecting

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func collectPlatformInfo(h *HostInfo) {
	h.CPUType = getCPUType()
	h.KernelInfo = getKernelInfo()
}

func getCPUType() string {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return unknownValue
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "model name") {
			continue
		}
		if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return unknownValue
}

func getKernelInfo() string {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return ""
	}
	return fmt.Sprintf("%s %s %s",
		unix.ByteSliceToString(uname.Sysname[:]),
		unix.ByteSliceToString(uname.Release[:]),
		unix.ByteSliceToString(uname.Machine[:]))
}
