package collecting

import (
	"errors"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// DeviceInfo describes the profiled GPU. It is collected once per run.
type DeviceInfo struct {
	Index               int     `json:"gpuIndex"`
	Name                string  `json:"gpuName"`
	UUID                string  `json:"gpuUuid"`
	Brand               string  `json:"gpuBrand"`
	Architecture        string  `json:"gpuArchitecture"`
	CudaCapabilityMajor int     `json:"gpuCudaCapabilityMajor"`
	CudaCapabilityMinor int     `json:"gpuCudaCapabilityMinor"`
	MemoryTotalBytes    int64   `json:"gpuMemoryTotalBytes"`
	MemoryBusWidthBits  int     `json:"gpuMemoryBusWidthBits"`
	MaxClockSmMhz       int     `json:"gpuMaxClockSmMhz"`
	MaxClockMemoryMhz   int     `json:"gpuMaxClockMemoryMhz"`
	PeakDRAMBandwidthGB float64 `json:"gpuPeakDramBandwidthGBs"`
	DriverVersion       string  `json:"nvidiaDriverVersion"`
	CudaVersion         string  `json:"nvidiaCudaVersion"`
}

// DeviceInfo collects static device properties. Fields NVML cannot
// answer are left empty.
func (n *NvidiaBackend) DeviceInfo() (*DeviceInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.init(); err != nil {
		return nil, err
	}

	info := &DeviceInfo{Index: n.deviceIndex}
	device := n.device

	capture(device.GetName, &info.Name)
	capture(device.GetUUID, &info.UUID)
	if brand, ret := device.GetBrand(); errors.Is(ret, nvml.SUCCESS) {
		info.Brand = brandToString(brand)
	}
	if arch, ret := device.GetArchitecture(); errors.Is(ret, nvml.SUCCESS) {
		info.Architecture = archToString(arch)
	}
	capture2(device.GetCudaComputeCapability, &info.CudaCapabilityMajor, &info.CudaCapabilityMinor)

	if mem, ret := device.GetMemoryInfo(); errors.Is(ret, nvml.SUCCESS) {
		info.MemoryTotalBytes = int64(mem.Total)
	}
	captureInt(device.GetMemoryBusWidth, &info.MemoryBusWidthBits, func(v uint32) int { return int(v) })

	for _, ct := range []struct {
		typ nvml.ClockType
		dst *int
	}{
		{nvml.CLOCK_SM, &info.MaxClockSmMhz},
		{nvml.CLOCK_MEM, &info.MaxClockMemoryMhz},
	} {
		captureInt(func() (uint32, nvml.Return) { return device.GetMaxClockInfo(ct.typ) }, ct.dst, func(v uint32) int { return int(v) })
	}
	// MHz × 2 transfers × bytes per transfer / 1000 → GB/s
	info.PeakDRAMBandwidthGB = float64(info.MaxClockMemoryMhz) * 2 * float64(info.MemoryBusWidthBits) / 8 / 1000

	capture(nvml.SystemGetDriverVersion, &info.DriverVersion)
	if cudaVersion, ret := nvml.SystemGetCudaDriverVersion(); errors.Is(ret, nvml.SUCCESS) {
		info.CudaVersion = fmt.Sprintf("%d.%d", cudaVersion/1000, (cudaVersion%1000)/10)
	}
	return info, nil
}

func archToString(arch nvml.DeviceArchitecture) string {
	return enumToString(arch, map[nvml.DeviceArchitecture]string{
		nvml.DEVICE_ARCH_KEPLER:  "Kepler",
		nvml.DEVICE_ARCH_MAXWELL: "Maxwell",
		nvml.DEVICE_ARCH_PASCAL:  "Pascal",
		nvml.DEVICE_ARCH_VOLTA:   "Volta",
		nvml.DEVICE_ARCH_TURING:  "Turing",
		nvml.DEVICE_ARCH_AMPERE:  "Ampere",
		nvml.DEVICE_ARCH_ADA:     "Ada",
		nvml.DEVICE_ARCH_HOPPER:  "Hopper",
	})
}

func brandToString(brand nvml.BrandType) string {
	return enumToString(brand, map[nvml.BrandType]string{
		nvml.BRAND_UNKNOWN:     "Unknown",
		nvml.BRAND_QUADRO:      "Quadro",
		nvml.BRAND_TESLA:       "Tesla",
		nvml.BRAND_GEFORCE:     "GeForce",
		nvml.BRAND_TITAN:       "Titan",
		nvml.BRAND_NVIDIA_RTX:  "NvidiaRTX",
		nvml.BRAND_NVIDIA:      "Nvidia",
		nvml.BRAND_GEFORCE_RTX: "GeForceRTX",
	})
}
