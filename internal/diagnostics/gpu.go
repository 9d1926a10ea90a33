package diagnostics

import (
	"strings"

	"github.com/jaypipes/ghw"
)

// GPUDevice describes one detected graphics card.
type GPUDevice struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Vendor string `json:"vendor"`
}

// GPUs enumerates graphics cards. Returns nil when detection is unavailable
// on the host.
func GPUs() []GPUDevice {
	info, err := ghw.GPU()
	if err != nil || info == nil {
		return nil
	}

	devices := make([]GPUDevice, 0, len(info.GraphicsCards))
	for i, card := range info.GraphicsCards {
		dev := GPUDevice{Index: i}
		if card.DeviceInfo != nil {
			if card.DeviceInfo.Product != nil {
				dev.Name = strings.TrimSpace(card.DeviceInfo.Product.Name)
			}
			if card.DeviceInfo.Vendor != nil {
				dev.Vendor = strings.TrimSpace(card.DeviceInfo.Vendor.Name)
			}
		}
		devices = append(devices, dev)
	}
	return devices
}
