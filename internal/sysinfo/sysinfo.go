// Package sysinfo reads the manufacturer and model of the host.
package sysinfo

import (
	"os"
	"path/filepath"
	"strings"
)

// Device identifies the hardware the daemon runs on.
type Device struct {
	Manufacturer string
	Model        string
}

// String returns "<manufacturer> <model>".
func (d Device) String() string {
	s := strings.TrimSpace(d.Manufacturer + " " + d.Model)
	if s == "" {
		return "unknown device"
	}
	return s
}

// Read collects the device identity below root ("/" on a live system). DMI is
// preferred; device-tree systems fall back to /proc/device-tree.
func Read(root string) Device {
	if root == "" {
		root = "/"
	}
	dmi := filepath.Join(root, "sys", "class", "dmi", "id")
	d := Device{
		Manufacturer: readAttr(filepath.Join(dmi, "sys_vendor")),
		Model:        readAttr(filepath.Join(dmi, "product_name")),
	}
	if d.Model != "" {
		return d
	}

	dt := filepath.Join(root, "proc", "device-tree")
	d.Model = readAttr(filepath.Join(dt, "model"))
	if d.Manufacturer == "" {
		// compatible is a NUL-separated list of "vendor,board" strings.
		compatible := readAttr(filepath.Join(dt, "compatible"))
		if vendor, _, ok := strings.Cut(compatible, ","); ok {
			d.Manufacturer = vendor
		}
	}
	return d
}

func readAttr(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
}
