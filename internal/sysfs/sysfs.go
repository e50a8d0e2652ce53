// Package sysfs provides the line-oriented pseudo-file primitives the daemon
// is built on: read a line, write a value, list directory entries.
// All paths are relative to a root so tests can point it at a temp directory.
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Paths relative to the filesystem root.
const (
	USBOnline      = "sys/class/power_supply/usb/online"
	USBType        = "sys/class/power_supply/usb/usb_type"
	WirelessOnline = "sys/class/power_supply/wireless/online"
	BatteryStatus  = "sys/class/power_supply/battery/status"
	ScenarioFCC    = "sys/class/qcom-battery/scenario_fcc"
	ThermalDir     = "sys/class/thermal"
)

// DefaultRoot is the real filesystem root.
const DefaultRoot = "/"

// FS reads and writes pseudo-files below a root directory.
type FS struct {
	root string
}

// New returns an FS rooted at root.
func New(root string) *FS {
	if root == "" {
		root = DefaultRoot
	}
	return &FS{root: root}
}

// Path joins rel onto the root.
func (f *FS) Path(rel string) string {
	return filepath.Join(f.root, rel)
}

// ReadLine returns the first line of the file with surrounding whitespace removed.
func (f *FS) ReadLine(rel string) (string, error) {
	data, err := os.ReadFile(f.Path(rel))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line), nil
}

// ReadInt parses the first line of the file as a decimal integer.
func (f *FS) ReadInt(rel string) (int, error) {
	line, err := f.ReadLine(rel)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", rel, err)
	}
	return v, nil
}

// ReadBool reads a 0/1 flag. Any non-zero integer is true.
func (f *FS) ReadBool(rel string) (bool, error) {
	v, err := f.ReadInt(rel)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// WriteInt writes v as decimal text. The file must already exist; sysfs
// attributes are never created.
func (f *FS) WriteInt(rel string, v int) error {
	fh, err := os.OpenFile(f.Path(rel), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}
	if _, err := fh.WriteString(strconv.Itoa(v)); err != nil {
		fh.Close()
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close %s: %w", rel, err)
	}
	return nil
}

// List returns the sorted names of entries in dir that start with prefix.
func (f *FS) List(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.Path(dir))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
