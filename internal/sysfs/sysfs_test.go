package sysfs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestReadLine(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, USBType, "  SDP DCP [PD_PPS]\nsecond line\n")
	fs := New(root)

	got, err := fs.ReadLine(USBType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SDP DCP [PD_PPS]" {
		t.Errorf("got %q, want %q", got, "SDP DCP [PD_PPS]")
	}
}

func TestReadLineMissing(t *testing.T) {
	fs := New(t.TempDir())
	if _, err := fs.ReadLine(USBOnline); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadInt(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ScenarioFCC, "3000\n")
	writeFile(t, root, "bad", "abc\n")
	fs := New(root)

	v, err := fs.ReadInt(ScenarioFCC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 3000 {
		t.Errorf("got %d, want 3000", v)
	}

	if _, err := fs.ReadInt("bad"); err == nil {
		t.Error("expected parse error")
	}
}

func TestReadBool(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, USBOnline, "1\n")
	writeFile(t, root, WirelessOnline, "0\n")
	fs := New(root)

	on, err := fs.ReadBool(USBOnline)
	if err != nil || !on {
		t.Errorf("usb online: got (%v, %v), want (true, nil)", on, err)
	}
	on, err = fs.ReadBool(WirelessOnline)
	if err != nil || on {
		t.Errorf("wireless online: got (%v, %v), want (false, nil)", on, err)
	}
}

func TestWriteInt(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ScenarioFCC, "9000\n")
	fs := New(root)

	if err := fs.WriteInt(ScenarioFCC, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(root, ScenarioFCC))
	if string(data) != "500" {
		t.Errorf("file content: got %q, want %q", data, "500")
	}
}

func TestWriteIntDoesNotCreate(t *testing.T) {
	root := t.TempDir()
	fs := New(root)
	if err := fs.WriteInt(ScenarioFCC, 500); err == nil {
		t.Error("expected error writing missing attribute")
	}
	if _, err := os.Stat(filepath.Join(root, ScenarioFCC)); !os.IsNotExist(err) {
		t.Error("attribute should not have been created")
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sys/class/thermal/thermal_zone2/type", "battery\n")
	writeFile(t, root, "sys/class/thermal/thermal_zone0/type", "cpu\n")
	writeFile(t, root, "sys/class/thermal/cooling_device0/type", "fan\n")
	fs := New(root)

	names, err := fs.List(ThermalDir, "thermal_zone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "thermal_zone0" || names[1] != "thermal_zone2" {
		t.Errorf("got %v", names)
	}

	if _, err := fs.List("sys/class/missing", ""); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	fs := New("")
	if got := fs.Path(ScenarioFCC); got != "/sys/class/qcom-battery/scenario_fcc" {
		t.Errorf("got %q", got)
	}
}
