package power

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeAttr(t *testing.T, dir, name, value string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestBacklight_IsInteractive(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]string
		want  bool
	}{
		{name: "powered and lit", attrs: map[string]string{"bl_power": "0", "brightness": "120"}, want: true},
		{name: "powered but zero brightness", attrs: map[string]string{"bl_power": "0", "brightness": "0"}, want: false},
		{name: "blanked", attrs: map[string]string{"bl_power": "4", "brightness": "120"}, want: false},
		{name: "no bl_power attribute", attrs: map[string]string{"brightness": "7"}, want: true},
		{name: "actual brightness wins", attrs: map[string]string{"brightness": "7", "actual_brightness": "0"}, want: false},
		{name: "garbage brightness", attrs: map[string]string{"brightness": "bright"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, value := range tt.attrs {
				writeAttr(t, dir, name, value)
			}
			b, err := NewBacklight(dir, quietLogger())
			if err != nil {
				t.Fatalf("NewBacklight failed: %v", err)
			}
			if got := b.IsInteractive(); got != tt.want {
				t.Errorf("IsInteractive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBacklight_LiveReads(t *testing.T) {
	dir := t.TempDir()
	writeAttr(t, dir, "bl_power", "0")
	writeAttr(t, dir, "brightness", "50")
	b, err := NewBacklight(dir, quietLogger())
	if err != nil {
		t.Fatalf("NewBacklight failed: %v", err)
	}

	first, second := b.IsInteractive(), b.IsInteractive()
	if !first || !second {
		t.Fatalf("Expected both reads interactive, got %v %v", first, second)
	}

	writeAttr(t, dir, "bl_power", "4")
	if b.IsInteractive() {
		t.Error("Expected change in sysfs to be reflected immediately")
	}
}

func TestNewBacklight_MissingDevice(t *testing.T) {
	_, err := NewBacklight(filepath.Join(t.TempDir(), "missing"), quietLogger())
	if !errors.Is(err, ErrNoBacklight) {
		t.Errorf("Expected ErrNoBacklight, got %v", err)
	}
}

func TestFirstBacklight(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"intel_backlight", "acpi_video0"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	got, err := firstBacklight(root)
	if err != nil {
		t.Fatalf("firstBacklight failed: %v", err)
	}
	if want := filepath.Join(root, "acpi_video0"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := firstBacklight(t.TempDir()); !errors.Is(err, ErrNoBacklight) {
		t.Errorf("Expected ErrNoBacklight for empty root, got %v", err)
	}
}

func TestOpen_BacklightLogsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeAttr(t, dir, "brightness", "10")
	var buf bytes.Buffer

	c, err := Open(BackendBacklight, dir, nil, slog.New(slog.NewTextHandler(&buf, nil)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if b, ok := c.(*Backlight); !ok || b.Dir() != dir {
		t.Fatalf("Expected backlight on %s, got %#v", dir, c)
	}
	if !strings.Contains(buf.String(), dir) {
		t.Errorf("Expected backlight directory in log, got %q", buf.String())
	}
}

type mockProperties struct {
	values map[string]any
	err    error
	reads  int
}

func (m *mockProperties) GetProperty(p string) (dbus.Variant, error) {
	m.reads++
	if m.err != nil {
		return dbus.Variant{}, m.err
	}
	v, ok := m.values[p]
	if !ok {
		return dbus.Variant{}, errors.New("no such property")
	}
	return dbus.MakeVariant(v), nil
}

func TestLogind_IsInteractive(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   bool
	}{
		{name: "active", values: map[string]any{idleHintProp: false, sleepProp: false}, want: true},
		{name: "idle", values: map[string]any{idleHintProp: true, sleepProp: false}, want: false},
		{name: "preparing for sleep", values: map[string]any{idleHintProp: false, sleepProp: true}, want: false},
		{name: "wrong type", values: map[string]any{idleHintProp: "no", sleepProp: false}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := &mockProperties{values: tt.values}
			l, err := newLogind(props, quietLogger())
			if err != nil {
				t.Fatalf("newLogind failed: %v", err)
			}
			if got := l.IsInteractive(); got != tt.want {
				t.Errorf("IsInteractive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogind_NoCaching(t *testing.T) {
	props := &mockProperties{values: map[string]any{idleHintProp: false, sleepProp: false}}
	l, err := newLogind(props, quietLogger())
	if err != nil {
		t.Fatalf("newLogind failed: %v", err)
	}
	startReads := props.reads

	l.IsInteractive()
	l.IsInteractive()
	if props.reads-startReads != 4 {
		t.Errorf("Expected 4 property reads for two queries, got %d", props.reads-startReads)
	}

	props.values[idleHintProp] = true
	if l.IsInteractive() {
		t.Error("Expected idle state to be observed on the next call")
	}
}

func TestLogind_Unavailable(t *testing.T) {
	_, err := newLogind(&mockProperties{err: errors.New("service unknown")}, quietLogger())
	if err == nil {
		t.Fatal("Expected error when logind does not answer")
	}
	if _, err := NewLogind(nil, quietLogger()); err == nil {
		t.Error("Expected error for nil bus")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("acpi", "", nil, quietLogger()); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}
