package power

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultBacklightRoot is where the kernel exposes backlight devices.
const DefaultBacklightRoot = "/sys/class/backlight"

// fbBlankUnblank is the bl_power value for a powered display.
const fbBlankUnblank = 0

// Backlight reads wake state from a sysfs backlight device.
type Backlight struct {
	dir    string
	logger *slog.Logger
}

// NewBacklight returns a Backlight reading dir. An empty dir selects the first
// device under DefaultBacklightRoot.
func NewBacklight(dir string, logger *slog.Logger) (*Backlight, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		found, err := firstBacklight(DefaultBacklightRoot)
		if err != nil {
			return nil, err
		}
		dir = found
	}
	if _, err := os.Stat(filepath.Join(dir, "brightness")); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoBacklight, dir, err)
	}
	return &Backlight{dir: dir, logger: logger}, nil
}

func firstBacklight(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoBacklight, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "", fmt.Errorf("%w under %s", ErrNoBacklight, root)
	}
	return filepath.Join(root, names[0]), nil
}

// Dir returns the sysfs directory being read.
func (b *Backlight) Dir() string {
	return b.dir
}

// IsInteractive reports true when the panel is powered and lit. Read errors
// count as not interactive.
func (b *Backlight) IsInteractive() bool {
	// bl_power is optional; drivers without it only expose brightness.
	if blPower, err := b.readInt("bl_power"); err == nil {
		if blPower != fbBlankUnblank {
			return false
		}
	} else if !os.IsNotExist(err) {
		b.logger.Debug("read bl_power failed", "dir", b.dir, "error", err)
		return false
	}

	brightness, err := b.readInt("actual_brightness")
	if err != nil {
		brightness, err = b.readInt("brightness")
	}
	if err != nil {
		b.logger.Debug("read brightness failed", "dir", b.dir, "error", err)
		return false
	}
	return brightness > 0
}

func (b *Backlight) readInt(name string) (int, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, name))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
