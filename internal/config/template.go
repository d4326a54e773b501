package config

const configTemplate = `# mediakeyd configuration file
# Every key is optional; environment variables override it (MEDIAKEYD_POWER_BACKEND, ...)

# Observability settings
log_level: info   # debug, info, warn, error
log_format: text  # text, json

input:
  uinput_path: /dev/uinput
  device_name: mediakeyd virtual keyboard
  # Events older than this are refused by the virtual keyboard
  stale_after: 1s

inject:
  # Mark injected events as coming from a system component
  from_system: false

power:
  # backlight reads /sys/class/backlight, logind asks org.freedesktop.login1
  backend: backlight
  # backlight_dir: /sys/class/backlight/intel_backlight

watch:
  # Hold a volume key with the screen off to skip tracks
  enabled: true
  input_dir: /dev/input
  hold_threshold: 700ms
`

// Template returns an annotated sample configuration file.
func Template() string {
	return configTemplate
}
