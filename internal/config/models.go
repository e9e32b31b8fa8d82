package config

// Preference keys. Each one maps to a field of Config.
const (
	KeyHotkeyCtrl    = "hotkey.ctrl"
	KeyHotkeyAlt     = "hotkey.alt"
	KeyHotkeyShift   = "hotkey.shift"
	KeyHotkeyKey     = "hotkey.key"
	KeyHelperPort    = "helper.port"
	KeyHelperBundle  = "helper.bundle"
	KeyStartupHide   = "startup.auto_hide"
	KeyTargetClass   = "target.class"
	KeyTargetPID     = "target.pid"
	KeyTargetCommand = "target.command"
	KeyAPIEnabled    = "api.enabled"
	KeyAPIPort       = "api.port"
	KeyLogLevel      = "log_level"
)

// DefaultHelperPort is used for both the listener and the helper when the
// preferences file has no port.
const DefaultHelperPort = "47831"

// Keys lists every recognized preference key in display order.
var Keys = []string{
	KeyHotkeyCtrl,
	KeyHotkeyAlt,
	KeyHotkeyShift,
	KeyHotkeyKey,
	KeyHelperPort,
	KeyHelperBundle,
	KeyStartupHide,
	KeyTargetClass,
	KeyTargetPID,
	KeyTargetCommand,
	KeyAPIEnabled,
	KeyAPIPort,
	KeyLogLevel,
}

// HelperKeys are the preferences baked into the helper command line.
var HelperKeys = []string{
	KeyHotkeyCtrl,
	KeyHotkeyAlt,
	KeyHotkeyShift,
	KeyHotkeyKey,
	KeyHelperPort,
}

// Config is the preferences file.
type Config struct {
	Hotkey   HotkeyConfig  `json:"hotkey" yaml:"hotkey" mapstructure:"hotkey"`
	Helper   HelperConfig  `json:"helper" yaml:"helper" mapstructure:"helper"`
	Startup  StartupConfig `json:"startup" yaml:"startup" mapstructure:"startup"`
	Target   TargetConfig  `json:"target" yaml:"target" mapstructure:"target"`
	API      APIConfig     `json:"api" yaml:"api" mapstructure:"api"`
	LogLevel string        `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// HotkeyConfig is the global hotkey the helper registers.
type HotkeyConfig struct {
	Ctrl  bool   `json:"ctrl" yaml:"ctrl" mapstructure:"ctrl"`
	Alt   bool   `json:"alt" yaml:"alt" mapstructure:"alt"`
	Shift bool   `json:"shift" yaml:"shift" mapstructure:"shift"`
	Key   string `json:"key" yaml:"key" mapstructure:"key"`
}

// HelperConfig locates and connects the helper. Port stays a string so a bad
// value can be reported and dropped instead of failing the whole file.
type HelperConfig struct {
	Port   string `json:"port" yaml:"port" mapstructure:"port"`
	Bundle string `json:"bundle" yaml:"bundle" mapstructure:"bundle"`
}

type StartupConfig struct {
	AutoHide bool `json:"auto_hide" yaml:"auto_hide" mapstructure:"auto_hide"`
}

// TargetConfig identifies the application whose main window is managed.
type TargetConfig struct {
	Class   string   `json:"class" yaml:"class" mapstructure:"class"`
	PID     int      `json:"pid" yaml:"pid" mapstructure:"pid"`
	Command []string `json:"command" yaml:"command" mapstructure:"command"`
}

// APIConfig controls the local preferences pane.
type APIConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" yaml:"port" mapstructure:"port"`
}

// Defaults returns the configuration written on install.
func Defaults() Config {
	return Config{
		Hotkey: HotkeyConfig{
			Ctrl: true,
			Alt:  true,
			Key:  "T",
		},
		Helper: HelperConfig{
			Port: DefaultHelperPort,
		},
		Target: TargetConfig{
			Command: []string{},
		},
		API: APIConfig{
			Enabled: true,
			Port:    8089,
		},
		LogLevel: "info",
	}
}
