package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

// ErrUnknownKey is returned by Get/Set for keys outside Keys.
var ErrUnknownKey = errors.New("unknown preference key")

// Observer is told which recognized keys changed.
type Observer func(changed []string)

// Manager is the preferences store. Every reload parses the file into a
// fresh viper instance that is swapped in under vmu, so readers on other
// goroutines never see a half-loaded instance.
type Manager struct {
	configPath string

	vmu sync.RWMutex
	v   *viper.Viper

	// writeMu serializes Set/Update and watcher reloads, so a
	// read-modify-write never loses a concurrent change.
	writeMu sync.Mutex

	mu       sync.Mutex
	snapshot map[string]string
	subs     map[int]Observer
	nextID   int
	watcher  *fsnotify.Watcher
}

// DefaultPath returns $HOME/.config/trayminder/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "trayminder", "config.yaml"), nil
}

// NewManager loads the preferences file, creating it with defaults when it
// does not exist.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	m := &Manager{
		configPath: path,
		subs:       make(map[int]Observer),
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.WithComponent("config").Info().
			Str("path", path).
			Msg("Config file not found, creating new config")
		if err := m.write(Defaults()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	if err := m.reload(); err != nil {
		return nil, err
	}
	m.snapshot = m.values()

	logger.WithComponent("config").Info().
		Str("path", path).
		Str("helper_port", m.GetString(KeyHelperPort)).
		Msg("Config loaded")
	return m, nil
}

// reload parses the file into a new viper instance and swaps it in. On
// failure the previous instance stays.
func (m *Manager) reload() error {
	v := viper.New()
	v.SetConfigFile(m.configPath)
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	m.vmu.Lock()
	m.v = v
	m.vmu.Unlock()
	return nil
}

func (m *Manager) current() *viper.Viper {
	m.vmu.RLock()
	defer m.vmu.RUnlock()
	return m.v
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(KeyHotkeyCtrl, d.Hotkey.Ctrl)
	v.SetDefault(KeyHotkeyAlt, d.Hotkey.Alt)
	v.SetDefault(KeyHotkeyShift, d.Hotkey.Shift)
	v.SetDefault(KeyHotkeyKey, d.Hotkey.Key)
	v.SetDefault(KeyHelperPort, d.Helper.Port)
	v.SetDefault(KeyHelperBundle, d.Helper.Bundle)
	v.SetDefault(KeyStartupHide, d.Startup.AutoHide)
	v.SetDefault(KeyTargetClass, d.Target.Class)
	v.SetDefault(KeyTargetPID, d.Target.PID)
	v.SetDefault(KeyTargetCommand, d.Target.Command)
	v.SetDefault(KeyAPIEnabled, d.API.Enabled)
	v.SetDefault(KeyAPIPort, d.API.Port)
	v.SetDefault(KeyLogLevel, d.LogLevel)
}

// GetConfigPath returns the preferences file path.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Get returns a snapshot of the whole configuration.
func (m *Manager) Get() Config {
	var cfg Config
	if err := m.current().Unmarshal(&cfg); err != nil {
		logger.WithComponent("config").Warn().Err(err).Msg("Failed to decode config, using defaults")
		return Defaults()
	}
	return cfg
}

func (m *Manager) GetBool(key string) bool {
	return m.current().GetBool(key)
}

func (m *Manager) GetInt(key string) int {
	return m.current().GetInt(key)
}

func (m *Manager) GetString(key string) string {
	return m.current().GetString(key)
}

func (m *Manager) GetStringSlice(key string) []string {
	return m.current().GetStringSlice(key)
}

// Value returns the display form of a recognized key.
func (m *Manager) Value(key string) (string, error) {
	if !IsKey(key) {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return format(m.current().Get(key)), nil
}

// IsKey reports whether key is a recognized preference.
func IsKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Set parses value for key, saves the file and notifies observers.
func (m *Manager) Set(key, value string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	cfg := m.Get()
	if err := apply(&cfg, key, value); err != nil {
		return err
	}
	return m.update(cfg)
}

// Update replaces the whole configuration.
func (m *Manager) Update(cfg Config) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.update(cfg)
}

func (m *Manager) update(cfg Config) error {
	if err := m.write(cfg); err != nil {
		return err
	}
	if err := m.reload(); err != nil {
		return err
	}
	m.refresh()
	return nil
}

// apply sets one key on cfg, validating its type.
func apply(cfg *Config, key, value string) error {
	value = strings.TrimSpace(value)

	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%s: %q is not a boolean", key, value)
		}
		return b, nil
	}
	parseInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%s: %q is not a non-negative integer", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case KeyHotkeyCtrl:
		cfg.Hotkey.Ctrl, err = parseBool()
	case KeyHotkeyAlt:
		cfg.Hotkey.Alt, err = parseBool()
	case KeyHotkeyShift:
		cfg.Hotkey.Shift, err = parseBool()
	case KeyHotkeyKey:
		cfg.Hotkey.Key = value
	case KeyHelperPort:
		cfg.Helper.Port = value
	case KeyHelperBundle:
		cfg.Helper.Bundle = value
	case KeyStartupHide:
		cfg.Startup.AutoHide, err = parseBool()
	case KeyTargetClass:
		cfg.Target.Class = value
	case KeyTargetPID:
		cfg.Target.PID, err = parseInt()
	case KeyTargetCommand:
		cfg.Target.Command = strings.Fields(value)
	case KeyAPIEnabled:
		cfg.API.Enabled, err = parseBool()
	case KeyAPIPort:
		cfg.API.Port, err = parseInt()
	case KeyLogLevel:
		cfg.LogLevel = strings.ToLower(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return err
}

// write saves cfg as YAML.
func (m *Manager) write(cfg Config) error {
	log := logger.WithComponent("config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if cfg.Target.Command == nil {
		cfg.Target.Command = []string{}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().Err(err).Str("path", m.configPath).Msg("Failed to write config")
		return err
	}

	log.Debug().Str("path", m.configPath).Msg("Config saved")
	return nil
}

// Subscribe registers fn for change notifications and returns its id. fn
// runs on whatever goroutine noticed the change and must not call Set or
// Update.
func (m *Manager) Subscribe(fn Observer) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.subs[m.nextID] = fn
	return m.nextID
}

// Unsubscribe removes an observer. Unknown ids are ignored.
func (m *Manager) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

// Watch starts following edits made to the file by other programs. The
// directory is watched so editors that replace the file are noticed too.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(m.configPath)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	m.watcher = w

	go m.watch(w)
	return nil
}

func (m *Manager) watch(w *fsnotify.Watcher) {
	log := logger.WithComponent("config")
	target := filepath.Clean(m.configPath)

	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != target || !(e.Has(fsnotify.Write) || e.Has(fsnotify.Create)) {
				continue
			}
			log.Debug().Str("file", e.Name).Str("op", e.Op.String()).Msg("Config file changed")
			m.reloadAndRefresh()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

// reloadAndRefresh picks up an external edit. A file caught mid-write fails
// to parse and is skipped; the next write event reloads it.
func (m *Manager) reloadAndRefresh() {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.reload(); err != nil {
		logger.WithComponent("config").Warn().Err(err).Msg("Ignoring unreadable config")
		return
	}
	m.refresh()
}

// Close stops watching the file.
func (m *Manager) Close() error {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}

// refresh diffs the recognized keys against the last snapshot and notifies
// observers about the ones that changed.
func (m *Manager) refresh() {
	current := m.values()

	m.mu.Lock()
	var changed []string
	for _, k := range Keys {
		if current[k] != m.snapshot[k] {
			changed = append(changed, k)
		}
	}
	m.snapshot = current
	subs := make([]Observer, 0, len(m.subs))
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, m.subs[id])
	}
	m.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	logger.WithComponent("config").Info().Strs("keys", changed).Msg("Preferences changed")
	for _, fn := range subs {
		fn(changed)
	}
}

func (m *Manager) values() map[string]string {
	v := m.current()
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		out[k] = format(v.Get(k))
	}
	return out
}

func format(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, " ")
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(t)
	}
}

// Changed reports whether any of keys is in changed.
func Changed(changed []string, keys ...string) bool {
	for _, c := range changed {
		for _, k := range keys {
			if c == k {
				return true
			}
		}
	}
	return false
}
