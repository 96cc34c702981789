// Package config reads the developer settings of the emulator. Every value
// is optional; a missing or malformed value falls back to the default
// without complaint.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/fx"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
)

// Environment variables.
const (
	EnvDebug     = "ARDUBOY_DEBUG"
	EnvLog       = "ARDUBOY_LOG"
	EnvFXCS      = "ARDUBOY_FX_CS"
	EnvFXPath    = "ARDUBOY_FX_PATH"
	EnvFXBase    = "ARDUBOY_FX_BASE"
	EnvFXDir     = "ARDUBOY_FX_DIR"
	EnvAutostart = "ARDUBOY_AUTOSTART"
	EnvConfig    = "ARDUBOY_CONFIG"
)

// DefaultFXDir is searched last for cartridge images.
const DefaultFXDir = "/sdcard/arduboy"

// Dev holds the raw setting strings. Accessors interpret them.
type Dev struct {
	Debug      string
	LogPath    string
	ChipSelect string
	FXPath     string
	FXBase     string
	FXDir      string
	Autostart  string
}

// FromEnv reads the settings from the environment.
func FromEnv() Dev {
	return Dev{
		Debug:      os.Getenv(EnvDebug),
		LogPath:    os.Getenv(EnvLog),
		ChipSelect: os.Getenv(EnvFXCS),
		FXPath:     os.Getenv(EnvFXPath),
		FXBase:     os.Getenv(EnvFXBase),
		FXDir:      os.Getenv(EnvFXDir),
		Autostart:  os.Getenv(EnvAutostart),
	}
}

// Load reads the environment and, if ARDUBOY_CONFIG names a Lua script, lets
// the script override it. A broken script is logged and ignored.
func Load() Dev {
	d := FromEnv()
	if path := os.Getenv(EnvConfig); path != "" {
		if err := d.ApplyLuaFile(path); err != nil {
			logger.Logf("config", "%s ignored: %v", path, err)
		}
	}
	return d
}

// Lua globals and the fields they set.
func (d *Dev) luaGlobals() map[string]*string {
	return map[string]*string{
		"debug":     &d.Debug,
		"log":       &d.LogPath,
		"fx_cs":     &d.ChipSelect,
		"fx_path":   &d.FXPath,
		"fx_base":   &d.FXBase,
		"fx_dir":    &d.FXDir,
		"autostart": &d.Autostart,
	}
}

// ApplyLuaFile runs the script at path.
func (d *Dev) ApplyLuaFile(path string) error {
	return d.applyLua(func(L *lua.LState) error { return L.DoFile(path) })
}

// ApplyLua runs script. String, number and boolean globals named after the
// settings replace the current values; anything else is left alone.
func (d *Dev) ApplyLua(script string) error {
	return d.applyLua(func(L *lua.LState) error { return L.DoString(script) })
}

func (d *Dev) applyLua(run func(*lua.LState) error) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	if err := run(L); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for name, field := range d.luaGlobals() {
		switch v := L.GetGlobal(name).(type) {
		case lua.LString:
			*field = string(v)
		case lua.LNumber:
			*field = v.String()
		case lua.LBool:
			*field = strconv.FormatBool(bool(v))
		}
	}
	return nil
}

// Level returns the logging verbosity. Numbers 0 to 3 and the level names
// are accepted; anything else is Info.
func (d Dev) Level() logger.Level {
	s := strings.ToLower(strings.TrimSpace(d.Debug))
	if n, err := strconv.Atoi(s); err == nil {
		if n >= int(logger.Quiet) && n <= int(logger.Trace) {
			return logger.Level(n)
		}
		return logger.Info
	}
	for l := logger.Quiet; l <= logger.Trace; l++ {
		if s == l.String() {
			return l
		}
	}
	return logger.Info
}

// Pin returns the configured cartridge chip select.
func (d Dev) Pin() (avr.Pin, bool) {
	if d.ChipSelect == "" {
		return avr.Pin{}, false
	}
	p, err := avr.ParsePin(d.ChipSelect)
	if err != nil {
		return avr.Pin{}, false
	}
	return p, true
}

// Base returns the configured image base. Decimal, 0x hex and 0 octal forms
// are accepted. A base outside the device is ignored.
func (d Dev) Base() (uint32, bool) {
	s := strings.TrimSpace(d.FXBase)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil || n >= fx.DeviceSize {
		return 0, false
	}
	return uint32(n), true
}

// Dir returns the fallback directory for cartridge images.
func (d Dev) Dir() string {
	if d.FXDir != "" {
		return d.FXDir
	}
	return DefaultFXDir
}
