package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/avr"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/config"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/test"
)

func TestFromEnv(t *testing.T) {
	t.Setenv(config.EnvFXCS, "d1")
	t.Setenv(config.EnvFXBase, "0x10000")
	t.Setenv(config.EnvDebug, "verbose")
	t.Setenv(config.EnvAutostart, "2")
	t.Setenv(config.EnvConfig, "")

	d := config.Load()
	pin, ok := d.Pin()
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, pin, avr.Pin{Port: 'D', Bit: 1})
	base, ok := d.Base()
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, base, uint32(0x10000))
	test.ExpectEquality(t, d.Level(), logger.Verbose)
	test.ExpectEquality(t, d.Autostart, "2")
}

func TestMalformedFallsBack(t *testing.T) {
	d := config.Dev{ChipSelect: "Q", FXBase: "0x1000000", Debug: "loud"}
	_, ok := d.Pin()
	test.ExpectFailure(t, ok)
	_, ok = d.Base()
	test.ExpectFailure(t, ok)
	test.ExpectEquality(t, d.Level(), logger.Info)
	test.ExpectEquality(t, d.Dir(), config.DefaultFXDir)

	d = config.Dev{FXBase: "banana", Debug: "9"}
	_, ok = d.Base()
	test.ExpectFailure(t, ok)
	test.ExpectEquality(t, d.Level(), logger.Info)

	d = config.Dev{Debug: "3"}
	test.ExpectEquality(t, d.Level(), logger.Trace)
}

func TestLuaOverrides(t *testing.T) {
	d := config.Dev{FXPath: "env.bin", FXDir: "/env"}
	err := d.ApplyLua(`
fx_path = "game/" .. string.lower("MYSTIC") .. ".bin"
fx_base = 0xF00000
debug = 2
unrelated = "x"
`)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, d.FXPath, "game/mystic.bin")
	test.ExpectEquality(t, d.FXDir, "/env")
	base, ok := d.Base()
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, base, uint32(0xF00000))
	test.ExpectEquality(t, d.Level(), logger.Verbose)
}

func TestLuaFileErrorIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.lua")
	if err := os.WriteFile(path, []byte("fx_cs = 'E2'\nthis is not lua"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvConfig, path)
	t.Setenv(config.EnvFXCS, "D1")

	d := config.Load()
	test.ExpectEquality(t, d.ChipSelect, "D1")

	var e config.Dev
	test.ExpectFailure(t, e.ApplyLuaFile(path))
}
