// Package roms is the table of games offered by the emulator menu.
package roms

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Descriptor is one launchable game.
type Descriptor struct {
	Name string
	// Intel HEX program text
	Hex string
	// the game reads assets from an FX cartridge
	NeedsFX bool
	// cartridge image found next to the game, searched before the
	// usual locations
	Image string
}

//go:embed hex/*.hex
var builtin embed.FS

// Builtin returns the games compiled into the binary.
func Builtin() []Descriptor {
	blank, err := builtin.ReadFile("hex/blank.hex")
	if err != nil {
		panic(err)
	}
	return []Descriptor{
		{Name: "Blank", Hex: string(blank)},
	}
}

// Scan adds every *.hex file in dir. A game whose directory also holds
// <name>.bin is taken to need that cartridge image.
func Scan(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("roms: %w", err)
	}

	var out []Descriptor
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".hex") {
			continue
		}
		text, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("roms: %w", err)
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		d := Descriptor{Name: name, Hex: string(text)}
		if image := filepath.Join(dir, name+".bin"); isFile(image) {
			d.NeedsFX, d.Image = true, image
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Find looks a game up by name (case-insensitive) or by index.
func Find(list []Descriptor, nameOrIndex string) (int, bool) {
	s := strings.TrimSpace(nameOrIndex)
	if s == "" {
		return 0, false
	}
	for i, d := range list {
		if strings.EqualFold(d.Name, s) {
			return i, true
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(list) {
		return n, true
	}
	return 0, false
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
