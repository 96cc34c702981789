package emu

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/config"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/fx"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/roms"
)

var ErrNoFXImage = errors.New("emu: no cartridge image found")

// imageNames are the file names tried for a game: as given, then lower case
// with anything but letters and digits turned into underscores.
func imageNames(game string) []string {
	raw := strings.TrimSpace(game)
	norm := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, raw)
	if norm == raw || norm == "" {
		return []string{raw}
	}
	return []string{raw, norm}
}

// ImageCandidates lists the cartridge image paths for a game in search
// order: the configured path, the image found beside the game,
// game/<name>.bin, <name>.bin and finally the fallback directory.
func ImageCandidates(rom roms.Descriptor, dev config.Dev) []string {
	var out []string
	if dev.FXPath != "" {
		out = append(out, dev.FXPath)
	}
	if rom.Image != "" {
		out = append(out, rom.Image)
	}
	names := imageNames(rom.Name)
	for _, n := range names {
		out = append(out, filepath.Join("game", n+".bin"), n+".bin")
	}
	for _, n := range names {
		out = append(out, filepath.Join(dev.Dir(), n+".bin"))
	}
	return out
}

// ReadImage reads a cartridge image, refusing files larger than the device
// before reading them.
func ReadImage(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", path)
	}
	if fi.Size() > fx.DeviceSize {
		return nil, fmt.Errorf("%s: %w", path, fx.ErrImageTooLarge)
	}
	return os.ReadFile(path)
}

// loadImage installs the first readable candidate into the cartridge.
func (b *Board) loadImage(rom roms.Descriptor, dev config.Dev) (string, error) {
	for _, path := range ImageCandidates(rom, dev) {
		data, err := ReadImage(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Logf("fx", "%v", err)
			}
			continue
		}
		if base, ok := dev.Base(); ok {
			err = b.Cart.LoadAt(data, base)
		} else {
			err = b.Cart.Load(data)
		}
		if err != nil {
			logger.Logf("fx", "%s: %v", path, err)
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("%w for %q", ErrNoFXImage, rom.Name)
}
