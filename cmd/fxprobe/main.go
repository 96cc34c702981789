// fxprobe drives an FX cartridge image through the flash command set, the
// way a game would over SPI, and prints what comes back.
//
//	fxprobe -image game.bin jedec read 0x000100 32 status
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/emu"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/fx"
	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/logger"
)

// transaction selects the chip, clocks out and deselects.
func transaction(c *fx.Cart, out ...byte) []byte {
	in := make([]byte, len(out))
	c.Begin()
	for i, b := range out {
		in[i] = c.Transfer(b)
	}
	c.End()
	return in
}

func addr24(a uint32) []byte {
	return []byte{byte(a >> 16), byte(a >> 8), byte(a)}
}

func parseNum(s string) uint32 {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		log.Fatalf("bad number %q: %v", s, err)
	}
	return uint32(v)
}

func main() {
	imagePath := flag.String("image", "", "cartridge image (.bin); empty probes a blank chip")
	base := flag.String("base", "", "place the image at this flash address instead of the end")
	verbose := flag.Bool("v", false, "log every command the cartridge decodes")
	flag.Parse()

	if *verbose {
		logger.SetLevel(logger.Trace)
		logger.SetEcho(os.Stderr)
	}

	c := fx.NewCart()
	if *imagePath != "" {
		data, err := emu.ReadImage(*imagePath)
		if err != nil {
			log.Fatalf("read image: %v", err)
		}
		if *base != "" {
			err = c.LoadAt(data, parseNum(*base))
		} else {
			err = c.Load(data)
		}
		if err != nil {
			log.Fatalf("load image: %v", err)
		}
	}
	fmt.Printf("cart: %s\n", c)

	args := flag.Args()
	for len(args) > 0 {
		cmd := args[0]
		args = args[1:]
		need := func(n int) []string {
			if len(args) < n {
				log.Fatalf("%s: needs %d arguments", cmd, n)
			}
			v := args[:n]
			args = args[n:]
			return v
		}

		switch cmd {
		case "jedec":
			fmt.Printf("jedec: % X\n", transaction(c, fx.OpJEDECID, 0, 0, 0)[1:])
		case "id":
			fmt.Printf("id: % X\n", transaction(c, fx.OpLegacyID, 0, 0, 0, 0, 0)[4:])
		case "sig", "wake":
			fmt.Printf("signature: %02X\n", transaction(c, fx.OpReleasePD, 0, 0, 0, 0)[4])
		case "sleep":
			transaction(c, fx.OpPowerDown)
			fmt.Println("powered down")
		case "status":
			fmt.Printf("status: %02X\n", transaction(c, fx.OpReadStatus, 0)[1])
		case "read", "fastread":
			v := need(2)
			a, n := parseNum(v[0]), int(parseNum(v[1]))
			out := append([]byte{fx.OpRead}, addr24(a)...)
			if cmd == "fastread" {
				out = append([]byte{fx.OpFastRead}, addr24(a)...)
				out = append(out, 0)
			}
			skip := len(out)
			in := transaction(c, append(out, make([]byte, n)...)...)
			fmt.Printf("%s 0x%06X:\n%s", cmd, a, hex.Dump(in[skip:]))
		case "info":
			fmt.Printf("cart: %s state=%s powered_down=%v\n", c, c.State(), c.PoweredDown())
		default:
			log.Fatalf("unknown command %q", cmd)
		}
	}
}
