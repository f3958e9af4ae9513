// Package cmd implements the fraucheky CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/RaymiiOrg/fraucheky/msc"
	"github.com/RaymiiOrg/fraucheky/usb"
)

// Dump builds the descriptor tables and prints them.
type Dump struct {
	Identity string `help:"Identity file (YAML or TOML) overriding the built-in identity" env:"FRAUCHEKY_IDENTITY"`
}

// discardLink satisfies msc.Link for commands that only need the tables.
type discardLink struct{}

func (discardLink) SetupEndpoint(uint8, uint8, uint16, uint16, uint16) {}
func (discardLink) StallTx(uint8)                                      {}
func (discardLink) StallRx(uint8)                                      {}
func (discardLink) SetDataToSend(usb.Data)                             {}

// Run is called by Kong when the dump command is executed.
func (c *Dump) Run(logger *slog.Logger) error {
	id, err := resolveIdentity(c.Identity, logger)
	if err != nil {
		return err
	}

	f, err := msc.New(id, discardLink{}, nil)
	if err != nil {
		return err
	}

	dev := f.DeviceDescriptor()
	cfg := f.ConfigDescriptor()

	fmt.Fprintf(os.Stdout, "Device Descriptor (%d bytes):\n%s\n", len(dev), hexDump(dev))
	fmt.Fprintf(os.Stdout, "Configuration Descriptor (%d bytes, wTotalLength=%d):\n%s\n",
		len(cfg), int(cfg[2])|int(cfg[3])<<8, hexDump(cfg))
	for i := uint8(0); int(i) < f.StringDescriptorCount(); i++ {
		s, _ := f.StringDescriptor(i)
		fmt.Fprintf(os.Stdout, "String Descriptor %d (%d bytes):\n%s\n", i, len(s), hexDump(s))
	}

	logger.Debug("descriptor tables dumped",
		"device", len(dev), "config", len(cfg), "strings", f.StringDescriptorCount())
	return nil
}

// resolveIdentity loads the identity file when given, otherwise falls back
// to the built-in identity.
func resolveIdentity(path string, logger *slog.Logger) (msc.Identity, error) {
	if path == "" {
		return msc.DefaultIdentity(), nil
	}
	id, err := msc.LoadIdentity(path)
	if err != nil {
		return msc.Identity{}, err
	}
	logger.Info("loaded identity", "file", path,
		"vendorID", fmt.Sprintf("0x%04X", id.VendorID),
		"productID", fmt.Sprintf("0x%04X", id.ProductID))
	return id, nil
}

func hexDump(data usb.Data) string {
	var b strings.Builder
	for i := 0; i < len(data); i += 8 {
		end := min(i+8, len(data))
		b.WriteString(fmt.Sprintf("  %04x:", i))
		for _, c := range data[i:end] {
			b.WriteString(fmt.Sprintf(" %02x", c))
		}
		b.WriteString("\n")
	}
	return b.String()
}
