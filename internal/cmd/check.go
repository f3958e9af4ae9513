package cmd

import (
	"bytes"
	"fmt"
	"log/slog"

	fixtures "github.com/RaymiiOrg/fraucheky/internal/testing"
	"github.com/RaymiiOrg/fraucheky/msc"
	"github.com/RaymiiOrg/fraucheky/usb"
)

// Check drives the responder through a scripted host enumeration against an
// in-memory link and verifies its replies.
type Check struct {
	Identity string `help:"Identity file (YAML or TOML) overriding the built-in identity" env:"FRAUCHEKY_IDENTITY"`
}

// Run is called by Kong when the check command is executed.
func (c *Check) Run(logger *slog.Logger) error {
	id, err := resolveIdentity(c.Identity, logger)
	if err != nil {
		return err
	}

	link := &fixtures.RecordingLink{}
	resets := 0
	f, err := msc.New(id, link, func() { resets++ })
	if err != nil {
		return err
	}

	failed := 0
	step := func(name string, ok bool, attrs ...any) {
		if ok {
			logger.Info("ok: "+name, attrs...)
			return
		}
		failed++
		logger.Error("FAIL: "+name, attrs...)
	}

	// Device descriptor: 18 bytes, correct header.
	err = f.GetDescriptor(usb.RequestRecipientDevice, usb.DeviceDescType, 0, 0)
	dev, _ := link.LastSent()
	step("device descriptor", err == nil && len(dev) == usb.DeviceDescLen &&
		dev[0] == usb.DeviceDescLen && dev[1] == usb.DeviceDescType, "len", len(dev))

	// Configuration descriptor: declared wTotalLength matches the buffer.
	err = f.GetDescriptor(usb.RequestRecipientDevice, usb.ConfigDescType, 0, 0)
	cfg, _ := link.LastSent()
	total := 0
	if len(cfg) >= 4 {
		total = int(cfg[2]) | int(cfg[3])<<8
	}
	step("configuration descriptor", err == nil && total == len(cfg) && len(cfg) == 32,
		"len", len(cfg), "wTotalLength", total)

	// String descriptors 0..3 resolve, 4 does not.
	for i := uint8(0); i < 4; i++ {
		err = f.GetDescriptor(usb.RequestRecipientDevice, usb.StringDescType, i, 0)
		s, _ := link.LastSent()
		step(fmt.Sprintf("string descriptor %d", i),
			err == nil && len(s) >= 2 && s[1] == usb.StringDescType, "len", len(s))
	}
	err = f.GetDescriptor(usb.RequestRecipientDevice, usb.StringDescType, 4, 0)
	step("string descriptor out of range", err == msc.ErrUnsupported)

	// Wrong recipient or language index is never serviced.
	err = f.GetDescriptor(usb.RequestRecipientInterface, usb.DeviceDescType, 0, 0)
	step("non-device recipient rejected", err == msc.ErrUnsupported)
	err = f.GetDescriptor(usb.RequestRecipientDevice, usb.DeviceDescType, 0, 1)
	step("non-zero language index rejected", err == msc.ErrUnsupported)

	// GET_MAX_LUN returns the 4-byte zero LUN table.
	err = f.Setup(usb.RequestDirectionDeviceToHost|usb.RequestTypeClass|usb.RequestRecipientInterface,
		msc.RequestGetMaxLUN, 0, 1)
	lun, _ := link.LastSent()
	step("get max LUN", err == nil && bytes.Equal(lun, []byte{0, 0, 0, 0}), "payload", fmt.Sprintf("% x", lun))

	// MASS_STORAGE_RESET acknowledges without payload and fires the callback.
	sends := len(link.Sent)
	err = f.Setup(usb.RequestDirectionHostToDevice|usb.RequestTypeClass|usb.RequestRecipientInterface,
		msc.RequestMassStorageReset, 0, 0)
	step("mass storage reset", err == nil && resets == 1 && len(link.Sent) == sends, "resets", resets)

	// Unknown class requests in both directions are rejected.
	err = f.Setup(usb.RequestDirectionDeviceToHost, 0xAA, 0, 0)
	step("unknown read request rejected", err == msc.ErrUnsupported)
	err = f.Setup(usb.RequestDirectionHostToDevice, 0xAA, 0, 0)
	step("unknown write request rejected", err == msc.ErrUnsupported)

	// Interface activation configures the bulk pair; deactivation stalls it.
	link.Clear()
	f.SetupEndpointsForInterface(false)
	step("endpoints configured", len(link.Setups) == 1 &&
		link.Setups[0].Endpoint == msc.BulkEndpoint &&
		link.Setups[0].TransferType == usb.EndpointTypeBulk &&
		link.Setups[0].MaxPacketSize == msc.BulkMaxPacketSize)
	f.SetupEndpointsForInterface(true)
	step("endpoints stalled", len(link.StalledTx) == 1 && len(link.StalledRx) == 1)
	f.SetupEndpointsForInterface(false)
	step("endpoints reconfigured", len(link.Setups) == 2)

	if failed > 0 {
		return fmt.Errorf("enumeration check failed: %d of the steps did not pass", failed)
	}
	logger.Info("enumeration check passed")
	return nil
}
