package msc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/RaymiiOrg/fraucheky/usb"
)

// Identity carries the per-build device identity baked into the descriptor
// tables: vendor/product IDs, the BCD device release number and the strings
// reported during enumeration.
type Identity struct {
	VendorID      uint16 `yaml:"vendor_id" toml:"vendor_id"`
	ProductID     uint16 `yaml:"product_id" toml:"product_id"`
	DeviceVersion uint16 `yaml:"device_version" toml:"device_version"` // BCD, e.g. 0x0100

	Vendor  string `yaml:"vendor" toml:"vendor"`
	Product string `yaml:"product" toml:"product"`
	Serial  string `yaml:"serial" toml:"serial"`
}

// DefaultIdentity returns the identity used when no identity file is given.
func DefaultIdentity() Identity {
	return Identity{
		VendorID:      0x234B, // Free Software Initiative of Japan
		ProductID:     0x0000,
		DeviceVersion: 0x0100,
		Vendor:        "Free Software Initiative of Japan",
		Product:       "Fraucheky",
		Serial:        "FSIJ-0.0",
	}
}

// LoadIdentity reads an identity file in YAML or TOML format, chosen by file
// extension. Fields left out of the file keep their zero value; string
// fields are filled from the defaults when the tables are built.
func LoadIdentity(path string) (Identity, error) {
	var id Identity
	data, err := os.ReadFile(path)
	if err != nil {
		return id, fmt.Errorf("identity: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &id); err != nil {
			return id, fmt.Errorf("identity: parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &id); err != nil {
			return id, fmt.Errorf("identity: parse %s: %w", path, err)
		}
	default:
		return id, fmt.Errorf("identity: unsupported file extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return id, nil
}

// withDefaults fills empty string fields from DefaultIdentity so a partial
// identity file still yields complete string descriptors.
func (id Identity) withDefaults() Identity {
	def := DefaultIdentity()
	if id.Vendor == "" {
		id.Vendor = def.Vendor
	}
	if id.Product == "" {
		id.Product = def.Product
	}
	if id.Serial == "" {
		id.Serial = def.Serial
	}
	return id
}

// descriptor assembles the full static descriptor set for the MSC function:
// one configuration, one Bulk-Only Transport interface, one bulk IN/OUT
// endpoint pair.
func (id Identity) descriptor() usb.Descriptor {
	return usb.Descriptor{
		Device: usb.DeviceDescriptor{
			BcdUSB:          0x0110,
			BDeviceClass:    0, // deferred to the interface
			BMaxPacketSize0: 64,
			IDVendor:        id.VendorID,
			IDProduct:       id.ProductID,
			BcdDevice:       id.DeviceVersion,
			IManufacturer:   1,
			IProduct:        2,
			ISerialNumber:   3,

			BNumConfigurations: 1,
		},
		Config: usb.ConfigHeader{
			BConfigurationValue: 1,
			BMAttributes:        busPoweredAttributes,
			BMaxPower:           maxPower100mA,
		},
		Interfaces: []usb.InterfaceConfig{{
			Descriptor: usb.InterfaceDescriptor{
				BInterfaceClass:    ClassMassStorage,
				BInterfaceSubClass: SubclassSCSI,
				BInterfaceProtocol: ProtocolBulkOnly,
			},
			Endpoints: []usb.EndpointDescriptor{
				{BEndpointAddress: BulkInAddress, BMAttributes: usb.EndpointTypeBulk, WMaxPacketSize: BulkMaxPacketSize},
				{BEndpointAddress: BulkOutAddress, BMAttributes: usb.EndpointTypeBulk, WMaxPacketSize: BulkMaxPacketSize},
			},
		}},
		Strings: []string{id.Vendor, id.Product, id.Serial},
	}
}
