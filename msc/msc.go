// Package msc implements the USB enumeration and control-request responder
// for a Mass Storage Class device function (Bulk-Only Transport, SCSI
// transparent command set).
//
// The package does not talk to hardware itself. All endpoint side effects go
// through the Link interface, which the USB link-layer driver implements, and
// all entry points are meant to be called synchronously from that driver's
// event-dispatch context. SCSI command interpretation and block I/O belong to
// a higher layer; on MASS_STORAGE_RESET the responder only invokes the reset
// callback handed to New.
package msc

import (
	"errors"

	"github.com/RaymiiOrg/fraucheky/usb"
)

// Class-specific MSC control request codes (Bulk-Only Transport spec).
const (
	RequestGetMaxLUN        = 0xFE
	RequestMassStorageReset = 0xFF
)

// MSC interface identification codes.
const (
	ClassMassStorage = 0x08 // bInterfaceClass
	SubclassSCSI     = 0x06 // SCSI transparent command set
	ProtocolBulkOnly = 0x50 // Bulk-Only Transport
)

// Bulk endpoint pair used for MSC data transfer.
const (
	BulkEndpoint      = 6    // endpoint number, both directions
	BulkInAddress     = 0x86 // bEndpointAddress (IN6)
	BulkOutAddress    = 0x06 // bEndpointAddress (OUT6)
	BulkMaxPacketSize = 64
)

// Packet-memory offsets for the bulk endpoint buffers in the link-layer
// driver's endpoint RAM.
const (
	bulkTxAddr = 0x180
	bulkRxAddr = 0x1C0
)

// Configuration descriptor attributes: bus powered, 100 mA.
const (
	busPoweredAttributes = 0x80
	maxPower100mA        = 50 // in 2 mA units
)

// ErrUnsupported signals that a request or descriptor combination is not
// recognized. The link-layer driver is expected to fall back to its
// protocol-default behavior, typically a stall.
var ErrUnsupported = errors.New("msc: unsupported request")

// lunTable is the response to GET_MAX_LUN: four logical units, all zero.
var lunTable = usb.Data{0, 0, 0, 0}

// Link is the set of primitives the USB link-layer driver provides to the
// responder. SetupEndpoint configures both directions of an endpoint pair
// for the given transfer type and packet-memory addresses; StallTx and
// StallRx stall one direction each; SetDataToSend hands the driver the
// buffer for the next IN data stage. The buffer is shared and must not be
// mutated by the driver.
type Link interface {
	SetupEndpoint(ep uint8, transferType uint8, rxAddr, txAddr uint16, maxPacketSize uint16)
	StallTx(ep uint8)
	StallRx(ep uint8)
	SetDataToSend(data usb.Data)
}

// Function is the MSC device function. Its descriptor tables are built once
// in New and never mutated afterwards, so the entry points are safe to call
// repeatedly from the link-layer event context.
type Function struct {
	link  Link
	reset func()

	deviceDesc usb.Data
	configDesc usb.Data
	stringDesc []usb.Data // index 0 is the language table
}

// New builds the descriptor tables for the given identity and returns a
// Function bound to the link-layer driver. reset is invoked when the host
// issues MASS_STORAGE_RESET; a nil reset means the request is acknowledged
// without further effect.
func New(id Identity, link Link, reset func()) (*Function, error) {
	if link == nil {
		return nil, errors.New("msc: nil link")
	}
	desc := id.withDefaults().descriptor()

	f := &Function{
		link:       link,
		reset:      reset,
		deviceDesc: desc.DeviceBytes(),
		configDesc: desc.ConfigBytes(),
	}
	for i := uint8(0); i <= uint8(len(desc.Strings)); i++ {
		s, ok := desc.StringBytes(i, usb.LangIDEnglishUS)
		if !ok {
			return nil, errors.New("msc: string descriptor table build failed")
		}
		f.stringDesc = append(f.stringDesc, s)
	}
	return f, nil
}

// GetDescriptor services a standard GET_DESCRIPTOR request. Only the device
// recipient with language index 0 is handled; device, configuration and
// in-range string descriptors are handed to the link layer's outbound-data
// primitive. Everything else returns ErrUnsupported so the caller can fall
// back to its default behavior.
func (f *Function) GetDescriptor(recipient, descType, descIndex uint8, langIndex uint16) error {
	if recipient != usb.RequestRecipientDevice || langIndex != 0 {
		return ErrUnsupported
	}
	switch descType {
	case usb.DeviceDescType:
		f.link.SetDataToSend(f.deviceDesc)
		return nil
	case usb.ConfigDescType:
		f.link.SetDataToSend(f.configDesc)
		return nil
	case usb.StringDescType:
		if int(descIndex) >= len(f.stringDesc) {
			return ErrUnsupported
		}
		f.link.SetDataToSend(f.stringDesc[descIndex])
		return nil
	}
	return ErrUnsupported
}

// Setup services a class-specific control request. requestType is the raw
// bmRequestType byte; only its direction bit is consulted. GET_MAX_LUN
// returns the fixed LUN table, MASS_STORAGE_RESET acknowledges the handshake
// and triggers the reset callback. value and length are accepted for the
// protocol signature but unused by the two supported requests.
func (f *Function) Setup(requestType, request uint8, value, length uint16) error {
	_, _ = value, length
	if requestType&usb.RequestTypeDirectionMask == usb.RequestDirectionDeviceToHost {
		if request == RequestGetMaxLUN {
			f.link.SetDataToSend(lunTable)
			return nil
		}
		return ErrUnsupported
	}
	if request == RequestMassStorageReset {
		if f.reset != nil {
			f.reset()
		}
		return nil
	}
	return ErrUnsupported
}

// SetupEndpointsForInterface configures or stalls the bulk endpoint pair.
// stop=false configures both directions for bulk transfer with the fixed
// packet-memory addresses; stop=true stalls transmit and receive. The call
// is idempotent: repeating it re-issues the same link-layer calls.
func (f *Function) SetupEndpointsForInterface(stop bool) {
	if !stop {
		f.link.SetupEndpoint(BulkEndpoint, usb.EndpointTypeBulk, bulkRxAddr, bulkTxAddr, BulkMaxPacketSize)
		return
	}
	f.link.StallTx(BulkEndpoint)
	f.link.StallRx(BulkEndpoint)
}

// HandleSetup routes a raw SETUP packet to the matching entry point:
// standard GET_DESCRIPTOR requests to GetDescriptor, class requests
// addressed to the interface to Setup. Anything else is ErrUnsupported.
func (f *Function) HandleSetup(pkt *usb.SetupPacket) error {
	switch pkt.Type() {
	case usb.RequestTypeStandard:
		if pkt.Request == usb.RequestGetDescriptor && pkt.IsDeviceToHost() {
			return f.GetDescriptor(pkt.Recipient(), pkt.DescriptorType(), pkt.DescriptorIndex(), pkt.Index)
		}
	case usb.RequestTypeClass:
		if pkt.Recipient() == usb.RequestRecipientInterface {
			return f.Setup(pkt.RequestType, pkt.Request, pkt.Value, pkt.Length)
		}
	}
	return ErrUnsupported
}

// DeviceDescriptor returns the prebuilt 18-byte device descriptor.
func (f *Function) DeviceDescriptor() usb.Data { return f.deviceDesc }

// ConfigDescriptor returns the prebuilt configuration descriptor, including
// the interface and endpoint descriptors.
func (f *Function) ConfigDescriptor() usb.Data { return f.configDesc }

// StringDescriptorCount returns the number of string descriptors, including
// the language table at index 0.
func (f *Function) StringDescriptorCount() int { return len(f.stringDesc) }

// StringDescriptor returns the string descriptor at the given index, or
// ok=false when the index is out of range.
func (f *Function) StringDescriptor(index uint8) (data usb.Data, ok bool) {
	if int(index) >= len(f.stringDesc) {
		return nil, false
	}
	return f.stringDesc[index], true
}
