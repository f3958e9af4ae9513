package msc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	fixtures "github.com/RaymiiOrg/fraucheky/internal/testing"
	"github.com/RaymiiOrg/fraucheky/msc"
	"github.com/RaymiiOrg/fraucheky/usb"
)

func newFunction(t *testing.T) (*msc.Function, *fixtures.RecordingLink, *int) {
	t.Helper()
	link := &fixtures.RecordingLink{}
	resets := 0
	f, err := msc.New(msc.DefaultIdentity(), link, func() { resets++ })
	if err != nil {
		t.Fatalf("msc.New: %v", err)
	}
	return f, link, &resets
}

func TestNewRequiresLink(t *testing.T) {
	_, err := msc.New(msc.DefaultIdentity(), nil, nil)
	assert.Error(t, err)
}

func TestGetDescriptorDevice(t *testing.T) {
	f, link, _ := newFunction(t)

	err := f.GetDescriptor(usb.RequestRecipientDevice, usb.DeviceDescType, 0, 0)
	assert.NoError(t, err)

	sent, ok := link.LastSent()
	assert.True(t, ok)
	assert.Equal(t, usb.Data{
		18,         // bLength
		0x01,       // bDescriptorType (DEVICE)
		0x10, 0x01, // bcdUSB = 1.1
		0x00,       // bDeviceClass: deferred to interface
		0x00,       // bDeviceSubClass
		0x00,       // bDeviceProtocol
		0x40,       // bMaxPacketSize0
		0x4B, 0x23, // idVendor (FSIJ)
		0x00, 0x00, // idProduct
		0x00, 0x01, // bcdDevice
		1, // iManufacturer
		2, // iProduct
		3, // iSerialNumber
		1, // bNumConfigurations
	}, sent)

	// The descriptor index is ignored for device descriptors.
	err = f.GetDescriptor(usb.RequestRecipientDevice, usb.DeviceDescType, 7, 0)
	assert.NoError(t, err)
	again, _ := link.LastSent()
	assert.Equal(t, sent, again)
}

func TestGetDescriptorConfiguration(t *testing.T) {
	f, link, _ := newFunction(t)

	err := f.GetDescriptor(usb.RequestRecipientDevice, usb.ConfigDescType, 0, 0)
	assert.NoError(t, err)

	sent, ok := link.LastSent()
	assert.True(t, ok)
	assert.Equal(t, usb.Data{
		// Configuration header: bus powered, 100 mA
		9, 0x02, 32, 0x00, 1, 0x01, 0x00, 0x80, 50,
		// Interface: Mass Storage, SCSI transparent, Bulk-Only
		9, 0x04, 0, 0x00, 0x02, 0x08, 0x06, 0x50, 0x00,
		// Bulk IN endpoint (IN6)
		7, 0x05, 0x86, 0x02, 0x40, 0x00, 0x00,
		// Bulk OUT endpoint (OUT6)
		7, 0x05, 0x06, 0x02, 0x40, 0x00, 0x00,
	}, sent)

	// wTotalLength matches the buffer length.
	assert.Equal(t, len(sent), int(sent[2])|int(sent[3])<<8)
}

func TestGetDescriptorStrings(t *testing.T) {
	f, link, _ := newFunction(t)
	id := msc.DefaultIdentity()

	expected := []usb.Data{
		{4, 0x03, 0x09, 0x04}, // LangID = 0x0409: US-English
		usb.EncodeStringDescriptor(id.Vendor),
		usb.EncodeStringDescriptor(id.Product),
		usb.EncodeStringDescriptor(id.Serial),
	}

	for i, want := range expected {
		err := f.GetDescriptor(usb.RequestRecipientDevice, usb.StringDescType, uint8(i), 0)
		assert.NoError(t, err, "string %d", i)
		sent, ok := link.LastSent()
		assert.True(t, ok)
		assert.Equal(t, want, sent, "string %d", i)
	}

	for _, i := range []uint8{4, 5, 255} {
		link.Clear()
		err := f.GetDescriptor(usb.RequestRecipientDevice, usb.StringDescType, i, 0)
		assert.ErrorIs(t, err, msc.ErrUnsupported, "string %d", i)
		assert.Empty(t, link.Sent)
	}
}

func TestGetDescriptorUnsupported(t *testing.T) {
	type testCase struct {
		name      string
		recipient uint8
		descType  uint8
		index     uint8
		langIndex uint16
	}

	cases := []testCase{
		{"interface recipient", usb.RequestRecipientInterface, usb.DeviceDescType, 0, 0},
		{"endpoint recipient", usb.RequestRecipientEndpoint, usb.ConfigDescType, 0, 0},
		{"other recipient", usb.RequestRecipientOther, usb.StringDescType, 0, 0},
		{"non-zero language index", usb.RequestRecipientDevice, usb.DeviceDescType, 0, 0x0409},
		{"interface descriptor type", usb.RequestRecipientDevice, usb.InterfaceDescType, 0, 0},
		{"endpoint descriptor type", usb.RequestRecipientDevice, usb.EndpointDescType, 0, 0},
		{"unknown descriptor type", usb.RequestRecipientDevice, 0x06, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, link, _ := newFunction(t)
			err := f.GetDescriptor(tc.recipient, tc.descType, tc.index, tc.langIndex)
			assert.ErrorIs(t, err, msc.ErrUnsupported)
			assert.Empty(t, link.Sent)
		})
	}
}

func TestSetupGetMaxLUN(t *testing.T) {
	f, link, _ := newFunction(t)
	reqType := uint8(usb.RequestDirectionDeviceToHost | usb.RequestTypeClass | usb.RequestRecipientInterface)

	err := f.Setup(reqType, msc.RequestGetMaxLUN, 0, 1)
	assert.NoError(t, err)
	sent, ok := link.LastSent()
	assert.True(t, ok)
	assert.Equal(t, usb.Data{0, 0, 0, 0}, sent)

	// value and length do not change the outcome.
	err = f.Setup(reqType, msc.RequestGetMaxLUN, 0xBEEF, 0xFFFF)
	assert.NoError(t, err)
	assert.Len(t, link.Sent, 2)
	assert.Equal(t, link.Sent[0], link.Sent[1])
}

func TestSetupMassStorageReset(t *testing.T) {
	f, link, resets := newFunction(t)
	reqType := uint8(usb.RequestDirectionHostToDevice | usb.RequestTypeClass | usb.RequestRecipientInterface)

	err := f.Setup(reqType, msc.RequestMassStorageReset, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, *resets)
	assert.Empty(t, link.Sent, "reset is acknowledged without payload")

	err = f.Setup(reqType, msc.RequestMassStorageReset, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, 2, *resets)
}

func TestSetupMassStorageResetWithoutCallback(t *testing.T) {
	link := &fixtures.RecordingLink{}
	f, err := msc.New(msc.DefaultIdentity(), link, nil)
	if err != nil {
		t.Fatalf("msc.New: %v", err)
	}

	err = f.Setup(usb.RequestDirectionHostToDevice, msc.RequestMassStorageReset, 0, 0)
	assert.NoError(t, err)
}

func TestSetupUnsupported(t *testing.T) {
	type testCase struct {
		name    string
		reqType uint8
		request uint8
	}

	cases := []testCase{
		{"unknown read request", usb.RequestDirectionDeviceToHost, 0xAA},
		{"reset code in read direction", usb.RequestDirectionDeviceToHost, msc.RequestMassStorageReset},
		{"unknown write request", usb.RequestDirectionHostToDevice, 0xAA},
		{"get max LUN in write direction", usb.RequestDirectionHostToDevice, msc.RequestGetMaxLUN},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, link, resets := newFunction(t)
			err := f.Setup(tc.reqType, tc.request, 0, 0)
			assert.ErrorIs(t, err, msc.ErrUnsupported)
			assert.Empty(t, link.Sent)
			assert.Zero(t, *resets)
		})
	}
}

func TestSetupEndpointsForInterface(t *testing.T) {
	f, link, _ := newFunction(t)

	f.SetupEndpointsForInterface(false)
	assert.Len(t, link.Setups, 1)
	assert.Equal(t, fixtures.EndpointSetup{
		Endpoint:      msc.BulkEndpoint,
		TransferType:  usb.EndpointTypeBulk,
		RxAddr:        0x1C0,
		TxAddr:        0x180,
		MaxPacketSize: msc.BulkMaxPacketSize,
	}, link.Setups[0])
	assert.Empty(t, link.StalledTx)
	assert.Empty(t, link.StalledRx)

	f.SetupEndpointsForInterface(true)
	assert.Equal(t, []uint8{msc.BulkEndpoint}, link.StalledTx)
	assert.Equal(t, []uint8{msc.BulkEndpoint}, link.StalledRx)

	// Reactivation reconfigures the same bulk pair.
	f.SetupEndpointsForInterface(false)
	assert.Len(t, link.Setups, 2)
	assert.Equal(t, link.Setups[0], link.Setups[1])
}

func TestSetupEndpointsIdempotent(t *testing.T) {
	f, link, _ := newFunction(t)

	f.SetupEndpointsForInterface(false)
	first := append([]string(nil), link.Calls...)

	link.Clear()
	f.SetupEndpointsForInterface(false)
	assert.Equal(t, first, link.Calls)

	link.Clear()
	f.SetupEndpointsForInterface(true)
	stalled := append([]string(nil), link.Calls...)

	link.Clear()
	f.SetupEndpointsForInterface(true)
	assert.Equal(t, stalled, link.Calls)
}

func TestHandleSetup(t *testing.T) {
	type testCase struct {
		name      string
		pkt       usb.SetupPacket
		err       error
		sentBytes int // length of the payload handed to the link, 0 for none
	}

	cases := []testCase{
		{
			name: "get device descriptor",
			pkt:  usb.SetupPacket{RequestType: 0x80, Request: usb.RequestGetDescriptor, Value: 0x0100, Length: 18},
			err:  nil, sentBytes: 18,
		},
		{
			name: "get configuration descriptor",
			pkt:  usb.SetupPacket{RequestType: 0x80, Request: usb.RequestGetDescriptor, Value: 0x0200, Length: 255},
			err:  nil, sentBytes: 32,
		},
		{
			name: "get language table",
			pkt:  usb.SetupPacket{RequestType: 0x80, Request: usb.RequestGetDescriptor, Value: 0x0300, Length: 255},
			err:  nil, sentBytes: 4,
		},
		{
			name: "get max LUN",
			pkt:  usb.SetupPacket{RequestType: 0xA1, Request: msc.RequestGetMaxLUN, Length: 1},
			err:  nil, sentBytes: 4,
		},
		{
			name: "mass storage reset",
			pkt:  usb.SetupPacket{RequestType: 0x21, Request: msc.RequestMassStorageReset},
			err:  nil, sentBytes: 0,
		},
		{
			name: "set descriptor is not handled",
			pkt:  usb.SetupPacket{RequestType: 0x00, Request: usb.RequestSetDescriptor, Value: 0x0100},
			err:  msc.ErrUnsupported,
		},
		{
			name: "vendor request is not handled",
			pkt:  usb.SetupPacket{RequestType: 0xC0, Request: 0x01},
			err:  msc.ErrUnsupported,
		},
		{
			name: "class request to device recipient is not handled",
			pkt:  usb.SetupPacket{RequestType: 0xA0, Request: msc.RequestGetMaxLUN, Length: 1},
			err:  msc.ErrUnsupported,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, link, _ := newFunction(t)
			pkt := tc.pkt
			err := f.HandleSetup(&pkt)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Empty(t, link.Sent)
				return
			}
			assert.NoError(t, err)
			if tc.sentBytes == 0 {
				assert.Empty(t, link.Sent)
				return
			}
			sent, ok := link.LastSent()
			assert.True(t, ok)
			assert.Len(t, sent, tc.sentBytes)
		})
	}
}
