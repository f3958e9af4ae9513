// Package testing provides shared fakes for exercising the MSC responder
// without a real USB link-layer driver.
package testing

import (
	"fmt"

	"github.com/RaymiiOrg/fraucheky/msc"
	"github.com/RaymiiOrg/fraucheky/usb"
)

// EndpointSetup records the arguments of one SetupEndpoint call.
type EndpointSetup struct {
	Endpoint      uint8
	TransferType  uint8
	RxAddr        uint16
	TxAddr        uint16
	MaxPacketSize uint16
}

// RecordingLink implements msc.Link and records every primitive call in
// order, so tests can assert on exact side effects.
type RecordingLink struct {
	Setups    []EndpointSetup
	StalledTx []uint8
	StalledRx []uint8
	Sent      []usb.Data
	Calls     []string // one entry per primitive call, in order
}

var _ msc.Link = (*RecordingLink)(nil)

func (l *RecordingLink) SetupEndpoint(ep uint8, transferType uint8, rxAddr, txAddr uint16, maxPacketSize uint16) {
	l.Setups = append(l.Setups, EndpointSetup{
		Endpoint:      ep,
		TransferType:  transferType,
		RxAddr:        rxAddr,
		TxAddr:        txAddr,
		MaxPacketSize: maxPacketSize,
	})
	l.Calls = append(l.Calls, fmt.Sprintf("SetupEndpoint(%d,%d,0x%04X,0x%04X,%d)", ep, transferType, rxAddr, txAddr, maxPacketSize))
}

func (l *RecordingLink) StallTx(ep uint8) {
	l.StalledTx = append(l.StalledTx, ep)
	l.Calls = append(l.Calls, fmt.Sprintf("StallTx(%d)", ep))
}

func (l *RecordingLink) StallRx(ep uint8) {
	l.StalledRx = append(l.StalledRx, ep)
	l.Calls = append(l.Calls, fmt.Sprintf("StallRx(%d)", ep))
}

func (l *RecordingLink) SetDataToSend(data usb.Data) {
	l.Sent = append(l.Sent, data)
	l.Calls = append(l.Calls, fmt.Sprintf("SetDataToSend(%d bytes)", len(data)))
}

// LastSent returns the most recent SetDataToSend payload.
func (l *RecordingLink) LastSent() (usb.Data, bool) {
	if len(l.Sent) == 0 {
		return nil, false
	}
	return l.Sent[len(l.Sent)-1], true
}

// Clear drops all recorded calls.
func (l *RecordingLink) Clear() {
	l.Setups = nil
	l.StalledTx = nil
	l.StalledRx = nil
	l.Sent = nil
	l.Calls = nil
}
