package comms

import "fmt"

// AddressKind classifies a NetworkAddress.
type AddressKind uint8

// Address kinds.
const (
	KindUnknown AddressKind = iota
	KindBroadcast
	KindMissionControl
	KindEngineController
)

// Numeric address ids.
const (
	BroadcastID           = 0
	MissionControlID      = 1
	EngineControllerBase  = 21
	MaxEngineControllers  = 11
	UnknownID             = 0xFFFF
	engineControllerLimit = EngineControllerBase + MaxEngineControllers
)

// NetworkAddress identifies a node on the network.
type NetworkAddress struct {
	Kind  AddressKind
	Index uint8
}

// Well-known addresses.
var (
	Broadcast      = NetworkAddress{Kind: KindBroadcast}
	MissionControl = NetworkAddress{Kind: KindMissionControl}
)

// EngineController returns the address of the engine controller at index.
func EngineController(index uint8) NetworkAddress {
	return NetworkAddress{Kind: KindEngineController, Index: index}
}

// AddressFromID resolves a numeric id. Ids outside the known bands
// resolve to an address with Valid() == false.
func AddressFromID(id uint16) NetworkAddress {
	switch {
	case id == BroadcastID:
		return Broadcast
	case id == MissionControlID:
		return MissionControl
	case id >= EngineControllerBase && id < engineControllerLimit:
		return EngineController(uint8(id - EngineControllerBase))
	}
	return NetworkAddress{}
}

// Valid indicates the address maps to a numeric id.
func (a NetworkAddress) Valid() bool {
	switch a.Kind {
	case KindBroadcast, KindMissionControl:
		return a.Index == 0
	case KindEngineController:
		return a.Index < MaxEngineControllers
	}
	return false
}

// ID returns the numeric id, UnknownID for invalid addresses.
func (a NetworkAddress) ID() uint16 {
	if !a.Valid() {
		return UnknownID
	}
	switch a.Kind {
	case KindBroadcast:
		return BroadcastID
	case KindMissionControl:
		return MissionControlID
	}
	return EngineControllerBase + uint16(a.Index)
}

// String implements fmt.Stringer.
func (a NetworkAddress) String() string {
	if !a.Valid() {
		return "Unknown"
	}
	switch a.Kind {
	case KindBroadcast:
		return "Broadcast"
	case KindMissionControl:
		return "MissionControl"
	}
	return fmt.Sprintf("EngineController(%d)", a.Index)
}
