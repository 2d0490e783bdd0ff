package blob

// ID is a labelled blob's LED identifier: a device id packed into the high
// bits and an LED index within that device's model packed into the low
// bits, so the device a labelled blob belongs to can be recovered directly
// from its label.
type ID int32

// InvalidID is LED_INVALID_ID: the blob carries no label.
const InvalidID ID = -1

// ledIndexBits is the width of the LED-index field; devices rarely carry
// more than a few dozen LEDs so 12 bits (4096 LEDs/device) is ample headroom.
const ledIndexBits = 12

const ledIndexMask = (1 << ledIndexBits) - 1

// EncodeID packs a device id and an LED index into a single ID.
func EncodeID(deviceID, ledIndex int) ID {
	return ID(deviceID<<ledIndexBits | (ledIndex & ledIndexMask))
}

// ObjectID extracts the device id from a labelled ID, or -1 if id is
// InvalidID.
func ObjectID(id ID) int {
	if id == InvalidID {
		return -1
	}
	return int(id) >> ledIndexBits
}

// LEDIndex extracts the LED index from a labelled ID, or -1 if id is
// InvalidID.
func LEDIndex(id ID) int {
	if id == InvalidID {
		return -1
	}
	return int(id) & ledIndexMask
}
