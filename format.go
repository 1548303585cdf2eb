package mkey

// Wire format bytes. Changing any of these breaks every stored key.
const (
	Delimiter     byte = 0x00
	EscapeMarker  byte = 0x01
	ZeroMarker    byte = 0x40
	NegTerminator byte = 0xFF
	// TextPrefix shares its value with NegTerminator: the terminator only
	// ends a negative integer, the prefix only starts a component.
	TextPrefix    byte = 0xFF

	exponentBias = 0x40

	// int64 magnitudes need at most 10 base-100 digit pairs.
	maxDigitPairs = 10

	minPosExponent = exponentBias + 1
	maxPosExponent = exponentBias + maxDigitPairs
	maxNegExponent = exponentBias - 1 - 1
	minNegExponent = exponentBias - 1 - maxDigitPairs
)

var posCode = [100]byte{
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
	0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a,
	0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27, 0x28, 0x29, 0x2a,
	0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39, 0x3a,
	0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49, 0x4a,
	0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59, 0x5a,
	0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69, 0x6a,
	0x71, 0x72, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79, 0x7a,
	0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89, 0x8a,
	0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98, 0x99, 0x9a,
}

var negCode = [100]byte{
	0xfe, 0xfd, 0xfc, 0xfb, 0xfa, 0xf9, 0xf8, 0xf7, 0xf6, 0xf5,
	0xee, 0xed, 0xec, 0xeb, 0xea, 0xe9, 0xe8, 0xe7, 0xe6, 0xe5,
	0xde, 0xdd, 0xdc, 0xdb, 0xda, 0xd9, 0xd8, 0xd7, 0xd6, 0xd5,
	0xce, 0xcd, 0xcc, 0xcb, 0xca, 0xc9, 0xc8, 0xc7, 0xc6, 0xc5,
	0xbe, 0xbd, 0xbc, 0xbb, 0xba, 0xb9, 0xb8, 0xb7, 0xb6, 0xb5,
	0xae, 0xad, 0xac, 0xab, 0xaa, 0xa9, 0xa8, 0xa7, 0xa6, 0xa5,
	0x9e, 0x9d, 0x9c, 0x9b, 0x9a, 0x99, 0x98, 0x97, 0x96, 0x95,
	0x8e, 0x8d, 0x8c, 0x8b, 0x8a, 0x89, 0x88, 0x87, 0x86, 0x85,
	0x7e, 0x7d, 0x7c, 0x7b, 0x7a, 0x79, 0x78, 0x77, 0x76, 0x75,
	0x6e, 0x6d, 0x6c, 0x6b, 0x6a, 0x69, 0x68, 0x67, 0x66, 0x65,
}

// Inverse tables: byte → digit pair, or -1.
var (
	posDecode = invertCode(&posCode)
	negDecode = invertCode(&negCode)
)

func invertCode(code *[100]byte) [256]int8 {
	var inv [256]int8
	for i := range inv {
		inv[i] = -1
	}
	for d, b := range code {
		if inv[b] >= 0 {
			panic("mkey: code table is not injective")
		}
		inv[b] = int8(d)
	}
	return inv
}

func isIntLead(b byte) bool {
	return b == ZeroMarker ||
		(b >= minNegExponent && b <= maxNegExponent) ||
		(b >= minPosExponent && b <= maxPosExponent)
}
