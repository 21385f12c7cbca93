package link

import "github.com/sigurn/crc8"

var crcTable = crc8.MakeTable(crc8.CRC8_MAXIM)

// checksum computes the CRC8 guarding a header or payload section.
func checksum(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

// UnpackBits expands bytes into one int per bit, MSB first.
func UnpackBits(data []byte) []int {
	bits := make([]int, 8*len(data))
	for i := range bits {
		byteIndex := i / 8
		bitIndex := 7 - (i % 8)
		if data[byteIndex]&(1<<bitIndex) != 0 {
			bits[i] = 1
		}
	}
	return bits
}

// PackBits collapses a bit array (one int per bit, MSB first) back into
// bytes. len(bits) must be a multiple of 8.
func PackBits(bits []int) []byte {
	data := make([]byte, len(bits)/8)
	for i, bit := range bits {
		if bit == 1 {
			data[i/8] |= 1 << (7 - i%8)
		}
	}
	return data
}
