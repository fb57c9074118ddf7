package protocol

// CRC16 computes the CCITT checksum used in frame trailers.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, d := range data {
		d ^= uint8(crc)
		d ^= d << 4
		w := uint16(d)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}
