package roboclaw

// crc16 is CRC16-CCITT (XMODEM variant: poly 0x1021, init 0) as used by the
// driver's packet serial mode.
func crc16(data ...[]byte) uint16 {
	var crc uint16
	for _, d := range data {
		for _, b := range d {
			crc ^= uint16(b) << 8
			for i := 0; i < 8; i++ {
				if crc&0x8000 != 0 {
					crc = crc<<1 ^ 0x1021
				} else {
					crc <<= 1
				}
			}
		}
	}
	return crc
}
