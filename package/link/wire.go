package link

// Serialized frame image shared by the byte transports and the modem:
//   payloadLen(2, big-endian) | header(8) | headerCRC(1) | payload | payloadCRC(1)
// Header and payload are guarded by independent CRC8s so their validity
// flags stay independent.

func encodeFrameImage(header Header, payload []byte) []byte {
	image := make([]byte, 0, 2+HeaderLen+1+len(payload)+1)
	image = append(image, byte(len(payload)>>8), byte(len(payload)))
	image = append(image, header[:]...)
	image = append(image, checksum(header[:]))
	image = append(image, payload...)
	image = append(image, checksum(payload))
	return image
}

func decodeFrameImage(image []byte) *ReceivedFrame {
	if len(image) < 2+HeaderLen+2 {
		return nil
	}
	plen := int(image[0])<<8 | int(image[1])
	if plen > MaxPayloadLen || len(image) < 2+HeaderLen+1+plen+1 {
		return nil
	}

	var header Header
	copy(header[:], image[2:2+HeaderLen])
	payload := make([]byte, plen)
	copy(payload, image[2+HeaderLen+1:2+HeaderLen+1+plen])

	return &ReceivedFrame{
		Header:       header,
		HeaderValid:  checksum(header[:]) == image[2+HeaderLen],
		Payload:      payload,
		PayloadValid: checksum(payload) == image[2+HeaderLen+1+plen],
	}
}
