// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

/*
UDP Packet Structure (BigEndian)

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Magnitude   |     CQT Magnitudes      |
|      (uint32)     |   (int64, unix ns)    |     Count     |      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the fixed packet prefix before the magnitudes.
const HeaderSize = 4 + 8 + 2

// MaxMagnitudes is the largest bin count a packet can describe.
const MaxMagnitudes = math.MaxUint16

var ErrShortPacket = errors.New("udp packet too short")

// Packet is a decoded spectrum packet.
type Packet struct {
	Seq        uint32
	Timestamp  int64
	Magnitudes []float32
}

// AppendPacket appends the encoded packet to dst. Magnitudes beyond
// MaxMagnitudes are dropped.
func AppendPacket(dst []byte, seq uint32, timestamp int64, magnitudes []float32) []byte {
	if len(magnitudes) > MaxMagnitudes {
		magnitudes = magnitudes[:MaxMagnitudes]
	}
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(magnitudes)))
	for _, m := range magnitudes {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(m))
	}
	return dst
}

// DecodePacket parses b.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	body := b[HeaderSize:]
	if len(body) < n*4 {
		return Packet{}, fmt.Errorf("%w: %d magnitudes declared, %d bytes present", ErrShortPacket, n, len(body))
	}
	p.Magnitudes = make([]float32, n)
	for i := range p.Magnitudes {
		p.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
	}
	return p, nil
}
