// SPDX-License-Identifier: Unlicense OR MIT

package net

import "encoding/binary"

const (
	ipHeaderLen   = 20
	icmpHeaderLen = 8

	icmpEchoReply   = 0
	icmpEchoRequest = 8

	ipProtoICMP = 1
)

var pingSeq uint16

// checksum is the standard Internet ones-complement checksum:
// 16-bit-word sum folded to 16 bits, then inverted.
func checksum(data []byte) uint16 {
	var sum uint32
	n := len(data)
	for n > 1 {
		sum += uint32(binary.BigEndian.Uint16(data))
		data = data[2:]
		n -= 2
	}
	if n == 1 {
		sum += uint32(data[0]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

func buildIPHeader(destIP uint32, protocol uint8, payloadLen int) []byte {
	hdr := make([]byte, ipHeaderLen)
	hdr[0] = 0x45 // version 4, 5 dwords
	hdr[1] = 0
	binary.BigEndian.PutUint16(hdr[2:4], uint16(ipHeaderLen+payloadLen))
	binary.BigEndian.PutUint16(hdr[4:6], pingSeq)
	binary.BigEndian.PutUint16(hdr[6:8], 0)
	hdr[8] = 64 // TTL
	hdr[9] = protocol
	binary.BigEndian.PutUint16(hdr[10:12], 0) // checksum, filled below
	binary.LittleEndian.PutUint32(hdr[12:16], ourIP)
	binary.LittleEndian.PutUint32(hdr[16:20], destIP)
	binary.BigEndian.PutUint16(hdr[10:12], checksum(hdr))
	return hdr
}

// ipSend wraps payload in an IP header addressed to destIP and sends
// it over Ethernet, resolving destIP's MAC first. If the address
// isn't cached yet, it kicks off an ARP request and reports that the
// send is pending rather than blocking for the reply.
func ipSend(destIP uint32, protocol uint8, payload []byte) error {
	if len(payload) > mtu-ipHeaderLen {
		return errFrameTooLarge
	}
	mac, ok := arpLookup(destIP)
	if !ok {
		arpRequestFor(destIP)
		return errARPPending
	}
	packet := append(buildIPHeader(destIP, protocol, len(payload)), payload...)
	return sendFrame(mac, ethertypeIPv4, packet)
}

func processIP(data []byte) {
	if len(data) < ipHeaderLen {
		return
	}
	if data[0]>>4 != 4 {
		return
	}
	destIP := binary.LittleEndian.Uint32(data[16:20])
	if destIP != ourIP {
		return
	}

	ihl := int(data[0]&0x0F) * 4
	totalLen := int(binary.BigEndian.Uint16(data[2:4]))
	if totalLen < ihl || totalLen > len(data) {
		return
	}
	payload := data[ihl:totalLen]
	protocol := data[9]
	srcIP := binary.LittleEndian.Uint32(data[12:16])

	if protocol == ipProtoICMP && len(payload) >= icmpHeaderLen {
		processICMP(srcIP, payload)
	}
}

func processICMP(srcIP uint32, data []byte) {
	if data[0] != icmpEchoRequest {
		return
	}
	id := binary.BigEndian.Uint16(data[4:6])
	seq := binary.BigEndian.Uint16(data[6:8])
	icmpReply(srcIP, id, seq, data[icmpHeaderLen:])
}

func icmpReply(destIP uint32, id, seq uint16, data []byte) error {
	packet := make([]byte, icmpHeaderLen+len(data))
	packet[0] = icmpEchoReply
	packet[1] = 0
	binary.BigEndian.PutUint16(packet[2:4], 0)
	binary.BigEndian.PutUint16(packet[4:6], id)
	binary.BigEndian.PutUint16(packet[6:8], seq)
	copy(packet[icmpHeaderLen:], data)
	binary.BigEndian.PutUint16(packet[2:4], checksum(packet))
	return ipSend(destIP, ipProtoICMP, packet)
}

// Ping sends an ICMP echo request to destIP. As with the original, a
// destination whose MAC isn't yet cached triggers an ARP request and
// returns errARPPending rather than blocking for the resolution.
func Ping(destIP uint32) error {
	if !Ready() {
		return ErrNotReady
	}
	packet := make([]byte, 64)
	packet[0] = icmpEchoRequest
	packet[1] = 0
	binary.BigEndian.PutUint16(packet[4:6], 0x1234)
	binary.BigEndian.PutUint16(packet[6:8], pingSeq)
	pingSeq++
	for i := icmpHeaderLen; i < len(packet); i++ {
		packet[i] = byte(i)
	}
	binary.BigEndian.PutUint16(packet[2:4], checksum(packet))
	return ipSend(destIP, ipProtoICMP, packet)
}
