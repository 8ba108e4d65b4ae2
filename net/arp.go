// SPDX-License-Identifier: Unlicense OR MIT

package net

import "encoding/binary"

const (
	arpRequest = 1
	arpReply   = 2

	arpCacheSize = 16
	arpPacketLen = 28 // htype,ptype,hlen,plen,oper,sha,spa,tha,tpa
)

type arpEntry struct {
	ip    uint32
	mac   [6]byte
	valid bool
}

var arpCache [arpCacheSize]arpEntry

func resetARPCache() {
	for i := range arpCache {
		arpCache[i] = arpEntry{}
	}
}

// arpLookup returns the MAC cached for ip, if any.
func arpLookup(ip uint32) (mac [6]byte, ok bool) {
	for i := range arpCache {
		if arpCache[i].valid && arpCache[i].ip == ip {
			return arpCache[i].mac, true
		}
	}
	return mac, false
}

// arpCacheAdd inserts or updates the entry for ip. If the cache is
// full and ip isn't already present, it overwrites slot 0 rather
// than refusing the update — the same eviction rule the original
// driver uses, carried over unchanged.
func arpCacheAdd(ip uint32, mac [6]byte) {
	slot := -1
	for i := range arpCache {
		if !arpCache[i].valid {
			slot = i
			break
		}
		if arpCache[i].ip == ip {
			slot = i
			break
		}
	}
	if slot < 0 {
		slot = 0
	}
	arpCache[slot] = arpEntry{ip: ip, mac: mac, valid: true}
}

func buildARPPacket(oper uint16, spa uint32, tha [6]byte, tpa uint32) []byte {
	pkt := make([]byte, arpPacketLen)
	binary.BigEndian.PutUint16(pkt[0:2], 1)      // htype: Ethernet
	binary.BigEndian.PutUint16(pkt[2:4], 0x0800) // ptype: IPv4
	pkt[4] = 6
	pkt[5] = 4
	binary.BigEndian.PutUint16(pkt[6:8], oper)
	copy(pkt[8:14], ourMAC[:])
	binary.LittleEndian.PutUint32(pkt[14:18], spa)
	copy(pkt[18:24], tha[:])
	binary.LittleEndian.PutUint32(pkt[24:28], tpa)
	return pkt
}

// arpRequestFor broadcasts a request resolving targetIP.
func arpRequestFor(targetIP uint32) error {
	pkt := buildARPPacket(arpRequest, ourIP, [6]byte{}, targetIP)
	return sendBroadcast(ethertypeARP, pkt)
}

func arpReplyTo(destMAC [6]byte, destIP uint32) error {
	pkt := buildARPPacket(arpReply, ourIP, destMAC, destIP)
	return sendFrame(destMAC, ethertypeARP, pkt)
}

// processARP handles one inbound ARP packet: it always refreshes the
// cache from the sender's claimed address, then answers a request
// addressed to us.
func processARP(data []byte) {
	if len(data) < arpPacketLen {
		return
	}
	htype := binary.BigEndian.Uint16(data[0:2])
	ptype := binary.BigEndian.Uint16(data[2:4])
	hlen, plen := data[4], data[5]
	if htype != 1 || ptype != 0x0800 || hlen != 6 || plen != 4 {
		return
	}

	oper := binary.BigEndian.Uint16(data[6:8])
	var sha [6]byte
	copy(sha[:], data[8:14])
	spa := binary.LittleEndian.Uint32(data[14:18])
	tpa := binary.LittleEndian.Uint32(data[24:28])

	arpCacheAdd(spa, sha)

	if tpa != ourIP {
		return
	}
	if oper == arpRequest {
		arpReplyTo(sha, spa)
	}
}
