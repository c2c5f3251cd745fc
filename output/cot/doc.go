// Package cot renders display records as Cursor-on-Target XML events and
// sends each one as a single UDP datagram to a TAK consumer.
//
// The output subscribes to the internal display subject, builds one CoT
// event per record and writes it to either a unicast TAK server address or
// a multicast group. Delivery is fire-and-forget: there is no
// acknowledgement, no retry, and a send failure abandons that event.
//
// Records that carry no usable drone position are skipped entirely rather
// than plotted at a bogus location. Every emitted event is marked stale a
// fixed 75 seconds after its start time, so a drone that stops reporting
// ages off the TAK display on its own.
//
// Destination selection:
//
//	config := cot.Config{
//	    Mode: cot.ModeMulticast,          // or cot.ModeUnicast
//	    MulticastGroup: "239.2.3.1",
//	    MulticastPort:  6969,
//	}
//
// For multicast destinations the socket keeps the kernel default TTL of 1,
// which confines datagrams to the local network segment.
package cot
