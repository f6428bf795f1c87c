// Package protocol defines the wire packets exchanged between a ted
// client and the session server, and the binary codec that (de)serializes
// them: length-delimited, little-endian, fixed-width integers, tag bytes
// ahead of variant payloads.
package protocol

// ClientID identifies one connected client for the lifetime of its
// connection. The wire format carries it as a u32.
type ClientID uint32

// SystemClientID marks operations that originated from the server itself
// (for example, the initial Insert synthesized when a session is restored
// from a persisted snapshot) rather than from any connected client. It is
// the maximum ClientID value so it never collides with a real, sequentially
// assigned client id.
const SystemClientID ClientID = ^ClientID(0)
