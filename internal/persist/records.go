package persist

import (
	"encoding/binary"
	"fmt"
)

// HostIDKey is the canonical name under which the process host id is
// persisted; HostIDLegacyKey is accepted on read for compatibility
// with stores written by an older build (spec.md §6.2).
const (
	HostIDKey       = "host_id"
	HostIDLegacyKey = "hostid"
)

// RcptIDKey is the entry the receipt id high-water-mark is checkpointed
// under, so a restart resumes above the last persisted value instead of
// starting back at zero (spec.md §C).
const RcptIDKey = "rcptid"

// hostIDVersion is the only version this build writes; a future
// format change would bump it and DecodeHostID would branch on it.
const hostIDVersion byte = 0

// tagEndian prepends a one-byte big-endian marker (1 = big endian, 0 =
// little endian) ahead of body, matching the "one-byte version plus
// one-bit endian marker" header every persist record carries
// (spec.md §4.7). The marker is stored as a full byte rather than
// packed into the version byte's top bit, matching the worked
// examples in §6.2.
func tagEndian(bigEndian bool, body []byte) []byte {
	out := make([]byte, 1+len(body))
	if bigEndian {
		out[0] = 1
	}
	copy(out[1:], body)
	return out
}

func untagEndian(buf []byte) (bigEndian bool, body []byte, err error) {
	if len(buf) < 1 {
		return false, nil, fmt.Errorf("persist: record too short to carry an endian tag")
	}
	return buf[0] != 0, buf[1:], nil
}

// EncodeHostID produces the entry version and body for the host_id
// record: version=0, big-endian flag, u32 host id (spec.md §6.2).
func EncodeHostID(hostID uint32) (version byte, body []byte) {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, hostID)
	return hostIDVersion, tagEndian(true, raw)
}

// DecodeHostID parses a host_id record body, byte-swapping if it was
// written with the opposite endianness than this process would use.
func DecodeHostID(body []byte) (uint32, error) {
	bigEndian, raw, err := untagEndian(body)
	if err != nil {
		return 0, err
	}
	if len(raw) < 4 {
		return 0, fmt.Errorf("persist: host_id record truncated")
	}
	if bigEndian {
		return binary.BigEndian.Uint32(raw), nil
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// EncodeUint64BE produces a version/body pair for a single big-endian
// i64/u64 payload. The Kafka bookmark codec and the rcptid checkpoint
// use it; the journal and darwin-oslog codecs encode their own
// layouts (spec.md §6.2).
func EncodeUint64BE(version byte, value uint64) (byte, []byte) {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, value)
	return version, tagEndian(true, raw)
}

// DecodeUint64BE is the inverse of EncodeUint64BE, honoring whichever
// endianness tag the stored record carries.
func DecodeUint64BE(body []byte) (uint64, error) {
	bigEndian, raw, err := untagEndian(body)
	if err != nil {
		return 0, err
	}
	if len(raw) < 8 {
		return 0, fmt.Errorf("persist: record truncated")
	}
	if bigEndian {
		return binary.BigEndian.Uint64(raw), nil
	}
	return binary.LittleEndian.Uint64(raw), nil
}
