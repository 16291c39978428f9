package drivers

import (
	"encoding/binary"
	"fmt"
	"math"
)

// oslogBookmarkVersion is the only version this build writes for a
// darwin-oslog source bookmark (spec.md §6.2: "version=1; big_endian
// flag; f64 log_position, u32 last_msg_hash, u32
// last_used_filter_predicate_hash").
const oslogBookmarkVersion byte = 1

// OSLogBookmarkKey is the fixed persist key for the darwin-oslog
// source's single bookmark.
const OSLogBookmarkKey = "darwin-oslog"

// OSLogCursor is the unpacked body of a darwin-oslog bookmark.
type OSLogCursor struct {
	LogPosition             float64
	LastMsgHash             uint32
	LastUsedFilterPredicate uint32
}

// EncodeOSLogCursor packs c into the bit-exact layout spec.md §6.2
// requires: an 8-byte float64 followed by two 4-byte uint32s, all
// big-endian, behind the shared one-byte endian tag.
func EncodeOSLogCursor(c OSLogCursor) (version byte, body []byte) {
	raw := make([]byte, 16)
	binary.BigEndian.PutUint64(raw[0:8], math.Float64bits(c.LogPosition))
	binary.BigEndian.PutUint32(raw[8:12], c.LastMsgHash)
	binary.BigEndian.PutUint32(raw[12:16], c.LastUsedFilterPredicate)

	out := make([]byte, 0, len(raw)+1)
	out = append(out, 1)
	out = append(out, raw...)
	return oslogBookmarkVersion, out
}

// DecodeOSLogCursor is the inverse of EncodeOSLogCursor.
func DecodeOSLogCursor(body []byte) (OSLogCursor, error) {
	if len(body) < 17 {
		return OSLogCursor{}, fmt.Errorf("drivers: oslog bookmark record too short")
	}
	raw := body[1:]
	bigEndian := body[0] != 0

	get64 := binary.BigEndian.Uint64
	get32 := binary.BigEndian.Uint32
	if !bigEndian {
		get64 = binary.LittleEndian.Uint64
		get32 = binary.LittleEndian.Uint32
	}

	return OSLogCursor{
		LogPosition:             math.Float64frombits(get64(raw[0:8])),
		LastMsgHash:             get32(raw[8:12]),
		LastUsedFilterPredicate: get32(raw[12:16]),
	}, nil
}
