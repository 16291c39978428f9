// Package drivers holds the source/destination plug-ins the core's
// LogSource, LogReader, and LogWriter contracts are written against:
// a Kafka source and destination built on twmb/franz-go, and bookmark
// codecs for the systemd-journal and darwin-oslog formats spec.md
// §6.2 defines bit-exactly.
package drivers

import (
	"fmt"

	"github.com/flowlog-io/flowlog/internal/persist"
)

// kafkaBookmarkVersion is the only version this build writes for a
// Kafka source bookmark (spec.md §6.2: "version=1; big_endian flag;
// i64 offset (+1 as stored)").
const kafkaBookmarkVersion byte = 1

// KafkaBookmarkKey builds the persist key a Kafka source bookmark is
// stored under: `kafka(<group>).<topic>#<partition>`.
func KafkaBookmarkKey(group, topic string, partition int32) string {
	return fmt.Sprintf("kafka(%s).%s#%d", group, topic, partition)
}

// EncodeKafkaOffset stores offset+1, matching the C source's
// convention of using 0 to mean "no committed offset" so genuine
// offset 0 round-trips (spec.md §6.2 "(+1 as stored)").
func EncodeKafkaOffset(offset int64) (version byte, body []byte) {
	return persist.EncodeUint64BE(kafkaBookmarkVersion, uint64(offset+1))
}

// DecodeKafkaOffset is the inverse of EncodeKafkaOffset. A body
// decoding to 0 means no committed offset; callers should start from
// the partition's earliest offset in that case.
func DecodeKafkaOffset(body []byte) (offset int64, hasOffset bool, err error) {
	stored, err := persist.DecodeUint64BE(body)
	if err != nil {
		return 0, false, err
	}
	if stored == 0 {
		return 0, false, nil
	}
	return int64(stored) - 1, true, nil
}
