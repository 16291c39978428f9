package drivers

import "fmt"

// journalBookmarkVersion is the only version this build writes for a
// systemd-journal source bookmark (spec.md §6.2: "version=0;
// big_endian flag; up to 1024-byte null-terminated cursor string").
const journalBookmarkVersion byte = 0

// MaxJournalCursorLen bounds the cursor string a journal bookmark may
// carry, matching the C source's fixed 1024-byte field.
const MaxJournalCursorLen = 1024

// JournalBookmarkKey builds the persist key for a systemd-journal
// source bookmark. An empty namespace uses the bare key; a non-empty
// one is scoped, matching the two forms spec.md §6.2 documents.
func JournalBookmarkKey(namespace string) string {
	if namespace == "" {
		return "systemd-journal"
	}
	return fmt.Sprintf("systemd_journal(%s)", namespace)
}

// EncodeJournalCursor stores cursor as a big-endian-tagged,
// null-terminated byte string, truncated to MaxJournalCursorLen-1
// bytes plus the terminator if necessary.
func EncodeJournalCursor(cursor string) (version byte, body []byte, err error) {
	raw := []byte(cursor)
	if len(raw) > MaxJournalCursorLen-1 {
		raw = raw[:MaxJournalCursorLen-1]
	}
	out := make([]byte, 0, len(raw)+2)
	out = append(out, 1) // big-endian tag byte
	out = append(out, raw...)
	out = append(out, 0)
	return journalBookmarkVersion, out, nil
}

// DecodeJournalCursor is the inverse of EncodeJournalCursor.
func DecodeJournalCursor(body []byte) (string, error) {
	if len(body) < 2 {
		return "", fmt.Errorf("drivers: journal bookmark record too short")
	}
	raw := body[1:]
	nul := len(raw)
	for i, b := range raw {
		if b == 0 {
			nul = i
			break
		}
	}
	return string(raw[:nul]), nil
}
