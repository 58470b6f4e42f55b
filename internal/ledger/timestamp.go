package ledger

import "time"

// EncodeTimestamp splits a millisecond timestamp into the two u32 halves the
// contract accepts, since the contract runtime has no native u64 arithmetic.
func EncodeTimestamp(ms uint64) (high, low uint32) {
	return uint32((ms >> 32) & 0xFFFFFFFF), uint32(ms & 0xFFFFFFFF)
}

// DecodeTimestamp joins the halves produced by EncodeTimestamp.
func DecodeTimestamp(high, low uint32) uint64 {
	return uint64(high)<<32 | uint64(low)
}

// TimestampHalves encodes t as unix milliseconds.
func TimestampHalves(t time.Time) (high, low uint32) {
	return EncodeTimestamp(uint64(t.UnixMilli()))
}
