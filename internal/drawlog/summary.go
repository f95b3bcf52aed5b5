package drawlog

import (
	"time"

	"ronald-ng/internal/drawproto"
)

// Summary aggregates one session log. OpCounts only tallies frames that
// unframed cleanly with a matching CRC; structurally broken frames land in
// Invalid, intact frames with a CRC mismatch in BadCRC.
type Summary struct {
	Segments  int
	Frames    int
	Invalid   int
	BadCRC    int
	MaxOffset time.Duration
	OpCounts  map[byte]int
}

// Summarize walks a record list and reports what went over the display link.
func Summarize(records []Record) Summary {
	s := Summary{OpCounts: map[byte]int{}}
	if len(records) == 0 {
		return s
	}

	origin := time.Duration(0)
	hasFrames := false
	segments := 0

	for _, r := range records {
		if r.Frame == nil {
			segments++
			origin = r.At
			continue
		}
		hasFrames = true

		s.Frames++
		at := r.At - origin
		if at < 0 {
			at = 0
		}
		if at > s.MaxOffset {
			s.MaxOffset = at
		}

		msg, crcOK, err := drawproto.Unframe(r.Frame)
		if err != nil {
			s.Invalid++
			continue
		}
		if !crcOK {
			s.BadCRC++
			continue
		}
		id, ok := drawproto.MsgID(msg)
		if !ok {
			s.Invalid++
			continue
		}
		s.OpCounts[id]++
	}
	if segments == 0 && hasFrames {
		segments = 1
	}
	s.Segments = segments

	return s
}
