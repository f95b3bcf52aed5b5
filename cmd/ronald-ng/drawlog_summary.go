package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"ronald-ng/internal/drawlog"
	"ronald-ng/internal/drawproto"
)

// printDrawlogSummary reads a recorded draw stream and prints per-operation
// counts, so a capture can be sanity-checked without replaying it.
func printDrawlogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := drawlog.NewReader(f).ReadAll()
	if err != nil {
		return err
	}
	s := drawlog.Summarize(records)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "frames: %d\n", s.Frames)
	fmt.Fprintf(w, "invalid_frames: %d\n", s.Invalid)
	fmt.Fprintf(w, "bad_crc: %d\n", s.BadCRC)
	fmt.Fprintf(w, "max_offset: %s\n", s.MaxOffset)
	fmt.Fprintf(w, "op_counts:\n")

	ids := make([]int, 0, len(s.OpCounts))
	for id := range s.OpCounts {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %d\n", opName(byte(id)), s.OpCounts[byte(id)])
	}
	return nil
}

func opName(id byte) string {
	switch id {
	case drawproto.MsgClear:
		return "clear"
	case drawproto.MsgLine:
		return "line"
	case drawproto.MsgBlit:
		return "blit"
	case drawproto.MsgPresent:
		return "present"
	}
	return fmt.Sprintf("0x%02X", id)
}
