// Package hls owns the published object layout: output prefixes, segment
// and playlist names, and the master manifest.
package hls

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"hlsmill/internal/ladder"
)

const (
	// SegmentSeconds is the target duration of every media segment.
	SegmentSeconds = 10

	// MasterName is the filename of the top level manifest.
	MasterName = "master.m3u8"

	// DefaultIngestPrefix is stripped from source keys when deriving the
	// output prefix.
	DefaultIngestPrefix = "videos/"

	root = "hls"
)

// OutputPrefix derives the canonical output prefix for a source key. The
// key is truncated at its first dot, the first occurrence of the ingest
// prefix is removed, and doubled slashes are collapsed. The mapping is
// deterministic and applying it to its own output changes nothing.
func OutputPrefix(sourceKey, ingestPrefix string) string {
	prefix := sourceKey
	if i := strings.Index(prefix, "."); i >= 0 {
		prefix = prefix[:i]
	}
	if ingestPrefix != "" {
		prefix = strings.Replace(prefix, ingestPrefix, "", 1)
	}
	for strings.Contains(prefix, "//") {
		prefix = strings.ReplaceAll(prefix, "//", "/")
	}
	return prefix
}

// MasterKey is the destination key of the master manifest.
func MasterKey(prefix string) string {
	return fmt.Sprintf("%s/%s/%s", root, prefix, MasterName)
}

// ObjectKey is the destination key for one rendition output file, either
// a segment or the rendition's variant playlist.
func ObjectKey(prefix, rendition, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s", root, prefix, rendition, filename)
}

// PlaylistName is the variant playlist filename for a rendition.
func PlaylistName(rendition string) string {
	return rendition + ".m3u8"
}

// PadWidth is the zero pad width for segment indices: the number of
// digits in the estimated segment count, never less than one.
func PadWidth(durationSeconds float64, segmentSeconds int) int {
	if segmentSeconds <= 0 {
		return 1
	}
	segments := int(math.Ceil(durationSeconds / float64(segmentSeconds)))
	if segments < 1 {
		segments = 1
	}
	return len(strconv.Itoa(segments))
}

// SegmentPattern is the ffmpeg segment filename pattern for a rendition,
// e.g. "360p_%02d.ts".
func SegmentPattern(rendition string, padWidth int) string {
	return fmt.Sprintf("%s_%%0%dd.ts", rendition, padWidth)
}

// SegmentName expands SegmentPattern for one segment index.
func SegmentName(rendition string, padWidth, index int) string {
	return fmt.Sprintf("%s_%0*d.ts", rendition, padWidth, index)
}

// MasterManifest renders the master playlist for the planned renditions,
// in ladder order. An empty plan yields a manifest with only the header.
func MasterManifest(plan []ladder.Rendition) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, r := range plan {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n", r.BandwidthBits(), r.Resolution())
		fmt.Fprintf(&b, "%s/%s\n", r.Name, PlaylistName(r.Name))
	}
	return b.String()
}
