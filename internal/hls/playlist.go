// Package hls implements the HLS Validator: a hand-written RFC 8216 master
// and media playlist parser plus the rendition/segment validation pipeline
// described in §4.6.
package hls

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// masterRung is one variant entry extracted from a master playlist, before
// it is resolved against the request base URL.
type masterRung struct {
	BandwidthKbps int
	Resolution    string
	URI           string
}

// variantSegment is one media segment entry extracted from a variant
// playlist.
type variantSegment struct {
	Duration float64
	URI      string
}

// variantPlaylist is the parsed form of one rendition's media playlist.
type variantPlaylist struct {
	TargetDuration float64
	Segments       []variantSegment
	Discontinuity  bool
}

var streamInfBandwidthRegex = regexp.MustCompile(`BANDWIDTH=(\d+)`)
var streamInfResolutionRegex = regexp.MustCompile(`RESOLUTION=(\S+)`)

// parseMaster reads a master playlist (#EXT-X-STREAM-INF + URI pairs) and
// returns its variant rungs in file order.
func parseMaster(r io.Reader) ([]masterRung, error) {
	scanner := bufio.NewScanner(r)
	const maxLineSize = 1 << 20
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	var rungs []masterRung
	var pending *masterRung

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			rung := masterRung{}
			if m := streamInfBandwidthRegex.FindStringSubmatch(line); m != nil {
				if bw, err := strconv.Atoi(m[1]); err == nil {
					rung.BandwidthKbps = bw / 1000
				}
			}
			if m := streamInfResolutionRegex.FindStringSubmatch(line); m != nil {
				rung.Resolution = m[1]
			}
			pending = &rung

		case strings.HasPrefix(line, "#"):
			continue

		default:
			if pending != nil {
				pending.URI = line
				rungs = append(rungs, *pending)
				pending = nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning master playlist: %w", err)
	}
	return rungs, nil
}

// parseVariant reads a media (variant) playlist and returns its target
// duration, segments, and whether a discontinuity was signalled.
func parseVariant(r io.Reader) (*variantPlaylist, error) {
	scanner := bufio.NewScanner(r)
	const maxLineSize = 1 << 20
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	pl := &variantPlaylist{}
	var pendingDuration float64
	havePendingDuration := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			v := strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")
			if d, err := strconv.ParseFloat(v, 64); err == nil {
				pl.TargetDuration = d
			}

		case strings.HasPrefix(line, "#EXT-X-DISCONTINUITY"):
			pl.Discontinuity = true

		case strings.HasPrefix(line, "#EXTINF:"):
			v := strings.TrimPrefix(line, "#EXTINF:")
			v = strings.SplitN(v, ",", 2)[0]
			if d, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				pendingDuration = d
				havePendingDuration = true
			}

		case strings.HasPrefix(line, "#"):
			continue

		default:
			if havePendingDuration {
				pl.Segments = append(pl.Segments, variantSegment{Duration: pendingDuration, URI: line})
				havePendingDuration = false
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning variant playlist: %w", err)
	}
	return pl, nil
}

// segmentNumberFromURI extracts the segment number from the last
// hyphen-separated token before the file extension, per §4.6 (e.g.
// "channel-00042.ts" -> 42). Returns 0 if no numeric token is found.
func segmentNumberFromURI(uri string) int {
	base := path.Base(uri)
	base = strings.TrimSuffix(base, path.Ext(base))
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	token := base[idx+1:]
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0
	}
	return n
}

// rungIDFromURI derives a stable rung identifier from a variant URI stem.
func rungIDFromURI(uri string) string {
	base := path.Base(uri)
	return strings.TrimSuffix(base, path.Ext(base))
}
