// Package ladder holds the rendition catalog and decides which renditions
// a given source is allowed to produce.
package ladder

import "fmt"

// Rendition is one rung of the adaptive bitrate ladder.
type Rendition struct {
	Name             string
	Width            int
	Height           int
	VideoBitrateKbps int
}

// Resolution formats the target frame size for manifests.
func (r Rendition) Resolution() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// BandwidthBits is the advertised stream bandwidth in bits per second.
func (r Rendition) BandwidthBits() int {
	return r.VideoBitrateKbps * 1000
}

// VideoBitrate is the target video bitrate in ffmpeg notation.
func (r Rendition) VideoBitrate() string {
	return fmt.Sprintf("%dk", r.VideoBitrateKbps)
}

// MaxRate caps encoder spikes at 110% of the target bitrate.
func (r Rendition) MaxRate() string {
	return fmt.Sprintf("%dk", r.VideoBitrateKbps*110/100)
}

// BufSize sizes the rate control buffer at 150% of the target bitrate.
func (r Rendition) BufSize() string {
	return fmt.Sprintf("%dk", r.VideoBitrateKbps*150/100)
}

var catalog = []Rendition{
	{Name: "360p", Width: 640, Height: 360, VideoBitrateKbps: 800},
	{Name: "480p", Width: 842, Height: 480, VideoBitrateKbps: 1400},
	{Name: "720p", Width: 1280, Height: 720, VideoBitrateKbps: 2800},
	{Name: "1080p", Width: 1920, Height: 1080, VideoBitrateKbps: 5000},
}

// Catalog returns the full ladder ordered from lowest to highest quality.
func Catalog() []Rendition {
	return append([]Rendition(nil), catalog...)
}

// Plan keeps the renditions the source can feed without upscaling: both
// target dimensions must fit inside the probed frame. Order is preserved
// and the result may be empty.
func Plan(renditions []Rendition, sourceWidth, sourceHeight int) []Rendition {
	plan := make([]Rendition, 0, len(renditions))
	for _, r := range renditions {
		if r.Width <= sourceWidth && r.Height <= sourceHeight {
			plan = append(plan, r)
		}
	}
	return plan
}
