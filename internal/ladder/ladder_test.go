package ladder

import (
	"reflect"
	"testing"
)

func names(plan []Rendition) []string {
	out := make([]string, 0, len(plan))
	for _, r := range plan {
		out = append(out, r.Name)
	}
	return out
}

func TestPlanFiltersUpscaledRenditions(t *testing.T) {
	cases := []struct {
		name   string
		width  int
		height int
		want   []string
	}{
		{"4k source keeps everything", 3840, 2160, []string{"360p", "480p", "720p", "1080p"}},
		{"1080p source keeps everything", 1920, 1080, []string{"360p", "480p", "720p", "1080p"}},
		{"720p source drops 1080p", 1280, 720, []string{"360p", "480p", "720p"}},
		{"exact 480p fit", 842, 480, []string{"360p", "480p"}},
		{"one pixel short of 480p width", 841, 480, []string{"360p"}},
		{"tall but narrow source", 640, 2160, []string{"360p"}},
		{"wide but short source", 3840, 359, nil},
		{"tiny source yields empty plan", 100, 100, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := Plan(Catalog(), tc.width, tc.height)
			got := names(plan)
			if len(tc.want) == 0 && len(got) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Plan(%dx%d) = %v, want %v", tc.width, tc.height, got, tc.want)
			}
		})
	}
}

func TestPlanPreservesCatalogOrder(t *testing.T) {
	plan := Plan(Catalog(), 1920, 1080)
	for i := 1; i < len(plan); i++ {
		if plan[i-1].VideoBitrateKbps >= plan[i].VideoBitrateKbps {
			t.Fatalf("plan out of order at %d: %v", i, names(plan))
		}
	}
}

func TestCatalogIsCopied(t *testing.T) {
	first := Catalog()
	first[0].Name = "mangled"
	if Catalog()[0].Name != "360p" {
		t.Fatal("mutating the returned slice changed the catalog")
	}
}

func TestRenditionFormatting(t *testing.T) {
	r := Rendition{Name: "480p", Width: 842, Height: 480, VideoBitrateKbps: 1400}

	if got := r.Resolution(); got != "842x480" {
		t.Errorf("Resolution() = %q", got)
	}
	if got := r.BandwidthBits(); got != 1400000 {
		t.Errorf("BandwidthBits() = %d", got)
	}
	if got := r.VideoBitrate(); got != "1400k" {
		t.Errorf("VideoBitrate() = %q", got)
	}
	if got := r.MaxRate(); got != "1540k" {
		t.Errorf("MaxRate() = %q", got)
	}
	if got := r.BufSize(); got != "2100k" {
		t.Errorf("BufSize() = %q", got)
	}
}
