package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"hlsmill/internal/config"
	"hlsmill/internal/faults"
	"hlsmill/internal/hls"
	"hlsmill/internal/notify"
	"hlsmill/internal/probe"
	"hlsmill/internal/transcode"
)

type fakeStore struct {
	mu          sync.Mutex
	downloads   []string
	uploads     map[string][]byte
	downloadErr error
	failSuffix  string
}

func (s *fakeStore) Download(ctx context.Context, bucket, key, destPath string) error {
	s.mu.Lock()
	s.downloads = append(s.downloads, bucket+"/"+key)
	err := s.downloadErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte("fake media"), 0o644)
}

func (s *fakeStore) UploadFile(ctx context.Context, bucket, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSuffix != "" && strings.HasSuffix(key, s.failSuffix) {
		return errors.New("upload refused")
	}
	if s.uploads == nil {
		s.uploads = map[string][]byte{}
	}
	s.uploads[key] = data
	return nil
}

func (s *fakeStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.uploads))
	for key := range s.uploads {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

type fakeEncoder struct {
	jobs     []transcode.Job
	failOn   string
	segments int
}

func (e *fakeEncoder) Encode(ctx context.Context, job transcode.Job) error {
	e.jobs = append(e.jobs, job)
	name := job.Rendition.Name
	if e.failOn == name {
		return errors.New("encoder exploded")
	}
	playlist := filepath.Join(job.OutputDir, hls.PlaylistName(name))
	if err := os.WriteFile(playlist, []byte("#EXTM3U\n"), 0o644); err != nil {
		return err
	}
	for i := 0; i < e.segments; i++ {
		segment := filepath.Join(job.OutputDir, hls.SegmentName(name, job.SegmentPadWidth, i))
		if err := os.WriteFile(segment, []byte("segment"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeNotifier struct {
	statuses []notify.Status
}

func (n *fakeNotifier) Publish(ctx context.Context, jobID string, status notify.Status) error {
	n.statuses = append(n.statuses, status)
	return nil
}

func probeResult(duration float64, width, height int) ProbeFunc {
	return func(ctx context.Context, path string) (probe.Result, error) {
		return probe.Result{DurationSeconds: duration, Width: width, Height: height}, nil
	}
}

func testConfig() config.Worker {
	return config.Worker{
		Region:       "us-east-1",
		SourceBucket: "ingest",
		SourceKey:    "videos/clips/demo.mp4",
		DestBucket:   "prod-streams",
		JobID:        "job-1",
		IngestPrefix: "videos/",
	}
}

func TestRunPublishesFullLadder(t *testing.T) {
	store := &fakeStore{}
	encoder := &fakeEncoder{segments: 2}
	notifier := &fakeNotifier{}
	w := New(testConfig(), store, encoder, probeResult(95, 1280, 720), notifier)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := []string{
		"hls/clips/demo/360p/360p.m3u8",
		"hls/clips/demo/360p/360p_00.ts",
		"hls/clips/demo/360p/360p_01.ts",
		"hls/clips/demo/480p/480p.m3u8",
		"hls/clips/demo/480p/480p_00.ts",
		"hls/clips/demo/480p/480p_01.ts",
		"hls/clips/demo/720p/720p.m3u8",
		"hls/clips/demo/720p/720p_00.ts",
		"hls/clips/demo/720p/720p_01.ts",
		"hls/clips/demo/master.m3u8",
	}
	if got := store.keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("uploaded keys:\n%v\nwant:\n%v", got, want)
	}

	manifest := string(store.uploads["hls/clips/demo/master.m3u8"])
	if !strings.HasPrefix(manifest, "#EXTM3U\n#EXT-X-VERSION:3\n") {
		t.Errorf("manifest missing header:\n%s", manifest)
	}
	for _, line := range []string{
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360",
		"#EXT-X-STREAM-INF:BANDWIDTH=1400000,RESOLUTION=842x480",
		"#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720",
		"720p/720p.m3u8",
	} {
		if !strings.Contains(manifest, line) {
			t.Errorf("manifest missing %q:\n%s", line, manifest)
		}
	}
	if strings.Contains(manifest, "1080p") {
		t.Errorf("manifest advertises an upscaled rendition:\n%s", manifest)
	}

	wantStatuses := []notify.Status{
		notify.StatusQueued,
		notify.StatusTranscoding,
		notify.StatusUploading,
		notify.StatusFinished,
	}
	if !reflect.DeepEqual(notifier.statuses, wantStatuses) {
		t.Errorf("statuses = %v, want %v", notifier.statuses, wantStatuses)
	}
}

func TestRunEncodesInLadderOrderWithPadWidth(t *testing.T) {
	store := &fakeStore{}
	encoder := &fakeEncoder{segments: 1}
	w := New(testConfig(), store, encoder, probeResult(95, 1920, 1080), nil)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var order []string
	for _, job := range encoder.jobs {
		order = append(order, job.Rendition.Name)
		if job.SegmentPadWidth != 2 {
			t.Errorf("%s pad width = %d, want 2", job.Rendition.Name, job.SegmentPadWidth)
		}
		if job.InputPath == "" || job.OutputDir == "" {
			t.Errorf("job paths not set: %+v", job)
		}
	}
	want := []string{"360p", "480p", "720p", "1080p"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("encode order = %v, want %v", order, want)
	}
}

func TestRunStopsAtFirstEncodeFailure(t *testing.T) {
	store := &fakeStore{}
	encoder := &fakeEncoder{segments: 2, failOn: "480p"}
	notifier := &fakeNotifier{}
	w := New(testConfig(), store, encoder, probeResult(95, 1280, 720), notifier)

	err := w.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded despite encode failure")
	}
	if !errors.Is(err, faults.ErrMedia) {
		t.Errorf("error not classified as media: %v", err)
	}

	// The completed rendition stays published; the failure only blocks
	// everything after it.
	keys := store.keys()
	if len(keys) != 3 {
		t.Errorf("uploaded keys = %v, want the three 360p files", keys)
	}
	for _, key := range keys {
		if !strings.Contains(key, "/360p/") {
			t.Errorf("unexpected upload after failure: %s", key)
		}
	}
	if _, ok := store.uploads["hls/clips/demo/master.m3u8"]; ok {
		t.Error("master manifest published for a failed job")
	}

	if len(encoder.jobs) != 2 {
		t.Errorf("attempted %d encodes, want 2 (stop at first failure)", len(encoder.jobs))
	}

	if len(notifier.statuses) == 0 || notifier.statuses[len(notifier.statuses)-1] != notify.StatusFailed {
		t.Errorf("statuses = %v, want trailing failed", notifier.statuses)
	}
}

func TestRunPublishesEmptyManifestForTinySource(t *testing.T) {
	store := &fakeStore{}
	encoder := &fakeEncoder{segments: 2}
	w := New(testConfig(), store, encoder, probeResult(30, 320, 240), nil)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(encoder.jobs) != 0 {
		t.Errorf("encoded %d renditions for a source below the ladder", len(encoder.jobs))
	}
	want := []string{"hls/clips/demo/master.m3u8"}
	if got := store.keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("uploaded keys = %v, want %v", got, want)
	}
	if got := string(store.uploads["hls/clips/demo/master.m3u8"]); got != "#EXTM3U\n#EXT-X-VERSION:3\n" {
		t.Errorf("empty plan manifest = %q", got)
	}
}

func TestRunFailsWhenProbeFails(t *testing.T) {
	store := &fakeStore{}
	encoder := &fakeEncoder{}
	notifier := &fakeNotifier{}
	prober := func(ctx context.Context, path string) (probe.Result, error) {
		return probe.Result{}, errors.New("no video stream found")
	}
	w := New(testConfig(), store, encoder, prober, notifier)

	err := w.Run(context.Background())
	if !errors.Is(err, faults.ErrMedia) {
		t.Fatalf("error = %v, want media classification", err)
	}
	if len(store.keys()) != 0 {
		t.Errorf("uploads happened despite probe failure: %v", store.keys())
	}
	want := []notify.Status{notify.StatusQueued, notify.StatusFailed}
	if !reflect.DeepEqual(notifier.statuses, want) {
		t.Errorf("statuses = %v, want %v", notifier.statuses, want)
	}
}

func TestRunFailsWhenFetchFails(t *testing.T) {
	store := &fakeStore{downloadErr: errors.New("access denied")}
	encoder := &fakeEncoder{}
	w := New(testConfig(), store, encoder, probeResult(95, 1280, 720), nil)

	err := w.Run(context.Background())
	if !errors.Is(err, faults.ErrInfra) {
		t.Fatalf("error = %v, want infra classification", err)
	}
	if len(encoder.jobs) != 0 {
		t.Errorf("encodes attempted despite fetch failure: %d", len(encoder.jobs))
	}
}

func TestRunFailsWhenSegmentUploadFails(t *testing.T) {
	store := &fakeStore{failSuffix: "360p_01.ts"}
	encoder := &fakeEncoder{segments: 2}
	w := New(testConfig(), store, encoder, probeResult(95, 1280, 720), nil)

	err := w.Run(context.Background())
	if !errors.Is(err, faults.ErrUpload) {
		t.Fatalf("error = %v, want upload classification", err)
	}
	if _, ok := store.uploads["hls/clips/demo/master.m3u8"]; ok {
		t.Error("master manifest published despite upload failure")
	}
	if len(encoder.jobs) != 1 {
		t.Errorf("attempted %d encodes, want 1 (stop before 480p)", len(encoder.jobs))
	}
}

func TestRunIsDeterministicAcrossDeliveries(t *testing.T) {
	runOnce := func() []string {
		store := &fakeStore{}
		w := New(testConfig(), store, &fakeEncoder{segments: 3}, probeResult(95, 1280, 720), nil)
		if err := w.Run(context.Background()); err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		return store.keys()
	}

	first := runOnce()
	second := runOnce()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reprocessing produced different keys:\n%v\n%v", first, second)
	}
}
