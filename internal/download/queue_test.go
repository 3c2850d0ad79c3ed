package download

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"speedrun-rescue/internal/model"
	"speedrun-rescue/internal/ytdlp"
)

func writeQueue(t *testing.T, items ...model.DownloadItem) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := SaveQueue(path, model.DownloadQueue{Items: items}); err != nil {
		t.Fatal(err)
	}
	return path
}

func okMeta(title string) ytdlp.Metadata {
	return ytdlp.Metadata{
		ID:         "111",
		Title:      title,
		Uploader:   "runnerchan",
		UploadDate: "20240110",
		Duration:   903,
		Formats: []ytdlp.Format{
			{ID: "720p60", Height: 720, TBR: 3400, VCodec: "avc1", ACodec: "mp4a"},
		},
	}
}

func newTestProcessor(t *testing.T, queuePath string) *Processor {
	t.Helper()
	return &Processor{
		QueuePath:      queuePath,
		OutputDir:      t.TempDir(),
		ProvenancePath: filepath.Join(t.TempDir(), "download_info.txt"),
		Quality:        Quality{Best: true},
		ItemSpacing:    time.Millisecond,
		Logf:           t.Logf,
	}
}

func remaining(t *testing.T, path string) []model.DownloadItem {
	t.Helper()
	queue, err := LoadQueue(path)
	if err != nil {
		t.Fatalf("reload queue: %v", err)
	}
	return queue.Items
}

func TestLoadQueueLegacyLayouts(t *testing.T) {
	dir := t.TempDir()

	pairs := filepath.Join(dir, "pairs.json")
	if err := os.WriteFile(pairs, []byte(`[["https://a/1","https://src/1"],["https://a/2"]]`), 0o644); err != nil {
		t.Fatal(err)
	}
	queue, err := LoadQueue(pairs)
	if err != nil {
		t.Fatalf("load pairs: %v", err)
	}
	if len(queue.Items) != 2 || queue.Items[0].Origin != "https://src/1" || queue.Items[1].Origin != "" {
		t.Fatalf("unexpected queue from pairs: %+v", queue.Items)
	}

	plain := filepath.Join(dir, "plain.json")
	if err := os.WriteFile(plain, []byte(`["https://a/1","https://a/2","https://a/3"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	queue, err = LoadQueue(plain)
	if err != nil {
		t.Fatalf("load plain: %v", err)
	}
	if len(queue.Items) != 3 || queue.Items[2].URL != "https://a/3" {
		t.Fatalf("unexpected queue from strings: %+v", queue.Items)
	}

	garbage := filepath.Join(dir, "garbage.json")
	if err := os.WriteFile(garbage, []byte(`{"what":true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadQueue(garbage); err == nil {
		t.Fatalf("garbage queue should be rejected")
	}
}

func TestRunSkipsNotAtRiskWithoutNetwork(t *testing.T) {
	path := writeQueue(t,
		model.DownloadItem{URL: "https://www.twitch.tv/videos/111"},
		model.DownloadItem{URL: "https://www.twitch.tv/videos/222"},
	)
	p := newTestProcessor(t, path)
	probes := 0
	p.Probe = func(ctx context.Context, url string) (ytdlp.Metadata, error) {
		probes++
		return okMeta("x"), nil
	}

	outcomes, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if probes != 0 {
		t.Fatalf("not-at-risk items must never touch the network, saw %d probes", probes)
	}
	if len(outcomes) != 2 {
		t.Fatalf("want 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Status != model.StatusSkippedNotAtRisk {
			t.Fatalf("want skipped_not_at_risk, got %s", o.Status)
		}
	}
	if got := remaining(t, path); len(got) != 0 {
		t.Fatalf("queue should be empty, has %d items", len(got))
	}
}

func TestRunDownloadsAtRiskAndRecordsProvenance(t *testing.T) {
	path := writeQueue(t, model.DownloadItem{
		URL:    "https://www.twitch.tv/videos/111" + model.AtRiskMarker,
		Origin: "https://speedrun.com/celeste/runs/abc",
	})
	p := newTestProcessor(t, path)
	var probedURL, downloadedSpec string
	p.Probe = func(ctx context.Context, url string) (ytdlp.Metadata, error) {
		probedURL = url
		return okMeta("Any% WR"), nil
	}
	p.Download = func(ctx context.Context, opts ytdlp.DownloadOptions) error {
		downloadedSpec = opts.FormatSpec
		return nil
	}

	outcomes, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if probedURL != "https://www.twitch.tv/videos/111" {
		t.Fatalf("risk marker leaked into the downloader: %q", probedURL)
	}
	if downloadedSpec != "720p60" {
		t.Fatalf("unexpected format spec %q", downloadedSpec)
	}
	if len(outcomes) != 1 || outcomes[0].Status != model.StatusDownloaded {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}

	data, err := os.ReadFile(p.ProvenancePath)
	if err != nil {
		t.Fatalf("read provenance: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"URL: https://www.twitch.tv/videos/111",
		"Speedrun.com URL: https://speedrun.com/celeste/runs/abc",
		"Channel: runnerchan",
		"Title: Any% WR",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("provenance missing %q:\n%s", want, text)
		}
	}
}

func TestRunResolvesMissingVideo(t *testing.T) {
	path := writeQueue(t, model.DownloadItem{
		URL: "https://www.twitch.tv/videos/111" + model.AtRiskMarker,
	})
	p := newTestProcessor(t, path)
	p.Probe = func(ctx context.Context, url string) (ytdlp.Metadata, error) {
		return ytdlp.Metadata{}, &ytdlp.DownloadError{Kind: ytdlp.KindMissing, Message: "does not exist"}
	}

	outcomes, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != model.StatusSkippedConfirmedMissing {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
	if got := remaining(t, path); len(got) != 0 {
		t.Fatalf("missing video should leave the queue, %d items remain", len(got))
	}
}

func TestRunStopsOnAccessDenialWithHeadPreserved(t *testing.T) {
	head := "https://www.twitch.tv/videos/111" + model.AtRiskMarker
	path := writeQueue(t,
		model.DownloadItem{URL: head},
		model.DownloadItem{URL: "https://www.twitch.tv/videos/222" + model.AtRiskMarker},
	)
	p := newTestProcessor(t, path)
	p.Probe = func(ctx context.Context, url string) (ytdlp.Metadata, error) {
		return okMeta("x"), nil
	}
	p.Download = func(ctx context.Context, opts ytdlp.DownloadOptions) error {
		return &ytdlp.DownloadError{Kind: ytdlp.KindAccessDenied, Message: "HTTP Error 403: Forbidden"}
	}

	outcomes, err := p.Run(context.Background())
	if err == nil {
		t.Fatalf("access denial must stop the run with an error")
	}
	if len(outcomes) != 0 {
		t.Fatalf("no items should resolve, got %+v", outcomes)
	}
	got := remaining(t, path)
	if len(got) != 2 || got[0].URL != head {
		t.Fatalf("denied item must stay at the head: %+v", got)
	}
}

func TestRunPersistsInFlightItemOnInterrupt(t *testing.T) {
	head := "https://www.twitch.tv/videos/111" + model.AtRiskMarker
	path := writeQueue(t, model.DownloadItem{URL: head})
	p := newTestProcessor(t, path)
	ctx, cancel := context.WithCancel(context.Background())
	p.Probe = func(ctx context.Context, url string) (ytdlp.Metadata, error) {
		return okMeta("x"), nil
	}
	p.Download = func(ctx context.Context, opts ytdlp.DownloadOptions) error {
		cancel()
		return &ytdlp.DownloadError{Kind: ytdlp.KindInterrupted, Message: "context canceled"}
	}

	outcomes, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("interrupt is a clean stop, got %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("no items should resolve, got %+v", outcomes)
	}
	got := remaining(t, path)
	if len(got) != 1 || got[0].URL != head {
		t.Fatalf("in-flight item must survive the interrupt: %+v", got)
	}
}

func TestRunResumesWhereItStopped(t *testing.T) {
	items := []model.DownloadItem{
		{URL: "https://www.twitch.tv/videos/111" + model.AtRiskMarker},
		{URL: "https://www.twitch.tv/videos/222" + model.AtRiskMarker},
		{URL: "https://www.twitch.tv/videos/333" + model.AtRiskMarker},
	}
	path := writeQueue(t, items...)
	p := newTestProcessor(t, path)
	downloads := 0
	p.Probe = func(ctx context.Context, url string) (ytdlp.Metadata, error) {
		return okMeta("x"), nil
	}
	p.Download = func(ctx context.Context, opts ytdlp.DownloadOptions) error {
		downloads++
		if downloads == 2 {
			return &ytdlp.DownloadError{Kind: ytdlp.KindAccessDenied, Message: "403"}
		}
		return nil
	}

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatalf("first run should stop on the denial")
	}
	if got := remaining(t, path); len(got) != 2 || got[0].URL != items[1].URL {
		t.Fatalf("queue after first run: %+v", got)
	}

	outcomes, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("second run should resolve the 2 survivors, got %d", len(outcomes))
	}
	if got := remaining(t, path); len(got) != 0 {
		t.Fatalf("queue should be drained: %+v", got)
	}
}

func TestRunTreatsMissingQueueAsNothingToResume(t *testing.T) {
	p := newTestProcessor(t, filepath.Join(t.TempDir(), "queue.json"))
	outcomes, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("missing queue is not a failure: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
}

func TestRunAllowAllDownloadsUnmarkedItems(t *testing.T) {
	path := writeQueue(t, model.DownloadItem{URL: "https://www.twitch.tv/videos/111"})
	p := newTestProcessor(t, path)
	p.AllowAll = true
	p.Probe = func(ctx context.Context, url string) (ytdlp.Metadata, error) {
		return okMeta("x"), nil
	}
	downloads := 0
	p.Download = func(ctx context.Context, opts ytdlp.DownloadOptions) error {
		downloads++
		return nil
	}

	outcomes, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if downloads != 1 || len(outcomes) != 1 || outcomes[0].Status != model.StatusDownloaded {
		t.Fatalf("allow-all item should download: %d downloads, %+v", downloads, outcomes)
	}
}
