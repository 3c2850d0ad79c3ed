package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"speedrun-rescue/internal/model"
	"speedrun-rescue/internal/runstore"
	"speedrun-rescue/internal/ytdlp"
)

// DefaultItemSpacing is the pause between downloads that touched the
// network. Skipped items advance immediately.
const DefaultItemSpacing = 15 * time.Second

// LoadQueue reads the persisted download queue. Besides the current
// versioned shape it accepts the legacy layouts: a bare array of
// [url, origin] pairs and a bare array of url strings.
func LoadQueue(path string) (model.DownloadQueue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.DownloadQueue{}, err
	}

	var queue model.DownloadQueue
	if err := json.Unmarshal(data, &queue); err == nil && queue.SchemaVersion > 0 {
		return queue, nil
	}

	var pairs [][]string
	if err := json.Unmarshal(data, &pairs); err == nil {
		queue = model.DownloadQueue{SchemaVersion: model.QueueSchemaVersion}
		for _, p := range pairs {
			if len(p) == 0 {
				continue
			}
			item := model.DownloadItem{URL: p[0]}
			if len(p) > 1 {
				item.Origin = p[1]
			}
			queue.Items = append(queue.Items, item)
		}
		return queue, nil
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err == nil {
		queue = model.DownloadQueue{SchemaVersion: model.QueueSchemaVersion}
		for _, u := range urls {
			queue.Items = append(queue.Items, model.DownloadItem{URL: u})
		}
		return queue, nil
	}

	return model.DownloadQueue{}, fmt.Errorf("queue file %s is not in a known format", path)
}

// SaveQueue rewrites the queue atomically in the current schema.
func SaveQueue(path string, queue model.DownloadQueue) error {
	queue.SchemaVersion = model.QueueSchemaVersion
	return runstore.WriteJSON(path, queue)
}

// Outcome records what happened to one queue item.
type Outcome struct {
	URL    string
	Status string
	Detail string
}

// Processor drains a persisted download queue one item at a time. The
// queue file is rewritten after every resolved item, so an interrupt or
// crash resumes exactly at the in-flight item.
type Processor struct {
	QueuePath           string
	OutputDir           string
	ProvenancePath      string
	Quality             Quality
	AllowAll            bool
	ConcurrentFragments int
	ItemSpacing         time.Duration
	EchoOutput          bool

	// Probe and Download default to the real yt-dlp wrappers.
	Probe    func(ctx context.Context, url string) (ytdlp.Metadata, error)
	Download func(ctx context.Context, opts ytdlp.DownloadOptions) error
	Logf     func(format string, args ...any)
}

func (p *Processor) probe(ctx context.Context, url string) (ytdlp.Metadata, error) {
	if p.Probe != nil {
		return p.Probe(ctx, url)
	}
	return ytdlp.Probe(ctx, url)
}

func (p *Processor) download(ctx context.Context, opts ytdlp.DownloadOptions) error {
	if p.Download != nil {
		return p.Download(ctx, opts)
	}
	return ytdlp.Download(ctx, opts)
}

func (p *Processor) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
		return
	}
	fmt.Printf(format+"\n", args...)
}

// Run processes the queue head-first until it is empty, the context is
// canceled, or a fatal failure occurs. On cancellation the in-flight item
// stays at the head and Run returns nil. On access denial or an
// unrecognized failure the item likewise stays at the head and Run
// returns the error, so a later invocation retries it.
func (p *Processor) Run(ctx context.Context) ([]Outcome, error) {
	// A missing or unreadable queue file means there is nothing to resume,
	// not a startup failure.
	queue, err := LoadQueue(p.QueuePath)
	if err != nil {
		p.logf("no resumable queue at %s: %v", p.QueuePath, err)
		return nil, nil
	}

	spacing := p.ItemSpacing
	if spacing <= 0 {
		spacing = DefaultItemSpacing
	}

	var outcomes []Outcome
	for len(queue.Items) > 0 {
		if ctx.Err() != nil {
			if err := SaveQueue(p.QueuePath, queue); err != nil {
				return outcomes, err
			}
			p.logf("interrupted, %d items remain in the queue", len(queue.Items))
			return outcomes, nil
		}

		item := queue.Items[0]
		atRisk := strings.HasSuffix(item.URL, model.AtRiskMarker)
		url := strings.TrimSuffix(item.URL, model.AtRiskMarker)

		if !p.AllowAll && !atRisk {
			// Resolved without touching the network: no pacing needed.
			outcome, err := p.resolve(url, model.StatusSkippedNotAtRisk, "channel not at risk")
			if err != nil {
				return outcomes, err
			}
			outcomes = append(outcomes, outcome)
			queue.Items = queue.Items[1:]
			if err := SaveQueue(p.QueuePath, queue); err != nil {
				return outcomes, err
			}
			continue
		}

		status, detail, fatal, err := p.processItem(ctx, url, item.Origin)
		if fatal != nil {
			if saveErr := SaveQueue(p.QueuePath, queue); saveErr != nil {
				return outcomes, saveErr
			}
			return outcomes, fatal
		}
		if err != nil {
			// Interrupt: persist with the in-flight item still at the head.
			if saveErr := SaveQueue(p.QueuePath, queue); saveErr != nil {
				return outcomes, saveErr
			}
			p.logf("interrupted while on %s, %d items remain", url, len(queue.Items))
			return outcomes, nil
		}

		outcome, err := p.resolve(url, status, detail)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
		queue.Items = queue.Items[1:]
		if err := SaveQueue(p.QueuePath, queue); err != nil {
			return outcomes, err
		}

		if len(queue.Items) > 0 {
			if err := sleepCtx(ctx, spacing); err != nil {
				if saveErr := SaveQueue(p.QueuePath, queue); saveErr != nil {
					return outcomes, saveErr
				}
				return outcomes, nil
			}
		}
	}

	if err := SaveQueue(p.QueuePath, queue); err != nil {
		return outcomes, err
	}
	p.logf("queue drained, %d items resolved", len(outcomes))
	return outcomes, nil
}

// processItem probes and downloads one at-risk item. It returns the
// terminal status for the item, or fatal when the run must stop with the
// item left at the head, or a plain error on interruption.
func (p *Processor) processItem(ctx context.Context, url, origin string) (status string, detail string, fatal error, interrupt error) {
	p.logf("downloading %s", url)

	meta, err := p.probe(ctx, url)
	if err != nil {
		return p.classifyFailure(url, err)
	}

	spec := SelectFormat(p.Quality, meta.Formats)
	err = p.download(ctx, ytdlp.DownloadOptions{
		URL:                 url,
		OutputDir:           p.OutputDir,
		FormatSpec:          spec,
		ConcurrentFragments: p.ConcurrentFragments,
		EchoOutput:          p.EchoOutput,
		Stdout:              os.Stdout,
	})
	if err != nil {
		return p.classifyFailure(url, err)
	}

	if err := p.appendProvenance(url, origin, meta); err != nil {
		return "", "", err, nil
	}
	return model.StatusDownloaded, "", nil, nil
}

// classifyFailure maps a downloader failure onto the item's fate. Missing
// and live targets resolve the item; denial and unknown failures stop the
// run with the item preserved.
func (p *Processor) classifyFailure(url string, err error) (string, string, error, error) {
	var derr *ytdlp.DownloadError
	if !errors.As(err, &derr) {
		return "", "", fmt.Errorf("download %s: %w", url, err), nil
	}
	switch derr.Kind {
	case ytdlp.KindMissing:
		p.logf("video %s is gone: %s", url, derr.Message)
		p.notef("SKIPPED (gone): %s\n%s\n", url, derr.Message)
		return model.StatusSkippedConfirmedMissing, derr.Message, nil, nil
	case ytdlp.KindLiveSkip:
		p.logf("video %s resolved to a live broadcast: %s", url, derr.Message)
		p.notef("SKIPPED (live): %s\n%s\n", url, derr.Message)
		return model.StatusSkippedConfirmedMissing, derr.Message, nil, nil
	case ytdlp.KindAccessDenied:
		return "", "", fmt.Errorf("access denied while downloading %s, stopping the run so it can resume later: %w", url, err), nil
	case ytdlp.KindInterrupted:
		return "", "", nil, err
	default:
		return "", "", fmt.Errorf("download %s: %w", url, err), nil
	}
}

// resolve runs the item through the status machine so illegal outcomes
// cannot be recorded.
func (p *Processor) resolve(url string, status string, detail string) (Outcome, error) {
	if _, err := model.Transition(model.StatusPending, status, url); err != nil {
		return Outcome{}, err
	}
	return Outcome{URL: url, Status: status, Detail: detail}, nil
}

func (p *Processor) appendProvenance(url, origin string, meta ytdlp.Metadata) error {
	if p.ProvenancePath == "" {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", url)
	if origin != "" {
		fmt.Fprintf(&b, "Speedrun.com URL: %s\n", origin)
	}
	fmt.Fprintf(&b, "Channel: %s\n", meta.Uploader)
	fmt.Fprintf(&b, "Title: %s\n", meta.Title)
	fmt.Fprintf(&b, "Date: %s\n", meta.UploadDate)
	fmt.Fprintf(&b, "Duration: %.0f\n", meta.Duration)
	fmt.Fprintf(&b, "Description: %s\n", meta.Description)
	b.WriteString(strings.Repeat("=", 40) + "\n")
	return runstore.AppendText(p.ProvenancePath, b.String())
}

func (p *Processor) notef(format string, args ...any) {
	if p.ProvenancePath == "" {
		return
	}
	if err := runstore.AppendText(p.ProvenancePath, fmt.Sprintf(format, args...)); err != nil {
		p.logf("append provenance note: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
