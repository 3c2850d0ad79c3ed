package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// FailureKind classifies downloader failures so the queue can branch on
// outcomes instead of matching messages itself. The message patterns live
// in classifyFailure and nowhere else.
type FailureKind int

const (
	// KindUnknown is any failure without a recognized cause. Fail loud.
	KindUnknown FailureKind = iota
	// KindMissing means the remote video no longer exists.
	KindMissing
	// KindLiveSkip means the target resolved to a live broadcast and the
	// live guard refused to treat it as an archived VOD.
	KindLiveSkip
	// KindAccessDenied is the 403/429 class: rate limiting or blocking.
	KindAccessDenied
	// KindInterrupted means the run's context was canceled mid-item.
	KindInterrupted
)

type DownloadError struct {
	Kind    FailureKind
	Message string
}

func (e *DownloadError) Error() string {
	return e.Message
}

// Format is one media variant yt-dlp reports for a video.
type Format struct {
	ID         string  `json:"format_id"`
	Height     int     `json:"height"`
	TBR        float64 `json:"tbr"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	FormatNote string  `json:"format_note"`
	Format     string  `json:"format"`
}

// VideoOnly reports a stream with video but no embedded audio.
func (f Format) VideoOnly() bool {
	return f.VCodec != "none" && f.ACodec == "none"
}

// IsSource applies the platform's source-quality label heuristic: there is
// no single authoritative field, so several are checked.
func (f Format) IsSource() bool {
	return strings.Contains(strings.ToLower(f.ID), "source") ||
		strings.Contains(strings.ToLower(f.FormatNote), "source") ||
		strings.Contains(strings.ToLower(f.Format), "source")
}

// Metadata is the probe result for one video.
type Metadata struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	UploaderID  string   `json:"uploader_id"`
	Uploader    string   `json:"uploader"`
	UploadDate  string   `json:"upload_date"`
	Duration    float64  `json:"duration"`
	Description string   `json:"description"`
	IsLive      bool     `json:"is_live"`
	Formats     []Format `json:"formats"`
}

type DownloadOptions struct {
	URL                 string
	OutputDir           string
	OutputTemplate      string
	FormatSpec          string
	ConcurrentFragments int
	LogWriter           io.Writer
	EchoOutput          bool
	Stdout              io.Writer
}

func CheckDependencies() error {
	if _, err := exec.LookPath("yt-dlp"); err != nil {
		return fmt.Errorf("missing dependency: yt-dlp is not installed or not on PATH")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("missing dependency: ffmpeg is required for merged formats and was not found on PATH")
	}
	return nil
}

// Probe fetches metadata and the available format list without downloading.
func Probe(ctx context.Context, url string) (Metadata, error) {
	if strings.TrimSpace(url) == "" {
		return Metadata{}, fmt.Errorf("video URL is required")
	}
	cmd := exec.CommandContext(ctx, "yt-dlp", "--no-playlist", "-J", url)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Metadata{}, &DownloadError{Kind: KindInterrupted, Message: ctx.Err().Error()}
		}
		return Metadata{}, classifyFailure(fmt.Sprintf("probe %s: %v: %s", url, err, strings.TrimSpace(stderr.String())))
	}
	var meta Metadata
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode probe output for %s: %w", url, err)
	}
	return meta, nil
}

// Download fetches one video. The live guard is always on: a URL that now
// resolves to a live broadcast is refused and reported as KindLiveSkip.
func Download(ctx context.Context, opts DownloadOptions) error {
	if strings.TrimSpace(opts.URL) == "" {
		return fmt.Errorf("video URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return fmt.Errorf("output directory is required")
	}
	fragments := opts.ConcurrentFragments
	if fragments <= 0 {
		fragments = 1
	}
	template := opts.OutputTemplate
	if template == "" {
		template = "%(title)s_%(id)s_%(format_id)s.%(ext)s"
	}
	formatSpec := opts.FormatSpec
	if formatSpec == "" {
		formatSpec = "bestvideo+bestaudio/best"
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"-N", fmt.Sprintf("%d", fragments),
		"-P", opts.OutputDir,
		"-o", template,
		"-f", formatSpec,
		"--match-filter", "!is_live",
		"--retries", "1",
		opts.URL,
	}

	output, err := runCommand(ctx, args, opts)
	if err != nil {
		if ctx.Err() != nil {
			return &DownloadError{Kind: KindInterrupted, Message: ctx.Err().Error()}
		}
		return classifyFailure(err.Error())
	}
	if strings.Contains(strings.ToLower(output), "does not pass filter") {
		return &DownloadError{Kind: KindLiveSkip, Message: "target is a live broadcast, refused by the live guard"}
	}
	return nil
}

// classifyFailure is the single place downloader messages are mapped onto
// failure kinds.
func classifyFailure(message string) *DownloadError {
	text := strings.ToLower(message)

	missingHints := []string{
		"does not exist",
		"video unavailable",
		"not currently live", // dead link redirected to an offline channel page
	}
	for _, h := range missingHints {
		if strings.Contains(text, h) {
			return &DownloadError{Kind: KindMissing, Message: message}
		}
	}

	liveHints := []string{
		"this live event",
		"is a live stream",
		"does not pass filter",
	}
	for _, h := range liveHints {
		if strings.Contains(text, h) {
			return &DownloadError{Kind: KindLiveSkip, Message: message}
		}
	}

	deniedHints := []string{
		"403",
		"forbidden",
		"access denied",
		"429",
		"too many requests",
		"rate limit",
	}
	for _, h := range deniedHints {
		if strings.Contains(text, h) {
			return &DownloadError{Kind: KindAccessDenied, Message: message}
		}
	}

	return &DownloadError{Kind: KindUnknown, Message: message}
}

func runCommand(ctx context.Context, args []string, opts DownloadOptions) (string, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp", args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start yt-dlp: %w", err)
	}

	var outBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, line)
			if opts.LogWriter != nil {
				_, _ = io.WriteString(opts.LogWriter, line+"\n")
			}
			mu.Unlock()

			if opts.EchoOutput && opts.Stdout != nil {
				_, _ = io.WriteString(opts.Stdout, line+"\n")
			}
		}
	}

	wg.Add(2)
	go read(stdoutPipe)
	go read(stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		return outBuf.String(), fmt.Errorf("yt-dlp failed: %w\n%s", err, strings.TrimSpace(outBuf.String()))
	}
	mu.Lock()
	defer mu.Unlock()
	return outBuf.String(), nil
}

// splitByNewlineOrCR tokenizes yt-dlp output on both newlines and the
// carriage returns its progress meter emits.
func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(b *strings.Builder, line string) {
	const maxKeep = 16384
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}
