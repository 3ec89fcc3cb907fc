package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"ampliflow/internal/config"
	"ampliflow/internal/logging"
	"ampliflow/internal/services"
)

var (
	// ErrDownloadFailed marks a request that did not return 200 OK or broke mid-transfer.
	ErrDownloadFailed = errors.New("download failed")
	// ErrMissingFile marks a target path that is absent or empty after downloading.
	ErrMissingFile = errors.New("missing file")
)

// Target is one URL to fetch into a local path.
type Target struct {
	Name string
	URL  string
	Path string
}

// TargetsForAction returns the data, metadata, and classifier targets of an
// action. Entries without a URL are skipped.
func TargetsForAction(data config.Data) []Target {
	candidates := []Target{
		{Name: "data", URL: data.DataURL, Path: data.DataPath},
		{Name: "metadata", URL: data.MetadataURL, Path: data.MetadataPath},
		{Name: "classifier", URL: data.ClassifierURL, Path: data.ClassifierPath},
	}
	targets := make([]Target, 0, len(candidates))
	for _, target := range candidates {
		if strings.TrimSpace(target.URL) == "" {
			continue
		}
		targets = append(targets, target)
	}
	return targets
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithLogger sets the logger used for progress and completion lines.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// WithProgressWriter sets where the progress bar is drawn. The bar is only
// drawn when the writer is a terminal; otherwise progress is logged.
func WithProgressWriter(w io.Writer) Option {
	return func(d *Downloader) {
		d.progress = w
	}
}

// WithSkipExisting leaves targets whose path already holds a non-empty file.
func WithSkipExisting(skip bool) Option {
	return func(d *Downloader) {
		d.skipExisting = skip
	}
}

// Downloader fetches targets concurrently.
type Downloader struct {
	client       *http.Client
	logger       *slog.Logger
	progress     io.Writer
	skipExisting bool
}

// New constructs a Downloader. The default client has no overall timeout
// because classifier artifacts run to hundreds of megabytes.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:   &http.Client{Transport: http.DefaultTransport},
		progress: os.Stderr,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "fetch")
	return d
}

// Download fetches every target in parallel and returns once all have
// finished or the first one has failed.
func (d *Downloader) Download(ctx context.Context, targets []Target) error {
	pending := make([]Target, 0, len(targets))
	for _, target := range targets {
		if strings.TrimSpace(target.Path) == "" {
			return services.Wrap(services.ErrConfiguration, "download", "fetch "+target.Name, "target path is empty", nil)
		}
		if d.skipExisting && nonEmptyFile(target.Path) {
			d.logger.Info("download skipped; file present",
				logging.String("target", target.Name),
				logging.String("target_path", target.Path),
				logging.String(logging.FieldEventType, "download_skipped"),
			)
			continue
		}
		pending = append(pending, target)
	}
	if len(pending) == 0 {
		return nil
	}

	bar := d.newBar(len(pending))
	group, groupCtx := errgroup.WithContext(ctx)
	for _, target := range pending {
		group.Go(func() error {
			return d.fetch(groupCtx, target, bar)
		})
	}
	err := group.Wait()
	bar.finish()
	return err
}

func (d *Downloader) fetch(ctx context.Context, target Target, bar *sharedBar) error {
	op := "fetch " + target.Name
	start := time.Now()
	if err := os.MkdirAll(filepath.Dir(target.Path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "download", op, "create target directory", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "download", op, "build request", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "download", op, target.URL,
			fmt.Errorf("%w: %w", ErrDownloadFailed, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternalTool, "download", op, target.URL,
			fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode))
	}

	partPath := target.Path + ".part"
	file, err := os.Create(partPath)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "download", op, "create part file", err)
	}

	bar.addMax(resp.ContentLength)
	counter := &progressCounter{
		logger:  d.logger,
		name:    target.Name,
		total:   resp.ContentLength,
		bar:     bar,
		sampler: logging.NewProgressSampler(25),
	}
	written, copyErr := io.Copy(file, io.TeeReader(resp.Body, counter))
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil && resp.ContentLength >= 0 && written != resp.ContentLength {
		copyErr = fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength)
	}
	if copyErr != nil {
		_ = os.Remove(partPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrTransient, "download", op, target.URL,
			fmt.Errorf("%w: %w", ErrDownloadFailed, copyErr))
	}
	if err := os.Rename(partPath, target.Path); err != nil {
		_ = os.Remove(partPath)
		return services.Wrap(services.ErrConfiguration, "download", op, "move download into place", err)
	}

	d.logger.Info("download complete",
		logging.String("target", target.Name),
		logging.Int64("size_bytes", written),
		logging.Duration("duration", time.Since(start)),
		logging.String("target_path", target.Path),
		logging.String(logging.FieldEventType, "download_complete"),
	)
	return nil
}

// VerifyExists checks every target path holds a non-empty regular file.
func VerifyExists(targets []Target) error {
	var missing []string
	for _, target := range targets {
		if !nonEmptyFile(target.Path) {
			missing = append(missing, target.Name+" ("+target.Path+")")
		}
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrNotFound, "download", "verify downloads",
			strings.Join(missing, ", "), ErrMissingFile)
	}
	return nil
}

func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

type progressCounter struct {
	logger  *slog.Logger
	name    string
	total   int64
	done    int64
	bar     *sharedBar
	sampler *logging.ProgressSampler
}

func (c *progressCounter) Write(p []byte) (int, error) {
	n := len(p)
	c.done += int64(n)
	if c.bar.active() {
		c.bar.add(int64(n))
		return n, nil
	}
	if c.total <= 0 {
		return n, nil
	}
	percent := float64(c.done) / float64(c.total) * 100
	if c.sampler.ShouldLog(percent) {
		c.logger.Info("download progress",
			logging.String("target", c.name),
			logging.String("progress", fmt.Sprintf("%s / %s (%.0f%%)", humanize.IBytes(uint64(c.done)), humanize.IBytes(uint64(c.total)), percent)),
		)
	}
	return n, nil
}

// sharedBar is one byte progress bar across all concurrent downloads. Its
// maximum grows as response sizes become known.
type sharedBar struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
	max int64
}

func (d *Downloader) newBar(count int) *sharedBar {
	if !isTerminal(d.progress) {
		return &sharedBar{}
	}
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(d.progress),
		progressbar.OptionSetDescription(fmt.Sprintf("downloading %d file(s)", count)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &sharedBar{bar: bar}
}

func (b *sharedBar) active() bool {
	return b != nil && b.bar != nil
}

func (b *sharedBar) addMax(size int64) {
	if !b.active() || size <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.max += size
	b.bar.ChangeMax64(b.max)
}

func (b *sharedBar) add(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Add64(n)
}

func (b *sharedBar) finish() {
	if !b.active() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Finish()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
