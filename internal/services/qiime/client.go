package qiime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"ampliflow/internal/logging"
	"ampliflow/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger routes qiime output lines to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTmpDir sets TMPDIR for qiime processes. QIIME 2 unpacks artifacts
// there, which can exceed a small /tmp.
func WithTmpDir(dir string) Option {
	return func(c *Client) {
		c.tmpDir = strings.TrimSpace(dir)
	}
}

// Client wraps qiime CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	tmpDir  string
	exec    Executor
	logger  *slog.Logger
}

// Entity is one output file produced by an invocation.
type Entity struct {
	Name string
	Kind Kind
	Path string
}

// Outputs are the entities of one invocation in declaration order.
type Outputs []Entity

// Path returns the file path of the named entity.
func (o Outputs) Path(name string) (string, bool) {
	for _, entity := range o {
		if entity.Name == name {
			return entity.Path, true
		}
	}
	return "", false
}

// New constructs a qiime client. A positive actionTimeoutSeconds bounds each
// invocation.
func New(binary string, actionTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("qiime binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(actionTimeoutSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.exec == nil {
		client.exec = commandExecutor{tmpDir: client.tmpDir}
	}
	client.logger = logging.NewComponentLogger(client.logger, "qiime")
	return client, nil
}

// Binary returns the configured qiime executable.
func (c *Client) Binary() string {
	return c.binary
}

const outputTailLines = 12

var debugLogPattern = regexp.MustCompile(`Debug info has been saved to (\S+)`)

// Invoke runs action with outputs written into dir and verifies every
// declared output exists afterwards.
func (c *Client) Invoke(ctx context.Context, action Action, dir string) (Outputs, error) {
	stage, _ := services.StageFromContext(ctx)
	op := "qiime " + action.Command()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stage, op, "create output directory", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger := logging.WithContext(ctx, c.logger)
	args := action.CommandLine(dir)
	logger.Debug("qiime invocation",
		logging.String("command", op),
		logging.String("args", strings.Join(args, " ")),
	)

	tail := newLineTail(outputTailLines)
	start := time.Now()
	err := c.exec.Run(runCtx, c.binary, args, func(line string) {
		tail.add(line)
		logger.Debug("qiime output", logging.String("line", line))
	})
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return nil, services.Wrap(services.ErrExternalTool, stage, op, failureMessage(tail.lines()), err)
	}

	outputs := make(Outputs, 0, len(action.Outputs))
	for _, out := range action.Outputs {
		path := filepath.Join(dir, out.FileName())
		info, statErr := os.Stat(path)
		if statErr != nil || info.IsDir() {
			return nil, services.Wrap(services.ErrExternalTool, stage, op,
				fmt.Sprintf("declared output %s was not written", out.FileName()), statErr)
		}
		outputs = append(outputs, Entity{Name: out.Name, Kind: out.Kind, Path: path})
	}
	logger.Debug("qiime invocation completed",
		logging.String("command", op),
		logging.Duration("duration", time.Since(start)),
		logging.Int("outputs", len(outputs)),
	)
	return outputs, nil
}

func failureMessage(lines []string) string {
	for _, line := range lines {
		if match := debugLogPattern.FindStringSubmatch(line); match != nil {
			return "qiime exited with an error (debug log: " + match[1] + ")"
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return "qiime exited with an error: " + line
		}
	}
	return "qiime exited with an error"
}

type lineTail struct {
	mu    sync.Mutex
	limit int
	buf   []string
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
}

func (t *lineTail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.buf...)
}

type commandExecutor struct {
	tmpDir string
}

func (e commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if e.tmpDir != "" {
		cmd.Env = append(os.Environ(), "TMPDIR="+e.tmpDir)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
