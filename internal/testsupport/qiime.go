package testsupport

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
)

// InfoLines is a `qiime info` transcript listing every plugin the pipeline uses.
var InfoLines = []string{
	"System versions",
	"Python version: 3.10.14",
	"QIIME 2 release: 2024.10",
	"QIIME 2 version: 2024.10.1",
	"q2cli version: 2024.10.0",
	"",
	"Installed plugins",
	"composition: 2024.10.0",
	"dada2: 2024.10.0",
	"deblur: 2024.10.0",
	"demux: 2024.10.0",
	"diversity: 2024.10.0",
	"feature-classifier: 2024.10.0",
	"metadata: 2024.10.0",
	"phylogeny: 2024.10.0",
	"quality-filter: 2024.10.0",
	"taxa: 2024.10.0",
	"",
}

// StubQiime is a qiime.Executor that writes every declared output file
// instead of running qiime.
type StubQiime struct {
	mu     sync.Mutex
	calls  [][]string
	failOn string
}

// FailOn makes invocations of "plugin method" fail.
func (s *StubQiime) FailOn(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = command
}

// Commands returns "plugin method" for every recorded invocation.
func (s *StubQiime) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, args := range s.calls {
		if len(args) >= 2 {
			out = append(out, args[0]+" "+args[1])
		} else if len(args) == 1 {
			out = append(out, args[0])
		}
	}
	return out
}

// Calls returns the recorded argument lists.
func (s *StubQiime) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.calls...)
}

// Run implements qiime.Executor.
func (s *StubQiime) Run(_ context.Context, _ string, args []string, onLine func(string)) error {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), args...))
	failOn := s.failOn
	s.mu.Unlock()

	if len(args) == 1 && args[0] == "info" {
		for _, line := range InfoLines {
			onLine(line)
		}
		return nil
	}
	if len(args) >= 2 && failOn == args[0]+" "+args[1] {
		onLine("Plugin error from " + args[0] + ":")
		onLine("Debug info has been saved to /tmp/qiime2-q2cli-err-test.log")
		return errors.New("exit status 1")
	}
	for i := 0; i < len(args)-1; i++ {
		if !strings.HasPrefix(args[i], "--o-") && args[i] != "--output-path" {
			continue
		}
		if err := os.WriteFile(args[i+1], []byte("qiime:"+args[i]), 0o644); err != nil {
			return err
		}
	}
	return nil
}
