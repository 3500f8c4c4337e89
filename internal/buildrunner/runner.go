// Package buildrunner compiles one reverse dependency in an isolated scratch
// directory, optionally overriding where the library under test comes from.
package buildrunner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hochfrequenz/revdep-regress/internal/cratecache"
	"github.com/hochfrequenz/revdep-regress/internal/domain"
	"github.com/hochfrequenz/revdep-regress/internal/failure"
)

// DefaultCommand is the build tool invocation
var DefaultCommand = []string{"cargo", "build"}

// OutputCallback is called for each line of build output
type OutputCallback func(stream, data string)

// Fetcher provides the cached source archive of a reverse dependency
type Fetcher interface {
	Fetch(ctx context.Context, rd domain.RevDep) (*cratecache.Handle, error)
}

// Config configures the runner
type Config struct {
	ScratchDir string            // parent of per-build scratch dirs, os.TempDir() when empty
	Command    []string          // build command, DefaultCommand when empty
	Env        map[string]string // extra environment for the build command
	Debug      bool
}

// Runner builds reverse dependencies. It holds no per-build state and is
// safe for concurrent use.
type Runner struct {
	config   Config
	fetcher  Fetcher
	onOutput OutputCallback
}

// New creates a build runner
func New(config Config, fetcher Fetcher) *Runner {
	if len(config.Command) == 0 {
		config.Command = DefaultCommand
	}
	return &Runner{config: config, fetcher: fetcher}
}

// SetOutputCallback sets a callback receiving every line of build output
func (r *Runner) SetOutputCallback(cb OutputCallback) {
	r.onOutput = cb
}

// Build compiles rd under override and returns the captured outcome. A build
// that exits non-zero is a failed outcome, not an error. The scratch
// directory is removed before Build returns, whatever happened.
func (r *Runner) Build(ctx context.Context, rd domain.RevDep, override domain.Override) (*domain.BuildOutcome, error) {
	start := time.Now()

	handle, err := r.fetcher.Fetch(ctx, rd)
	if err != nil {
		return nil, err
	}

	scratch, err := r.createScratch(rd)
	if err != nil {
		return nil, err
	}
	defer r.removeScratch(scratch)

	sourceDir := filepath.Join(scratch, "source")
	if err := os.Mkdir(sourceDir, 0755); err != nil {
		return nil, failure.IO("creating "+sourceDir, err)
	}
	if r.config.Debug {
		log.Printf("[build] unpacking %s to %s", handle.Path(), sourceDir)
	}
	if err := handle.UnpackTo(ctx, sourceDir); err != nil {
		return nil, err
	}

	if override.Kind == domain.OverrideSource {
		if r.config.Debug {
			log.Printf("[build] overriding library path in %s with %s", sourceDir, override.Path)
		}
		if err := WriteOverride(sourceDir, override.Path); err != nil {
			return nil, err
		}
	}

	outcome, err := r.run(ctx, rd, sourceDir)
	if err != nil {
		return nil, err
	}
	outcome.Duration = time.Since(start)

	if r.config.Debug {
		log.Printf("[build] %s (%s) finished in %.2fs, success=%v",
			rd, override, outcome.Duration.Seconds(), outcome.Success)
	}
	return outcome, nil
}

// run invokes the build command with sourceDir as working directory. The
// override file is discovered relative to the working directory, so changing
// into the source tree is required.
func (r *Runner) run(ctx context.Context, rd domain.RevDep, sourceDir string) (*domain.BuildOutcome, error) {
	cmd := exec.CommandContext(ctx, r.config.Command[0], r.config.Command[1:]...)
	cmd.Dir = sourceDir
	cmd.Env = os.Environ()
	for k, v := range r.config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, failure.IO("stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, failure.IO("stderr pipe", err)
	}

	if r.config.Debug {
		log.Printf("[build] running %q in %s", strings.Join(r.config.Command, " "), sourceDir)
	}
	if err := cmd.Start(); err != nil {
		return nil, failure.IO("starting "+r.config.Command[0], err)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	done := make(chan struct{})
	go func() {
		r.streamOutput(stdout, "stdout", &stdoutBuf)
		done <- struct{}{}
	}()
	go func() {
		r.streamOutput(stderr, "stderr", &stderrBuf)
		done <- struct{}{}
	}()
	<-done
	<-done

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, failure.IO("waiting for "+r.config.Command[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	if !utf8.Valid(stdoutBuf.Bytes()) {
		return nil, failure.UTF8("stdout of build " + rd.String())
	}
	if !utf8.Valid(stderrBuf.Bytes()) {
		return nil, failure.UTF8("stderr of build " + rd.String())
	}

	return &domain.BuildOutcome{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Success:  exitCode == 0,
		ExitCode: exitCode,
	}, nil
}

func (r *Runner) streamOutput(rd io.Reader, stream string, output *bytes.Buffer) {
	reader := bufio.NewReader(rd)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			output.Write(line)
			if r.onOutput != nil {
				r.onOutput(stream, string(line))
			}
		}
		if err != nil {
			return
		}
	}
}

func (r *Runner) createScratch(rd domain.RevDep) (string, error) {
	base := r.config.ScratchDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", failure.IO("creating scratch root "+base, err)
	}

	dir := filepath.Join(base, fmt.Sprintf("revdep-%s-%s", rd.Name, uuid.NewString()))
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", failure.IO("creating scratch dir "+dir, err)
	}
	return dir, nil
}

func (r *Runner) removeScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil && r.config.Debug {
		log.Printf("[build] removing %s: %v", dir, err)
	}
}
