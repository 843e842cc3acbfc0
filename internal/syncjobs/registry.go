// Package syncjobs runs user-provided shell scripts in the background and
// keeps their state and output around for inspection.
package syncjobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// DefaultLogBytes is the tail size returned when the caller does not ask for one.
const DefaultLogBytes = 32_000

type Config struct {
	ScriptsDir string
	JobsDir    string
	// Shell interprets the script. Defaults to /bin/bash.
	Shell string
}

// LogTail is the end of a job's output file.
type LogTail struct {
	Log       string `json:"log"`
	Truncated bool   `json:"truncated"`
}

// Registry starts scripts found under Config.ScriptsDir and records them in
// a Store.
type Registry struct {
	scriptsDir string
	jobsDir    string
	shell      string
	store      Store
	now        func() time.Time
	wg         sync.WaitGroup
}

func NewRegistry(cfg Config, store Store) (*Registry, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	if cfg.Shell == "" {
		cfg.Shell = "/bin/bash"
	}

	scripts, err := filepath.Abs(cfg.ScriptsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve scripts dir: %w", err)
	}
	if err := os.MkdirAll(cfg.JobsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs dir: %w", err)
	}

	return &Registry{
		scriptsDir: scripts,
		jobsDir:    cfg.JobsDir,
		shell:      cfg.Shell,
		store:      store,
		now:        time.Now,
	}, nil
}

// Start launches script in the background and returns as soon as the
// process has been spawned. A process that fails to spawn is still recorded,
// with Error set.
func (r *Registry) Start(ctx context.Context, script string, args []string) (*Job, error) {
	job, cmd, logf, err := r.prepare(ctx, script, args)
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		r.fail(ctx, job, logf, err)
		return job.clone(), nil
	}

	job.PID = cmd.Process.Pid
	if err := r.store.SaveJob(ctx, job); err != nil {
		slog.WarnContext(ctx, "Failed to record sync job pid", "job_id", job.ID, "error", err)
	}
	slog.InfoContext(ctx, "Sync job started", "job_id", job.ID, "script", job.Script, "pid", job.PID)

	snapshot := job.clone()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.wait(context.WithoutCancel(ctx), job, cmd, logf)
	}()
	return snapshot, nil
}

// Run executes script and blocks until it exits.
func (r *Registry) Run(ctx context.Context, script string, args []string) (*Job, error) {
	job, cmd, logf, err := r.prepare(ctx, script, args)
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		r.fail(ctx, job, logf, err)
		return job.clone(), nil
	}
	job.PID = cmd.Process.Pid
	r.wait(ctx, job, cmd, logf)
	return job.clone(), nil
}

// Wait blocks until every background job has finished.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) Get(ctx context.Context, id string) (*Job, error) {
	return r.store.GetJob(ctx, id)
}

func (r *Registry) List(ctx context.Context) ([]*Job, error) {
	return r.store.ListJobs(ctx)
}

// Log returns at most maxBytes from the end of the job's output. A job whose
// log file does not exist yet has an empty log.
func (r *Registry) Log(ctx context.Context, id string, maxBytes int) (LogTail, error) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return LogTail{}, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultLogBytes
	}

	f, err := os.Open(job.LogPath)
	if errors.Is(err, os.ErrNotExist) {
		return LogTail{}, nil
	}
	if err != nil {
		return LogTail{}, fmt.Errorf("open job log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return LogTail{}, fmt.Errorf("stat job log: %w", err)
	}

	var tail LogTail
	if info.Size() > int64(maxBytes) {
		if _, err := f.Seek(info.Size()-int64(maxBytes), io.SeekStart); err != nil {
			return LogTail{}, fmt.Errorf("seek job log: %w", err)
		}
		tail.Truncated = true
	}
	data, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)))
	if err != nil {
		return LogTail{}, fmt.Errorf("read job log: %w", err)
	}
	tail.Log = strings.ToValidUTF8(string(data), "")
	return tail, nil
}

func (r *Registry) prepare(ctx context.Context, script string, args []string) (*Job, *exec.Cmd, *os.File, error) {
	path, err := r.resolve(script)
	if err != nil {
		return nil, nil, nil, err
	}

	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	logPath := filepath.Join(r.jobsDir, id+".log")
	logf, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open job log: %w", err)
	}

	argv := append([]string{path}, args...)
	fmt.Fprintf(logf, "Running: %s %s\n\n", r.shell, strings.Join(argv, " "))

	cmd := exec.Command(r.shell, argv...)
	cmd.Stdout = logf
	cmd.Stderr = logf

	job := &Job{
		ID:        id,
		Script:    path,
		Args:      append([]string{}, args...),
		Running:   true,
		StartedAt: r.now().UTC(),
		LogPath:   logPath,
	}
	if err := r.store.SaveJob(ctx, job); err != nil {
		logf.Close()
		return nil, nil, nil, fmt.Errorf("save job: %w", err)
	}
	return job, cmd, logf, nil
}

func (r *Registry) wait(ctx context.Context, job *Job, cmd *exec.Cmd, logf *os.File) {
	defer logf.Close()

	err := cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		r.fail(ctx, job, nil, err)
		fmt.Fprintf(logf, "\nException: %v\n", err)
		return
	}

	code := cmd.ProcessState.ExitCode()
	finished := r.now().UTC()
	job.Running = false
	job.ReturnCode = &code
	job.FinishedAt = &finished
	fmt.Fprintf(logf, "\nProcess finished with returncode=%d\n", code)

	if err := r.store.SaveJob(ctx, job); err != nil {
		slog.WarnContext(ctx, "Failed to record sync job result", "job_id", job.ID, "error", err)
	}
	slog.InfoContext(ctx, "Sync job finished", "job_id", job.ID, "return_code", code)
}

// fail records a job that could not run to completion. logf, when non-nil,
// receives the exception line and is closed.
func (r *Registry) fail(ctx context.Context, job *Job, logf *os.File, cause error) {
	finished := r.now().UTC()
	job.Running = false
	job.Error = cause.Error()
	job.FinishedAt = &finished

	if logf != nil {
		fmt.Fprintf(logf, "\nException: %v\n", cause)
		logf.Close()
	}
	if err := r.store.SaveJob(ctx, job); err != nil {
		slog.WarnContext(ctx, "Failed to record sync job error", "job_id", job.ID, "error", err)
	}
	slog.ErrorContext(ctx, "Sync job failed", "job_id", job.ID, "error", cause)
}

// resolve maps script to an existing regular file inside the scripts
// directory.
func (r *Registry) resolve(script string) (string, error) {
	verr := core.NewValidationError()
	if strings.TrimSpace(script) == "" {
		verr.Add("script", "Script is required")
		return "", verr
	}

	path := script
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.scriptsDir, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(r.scriptsDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		verr.Add("script", "Script must be inside the scripts directory")
		return "", verr
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		verr.Add("script", "Script not found")
		return "", verr
	}
	return path, nil
}
