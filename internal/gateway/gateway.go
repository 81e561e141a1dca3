// Package gateway wires a command request through validation, execution,
// logging, and truncation, and serves later retrieval of stored output.
// It is the only package that sees the whole pipeline; everything below
// it (security, executor, logstore, output) is independent.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/amri/internal/config"
	"github.com/jkaninda/amri/internal/executor"
	"github.com/jkaninda/amri/internal/logstore"
	"github.com/jkaninda/amri/internal/observability"
	"github.com/jkaninda/amri/internal/output"
	"github.com/jkaninda/amri/internal/ratelimit"
	"github.com/jkaninda/amri/internal/security"
	"github.com/jkaninda/amri/internal/shell"
)

// Per-call parameter bounds.
const (
	MinMaxLines       = 1
	MaxMaxLines       = 10000
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 3600
)

// Sentinel errors for the gateway's operations.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrHandleNotFound   = errors.New("no stored output for handle")
)

// Gateway is the orchestrator.
type Gateway struct {
	cfg     *config.Config
	store   *logstore.Store
	exec    *executor.Executor
	metrics *observability.MetricsCollector
	auditor security.Auditor // nil = audit disabled
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// New assembles a gateway. metrics and auditor may be nil; a nil logger
// discards logs.
func New(cfg *config.Config, store *logstore.Store, exec *executor.Executor,
	metrics *observability.MetricsCollector, auditor security.Auditor, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gateway{
		cfg:     cfg,
		store:   store,
		exec:    exec,
		metrics: metrics,
		auditor: auditor,
		limiter: ratelimit.NewLimiter(),
		logger:  logger,
	}
}

// Store exposes the log store to auxiliary surfaces (admin API).
func (g *Gateway) Store() *logstore.Store { return g.store }

// Config exposes the resolved configuration to read-only surfaces.
func (g *Gateway) Config() *config.Config { return g.cfg }

// Close releases gateway-owned resources (log store sweep, audit trail).
func (g *Gateway) Close() {
	g.store.Close()
	if g.auditor != nil {
		if err := g.auditor.Close(); err != nil {
			g.logger.Warn("closing auditor", slog.String("error", err.Error()))
		}
	}
}

// ExecuteRequest is one command execution request.
type ExecuteRequest struct {
	Shell          string
	Command        string
	WorkingDir     string // empty = configured initial directory
	MaxLines       int    // per-call output line limit, 0 = use configured default
	TimeoutSeconds int    // per-call timeout, 0 = use shell default
}

// ExecuteResult is the truncated response plus its metadata.
type ExecuteResult struct {
	Output        string
	ExitCode      int
	Shell         string
	WorkingDir    string
	Handle        string
	TotalLines    int
	ReturnedLines int
	Truncated     bool
	FilePath      string // set only when disk logging is on and paths are exposed
}

// Execute runs one command through the full pipeline. Policy violations
// return before any subprocess spawns, with a zero-execution entry
// recorded for audit; execution faults (spawn failure, timeout) are
// recorded the same way. The returned error always names the violated
// rule or fault and the offending value.
func (g *Gateway) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	resolved, err := g.cfg.Resolve(req.Shell)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	if req.MaxLines != 0 && (req.MaxLines < MinMaxLines || req.MaxLines > MaxMaxLines) {
		return nil, fmt.Errorf("%w: maxLines %d out of range %d..%d",
			ErrInvalidParameter, req.MaxLines, MinMaxLines, MaxMaxLines)
	}
	if req.TimeoutSeconds != 0 && (req.TimeoutSeconds < MinTimeoutSeconds || req.TimeoutSeconds > MaxTimeoutSeconds) {
		return nil, fmt.Errorf("%w: timeout %ds out of range %d..%d",
			ErrInvalidParameter, req.TimeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds)
	}

	// Rate limiting happens before any other work; a throttled request
	// leaves no store entry behind. The budget is the shell's own.
	if err := g.limiter.Allow(resolved.Name, resolved.MaxExecutionsPerMinute); err != nil {
		g.logger.Warn("execution throttled", slog.String("shell", resolved.Name))
		return nil, err
	}

	sctx := shell.NewContext(resolved)
	workingDir := req.WorkingDir
	if workingDir == "" {
		workingDir = g.cfg.InitialWorkingDir()
	}

	correlationID := uuid.NewString()

	// Validation, fail-closed: working directory first, then the chain.
	if err := sctx.ValidateWorkingDir(workingDir); err != nil {
		verr := fmt.Errorf("%w: %v", security.ErrDirectoryNotAllowed, err)
		g.recordRejection(ctx, req, resolved, workingDir, correlationID, verr)
		return nil, verr
	}
	if err := security.ValidateCommand(sctx, req.Command, workingDir); err != nil {
		g.recordRejection(ctx, req, resolved, workingDir, correlationID, err)
		return nil, err
	}

	// Spawn.
	exe, args := security.Tokenize(req.Command)
	tokens := append([]string{exe}, args...)
	spec := sctx.BuildSpawnSpec(req.Command, tokens, workingDir)

	timeoutSecs := resolved.TimeoutSeconds
	if req.TimeoutSeconds > 0 {
		timeoutSecs = req.TimeoutSeconds
	}

	res, runErr := g.exec.Run(ctx, spec, time.Duration(timeoutSecs)*time.Second)
	if runErr != nil {
		g.recordFault(ctx, req, resolved, workingDir, correlationID, runErr)
		return nil, runErr
	}

	// Record.
	entry := logstore.NewEntry(time.Now(), req.Command, resolved.Name, workingDir,
		res.ExitCode, res.Stdout, res.Stderr, res.CombinedOutput())
	g.store.Add(entry)
	g.observeStore()

	if g.metrics != nil {
		status := "ok"
		if res.ExitCode != 0 {
			status = "failed"
		}
		g.metrics.ExecutionsTotal.WithLabelValues(resolved.Name, status).Inc()
		g.metrics.ExecutionDuration.WithLabelValues(resolved.Name).Observe(res.Duration.Seconds())
	}
	g.audit(ctx, security.AuditEvent{
		Timestamp:     entry.Timestamp,
		CorrelationID: correlationID,
		Shell:         resolved.Name,
		Command:       req.Command,
		WorkingDir:    workingDir,
		Result:        "executed",
		ExitCode:      res.ExitCode,
	})

	// Truncate. The just-scheduled disk write may or may not have landed;
	// when the path is not visible yet the banner falls back to the
	// handle-based hint, which is always valid.
	filePath := g.exposedFilePath(entry.ID)
	hint := "Full output: get_command_output with id " + entry.ID
	if filePath != "" {
		hint = "Full output: " + filePath
	}
	limit := output.EffectiveLimit(req.MaxLines, resolved.MaxOutputLines)
	trunc := output.Truncate(entry.CombinedOutput, limit, resolved.TruncationEnabled, hint)

	return &ExecuteResult{
		Output:        trunc.Text,
		ExitCode:      res.ExitCode,
		Shell:         resolved.Name,
		WorkingDir:    workingDir,
		Handle:        entry.ID,
		TotalLines:    trunc.TotalLines,
		ReturnedLines: trunc.ReturnedLines,
		Truncated:     trunc.WasTruncated,
		FilePath:      filePath,
	}, nil
}

// recordRejection stores the zero-execution failure entry for a policy
// violation: empty stdout, a synthetic stderr naming the violation, exit
// code -1. The entry exists purely for audit and later inspection.
func (g *Gateway) recordRejection(ctx context.Context, req ExecuteRequest,
	resolved *config.ResolvedShellConfig, workingDir, correlationID string, verr error) {

	stderr := "Command rejected: " + verr.Error()
	entry := logstore.NewEntry(time.Now(), req.Command, resolved.Name, workingDir,
		-1, "", stderr, stderr)
	g.store.Add(entry)
	g.observeStore()

	if g.metrics != nil {
		g.metrics.PolicyViolationsTotal.WithLabelValues(resolved.Name, ruleLabel(verr)).Inc()
	}
	g.audit(ctx, security.AuditEvent{
		Timestamp:     entry.Timestamp,
		CorrelationID: correlationID,
		Shell:         resolved.Name,
		Command:       req.Command,
		WorkingDir:    workingDir,
		Result:        "rejected",
		ExitCode:      -1,
		Violation:     verr.Error(),
	})

	g.logger.Warn("command rejected",
		slog.String("shell", resolved.Name),
		slog.String("rule", ruleLabel(verr)),
		slog.String("correlation_id", correlationID),
	)
}

// recordFault stores the failure entry for an execution fault (spawn
// failure or timeout). The process, if it ever started, is already dead.
func (g *Gateway) recordFault(ctx context.Context, req ExecuteRequest,
	resolved *config.ResolvedShellConfig, workingDir, correlationID string, runErr error) {

	stderr := runErr.Error()
	entry := logstore.NewEntry(time.Now(), req.Command, resolved.Name, workingDir,
		-1, "", stderr, stderr)
	g.store.Add(entry)
	g.observeStore()

	if g.metrics != nil {
		g.metrics.ExecutionsTotal.WithLabelValues(resolved.Name, faultLabel(runErr)).Inc()
	}
	g.audit(ctx, security.AuditEvent{
		Timestamp:     entry.Timestamp,
		CorrelationID: correlationID,
		Shell:         resolved.Name,
		Command:       req.Command,
		WorkingDir:    workingDir,
		Result:        "fault",
		ExitCode:      -1,
		Violation:     runErr.Error(),
	})
}

// exposedFilePath returns the entry's disk path when disk logging is on
// and path exposure is permitted, else "".
func (g *Gateway) exposedFilePath(id string) string {
	d := g.cfg.History.Disk
	if d == nil || !d.Enabled || !d.ExposeFilePaths {
		return ""
	}
	e, ok := g.store.Get(id)
	if !ok {
		return ""
	}
	return e.FilePath
}

func (g *Gateway) observeStore() {
	if g.metrics == nil {
		return
	}
	count, size := g.store.Stats()
	g.metrics.StoredEntries.Set(float64(count))
	g.metrics.StoredBytes.Set(float64(size))
}

// audit is best-effort: failures are logged, never propagated.
func (g *Gateway) audit(ctx context.Context, event security.AuditEvent) {
	if g.auditor == nil {
		return
	}
	if err := g.auditor.LogEvent(ctx, event); err != nil {
		g.logger.Warn("audit write failed", slog.String("error", err.Error()))
	}
}

// ruleLabel maps a policy error to its metrics label.
func ruleLabel(err error) string {
	switch {
	case errors.Is(err, security.ErrCommandBlocked):
		return "blocked_command"
	case errors.Is(err, security.ErrArgumentBlocked):
		return "blocked_argument"
	case errors.Is(err, security.ErrOperatorBlocked):
		return "blocked_operator"
	case errors.Is(err, security.ErrCommandTooLong):
		return "length_exceeded"
	case errors.Is(err, security.ErrDirectoryNotAllowed):
		return "directory_not_allowed"
	default:
		return "other"
	}
}

func faultLabel(err error) string {
	switch {
	case errors.Is(err, executor.ErrTimeout):
		return "timeout"
	case errors.Is(err, executor.ErrSpawn):
		return "spawn_failed"
	default:
		return "error"
	}
}
