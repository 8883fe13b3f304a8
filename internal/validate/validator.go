// Package validate checks pipeline liveness: change topics on the broker, connector
// and task states, and populated warehouse tables. Every check runs to completion
// under the shared retry policy and lands in one report.
package validate

import (
	"context"
	"errors"
	"time"

	"cdc-pump/internal/errs"
	"cdc-pump/internal/retry"

	"go.uber.org/zap"
)

// State is the per-check lifecycle: Pending, then Attempting, then Passed or Failed.
type State int

const (
	Pending State = iota
	Attempting
	Passed
	Failed
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusUnknown Status = "unknown"
)

// Result is one check's outcome.
type Result struct {
	Name     string         `json:"name"`
	Status   Status         `json:"status"`
	Message  string         `json:"message"`
	Evidence map[string]any `json:"evidence,omitempty"`
	Attempts int            `json:"attempts"`
	Duration time.Duration  `json:"duration_ns"`
	State    State          `json:"-"`
	Err      error          `json:"-"`
}

type Validator struct {
	checks       []Check
	policy       retry.Policy
	checkTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewValidator(checks []Check, policy retry.Policy, checkTimeout time.Duration, logger *zap.Logger) *Validator {
	return &Validator{checks: checks, policy: policy, checkTimeout: checkTimeout, logger: logger, now: time.Now}
}

// Run executes every check in order and returns the report. It never stops early: a
// failed check is recorded and the next one runs.
func (v *Validator) Run(ctx context.Context) *Report {
	report := NewReport(v.now())
	for _, c := range v.checks {
		report.Checks = append(report.Checks, v.runCheck(ctx, c))
	}
	report.Verdict = verdict(report.Checks)
	return report
}

func (v *Validator) runCheck(ctx context.Context, c Check) Result {
	log := v.logger.With(zap.String("check", c.Name()))
	res := Result{Name: c.Name(), State: Pending}

	if err := ctx.Err(); err != nil {
		res.Status = StatusUnknown
		res.Message = "not run: " + err.Error()
		res.Err = err
		log.Warn("check not run", zap.Error(err))
		return res
	}

	checkCtx := ctx
	if v.checkTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, v.checkTimeout)
		defer cancel()
	}

	var attempt int
	policy := v.policy
	policy.OnAttempt = func(n int) {
		attempt = n
		res.State = Attempting
		log.Debug("attempting check", zap.Int("attempt", n))
	}

	// finding is from the latest attempt, failed or not.
	var finding Finding
	outcome, err := policy.Do(checkCtx, func(ctx context.Context) error {
		f, err := c.Run(ctx)
		finding = f
		if err != nil {
			log.Info("check attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	res.Attempts = outcome.Attempts
	res.Duration = outcome.Elapsed

	if err == nil {
		res.State = Passed
		res.Status = StatusPass
		res.Message = finding.Message
		res.Evidence = finding.Evidence
		log.Info("check passed", zap.Int("attempts", res.Attempts))
		return res
	}

	res.State = Failed
	res.Status = StatusFail
	res.Evidence = finding.Evidence
	var drift *errs.SchemaDriftError
	if errors.As(err, &drift) {
		res.Err = drift
		if res.Evidence == nil {
			res.Evidence = make(map[string]any)
		}
		res.Evidence["expected"] = drift.Expected
	} else {
		res.Err = &errs.ValidationTimeoutError{Check: c.Name(), Attempts: outcome.Attempts, Elapsed: outcome.Elapsed, Cause: err}
	}
	res.Message = res.Err.Error()
	log.Warn("check failed", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	return res
}

func verdict(results []Result) Verdict {
	for _, r := range results {
		if r.Status != StatusPass {
			return VerdictDegraded
		}
	}
	return VerdictHealthy
}
