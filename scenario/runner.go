package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/KOMKZ/go-yogan-liqguard/application"
	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/errcode"
	"github.com/KOMKZ/go-yogan-liqguard/event"
	"github.com/KOMKZ/go-yogan-liqguard/governance"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
)

// runner 单次回放的运行时状态
type runner struct {
	sc         *Scenario
	ctrl       *breaker.Controller
	council    *governance.Council
	recorder   *event.Recorder
	recipients map[string]struct{}
}

// AppConfig 把脚本转换成内存部署的应用配置
func (s *Scenario) AppConfig() application.AppConfig {
	cfg := application.DefaultAppConfig()
	cfg.HTTP.Enabled = false
	cfg.Cleanup.Enabled = false
	cfg.Telemetry.Enabled = false
	cfg.Breaker.Event.SetAllSync = true
	cfg.Breaker.Metrics.Enabled = false
	cfg.Breaker.Limiter.Metrics.Enabled = false
	cfg.Breaker.Limiter.CheckInvariants = true

	if s.Breaker.WithdrawalPeriod > 0 {
		cfg.Breaker.WithdrawalPeriod = s.Breaker.WithdrawalPeriod
	}
	if s.Breaker.TickLength > 0 {
		cfg.Breaker.TickLength = s.Breaker.TickLength
	}
	if s.Breaker.CooldownPeriod > 0 {
		cfg.Breaker.CooldownPeriod = s.Breaker.CooldownPeriod
	}
	if s.Breaker.MaxSyncSteps > 0 {
		cfg.Breaker.MaxSyncSteps = s.Breaker.MaxSyncSteps
	}

	cfg.Governance.Guardians = s.Guardians
	if s.Threshold > 0 {
		cfg.Governance.Threshold = s.Threshold
	}
	cfg.Host.Admins = []string{s.Admin}
	for _, b := range s.Custody {
		cfg.Host.Deposits = append(cfg.Host.Deposits, application.DepositConfig{Asset: b.Asset, Amount: b.Amount})
	}
	for _, a := range s.Assets {
		cfg.Assets = append(cfg.Assets, application.AssetConfig{
			Asset:               a.Asset,
			MinLiqRetainedBps:   a.MinLiqRetainedBps,
			LimitBeginThreshold: a.LimitBeginThreshold,
		})
	}
	return cfg
}

// Run 在全新的内存部署上执行全部步骤。单步失败记录在报告中，不中断回放。
func Run(ctx context.Context, sc *Scenario, log *logger.CtxZapLogger) (*Report, error) {
	if log == nil {
		log = logger.NewNop()
	}
	clock := clockwork.NewFakeClockAt(sc.Start)
	app, err := application.New(
		application.WithConfig(sc.AppConfig()),
		application.WithLogger(log),
		application.WithClock(clock),
	)
	if err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	defer app.Shutdown(context.Background())

	r := &runner{
		sc:         sc,
		ctrl:       app.Controller(),
		council:    app.Council(),
		recorder:   &event.Recorder{},
		recipients: make(map[string]struct{}),
	}
	r.ctrl.Events().Subscribe(event.Wildcard, r.recorder)

	if len(sc.Protected) > 0 {
		if err := r.ctrl.AddProtectedCallers(ctx, sc.Admin, sc.Protected...); err != nil {
			return nil, fmt.Errorf("register protected callers: %w", err)
		}
	}

	report := &Report{Name: sc.Name, Start: sc.Start}
	for i, step := range sc.Steps {
		if now := clock.Now(); sc.Start.Add(step.At).After(now) {
			clock.Advance(sc.Start.Add(step.At).Sub(now))
		}
		report.Steps = append(report.Steps, r.step(ctx, i, step))
	}

	final, err := r.final(ctx)
	if err != nil {
		return nil, err
	}
	report.Final = final
	return report, nil
}

func (r *runner) step(ctx context.Context, index int, st Step) StepResult {
	before := len(r.recorder.Events())
	res := StepResult{
		Index:  index,
		At:     Offset(st.At),
		Action: st.Action,
		Asset:  st.Asset,
		Expect: st.Expect,
	}

	detail, err := r.apply(ctx, st, &res)
	res.Detail = detail
	if err != nil {
		res.Result = errorLabel(err)
		res.Error = err.Error()
		var le *errcode.LayeredError
		if errors.As(err, &le) {
			res.Code = le.Code()
		}
	} else if res.Result == "" {
		res.Result = "ok"
	}

	if st.Asset != "" {
		if status, err := r.ctrl.Status(ctx, st.Asset); err == nil {
			res.Status = status.String()
		}
	}
	res.Tripped = r.ctrl.IsRateLimited()
	for _, e := range r.recorder.Events()[before:] {
		res.Events = append(res.Events, e.Name())
	}
	res.Passed = st.Expect == "" || st.Expect == res.Result
	return res
}

// apply 执行动作，返回附加说明
func (r *runner) apply(ctx context.Context, st Step, res *StepResult) (string, error) {
	caller := st.Caller
	flowCaller := caller
	if flowCaller == "" && len(r.sc.Protected) > 0 {
		flowCaller = r.sc.Protected[0]
	}
	if caller == "" {
		caller = r.sc.Admin
	}

	switch st.Action {
	case ActionRegister:
		return "", r.ctrl.RegisterAsset(ctx, caller, st.Asset, policyOf(st))

	case ActionUpdate:
		sync, err := r.ctrl.UpdateAssetParams(ctx, caller, st.Asset, policyOf(st), st.MaxSyncSteps)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("synced %d ticks", sync.Steps), nil

	case ActionInflow:
		amount := mustAmount(st.Amount)
		if st.Asset == breaker.NativeAsset {
			return "", r.ctrl.OnNativeInflow(ctx, flowCaller, amount)
		}
		return "", r.ctrl.OnTokenInflow(ctx, flowCaller, st.Asset, amount)

	case ActionOutflow:
		amount := mustAmount(st.Amount)
		r.recipients[st.Recipient] = struct{}{}
		var (
			outcome breaker.Outcome
			err     error
		)
		if st.Asset == breaker.NativeAsset {
			outcome, err = r.ctrl.OnNativeOutflow(ctx, flowCaller, amount, st.Recipient, st.Revert)
		} else {
			outcome, err = r.ctrl.OnTokenOutflow(ctx, flowCaller, st.Asset, amount, st.Recipient, st.Revert)
		}
		if err != nil {
			return "", err
		}
		res.Result = outcome.String()
		return fmt.Sprintf("%s %s to %s", outcome, st.Amount, st.Recipient), nil

	case ActionClaim:
		recipient := st.Recipient
		if recipient == "" {
			recipient = st.Caller
		}
		claimed, err := r.ctrl.ClaimLockedFunds(ctx, st.Asset, recipient)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("claimed %s", claimed.Dec()), nil

	case ActionSync:
		sync, err := r.ctrl.ClearBacklog(ctx, st.Asset, st.MaxSyncSteps)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("evicted %d ticks (%s)", sync.Steps, sync.Evicted), nil

	case ActionOverride:
		return "", r.ctrl.OverrideRateLimit(ctx, caller)

	case ActionOverrideExpire:
		return "", r.ctrl.OverrideExpiredRateLimit(ctx)

	case ActionGracePeriod:
		end := r.sc.Start.Add(st.Until)
		if err := r.ctrl.StartGracePeriod(ctx, caller, end); err != nil {
			return "", err
		}
		return "until " + end.UTC().Format(time.RFC3339), nil

	case ActionPause:
		return "", r.ctrl.MarkAsNotOperational(ctx, caller)

	case ActionMigrate:
		moved, err := r.ctrl.MigrateFundsAfterExploit(ctx, caller, st.Assets, st.Recipient)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(moved))
		for asset, amount := range moved {
			parts = append(parts, asset+"="+amount.Dec())
		}
		sort.Strings(parts)
		return "moved " + strings.Join(parts, ", "), nil

	case ActionProtect:
		return "", r.ctrl.AddProtectedCallers(ctx, caller, st.Target)

	case ActionPropose:
		p, err := r.council.Propose(ctx, st.Proposal, st.Caller)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("votes for %d", p.VotesFor), nil

	case ActionVote:
		approve := true
		if st.Approve != nil {
			approve = *st.Approve
		}
		p, err := r.council.Vote(ctx, st.Proposal, st.Caller, approve)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("votes for %d against %d", p.VotesFor, p.VotesAgainst), nil

	case ActionExecute:
		_, err := r.council.Execute(ctx, st.Proposal)
		return "", err

	case ActionEmergencyPause:
		return "", r.council.EmergencyPause(ctx, st.Caller)

	case ActionStatus:
		state, err := r.ctrl.Limiter(ctx, st.Asset)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("liq_total=%s liq_in_period=%s", state.LiqTotal, state.LiqInPeriod), nil

	default:
		return "", fmt.Errorf("unknown action %q", st.Action)
	}
}

func (r *runner) final(ctx context.Context) (FinalState, error) {
	fs := FinalState{
		Tripped:     r.ctrl.IsRateLimited(),
		Operational: r.ctrl.IsOperational(),
	}
	if t := r.ctrl.LastRateLimitTimestamp(); !t.IsZero() {
		fs.LastTrippedAt = &t
	}

	assets, err := r.ctrl.Assets(ctx)
	if err != nil {
		return fs, err
	}
	for _, asset := range assets {
		state, err := r.ctrl.Limiter(ctx, asset)
		if err != nil {
			return fs, err
		}
		status, err := r.ctrl.Status(ctx, asset)
		if err != nil {
			return fs, err
		}
		fs.Assets = append(fs.Assets, AssetState{
			Asset:              asset,
			Status:             status.String(),
			LiqTotal:           state.LiqTotal.String(),
			LiqInPeriod:        state.LiqInPeriod.String(),
			ConfirmedLiquidity: state.ConfirmedLiquidity().String(),
			MinRequired:        state.MinRequired().String(),
		})
	}

	recipients := make([]string, 0, len(r.recipients))
	for rc := range r.recipients {
		recipients = append(recipients, rc)
	}
	sort.Strings(recipients)
	lockable := assets
	if !contains(assets, breaker.NativeAsset) {
		lockable = append(append([]string(nil), assets...), breaker.NativeAsset)
	}
	for _, rc := range recipients {
		for _, asset := range lockable {
			if amount := r.ctrl.LockedFunds(rc, asset); amount != nil && !amount.IsZero() {
				fs.Locked = append(fs.Locked, LockedFunds{Recipient: rc, Asset: asset, Amount: amount.Dec()})
			}
		}
	}
	return fs, nil
}

func policyOf(st Step) limiter.Policy {
	threshold := new(uint256.Int)
	if st.LimitBeginThreshold != "" {
		threshold = mustAmount(st.LimitBeginThreshold)
	}
	return limiter.Policy{MinLiqRetainedBps: st.MinLiqRetainedBps, LimitBeginThreshold: *threshold}
}

// mustAmount amounts are checked by Step.Validate before Run
func mustAmount(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return new(uint256.Int)
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// errorLabel error.breaker.rate_limited -> rate_limited
func errorLabel(err error) string {
	var le *errcode.LayeredError
	if errors.As(err, &le) {
		key := le.MsgKey()
		if i := strings.LastIndex(key, "."); i >= 0 {
			return key[i+1:]
		}
		return key
	}
	return "error"
}
