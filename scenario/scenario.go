// Package scenario replays a scripted sequence of flows and recovery actions
// against an in-memory deployment driven by a fake clock.
package scenario

import (
	"fmt"
	"io"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/KOMKZ/go-yogan-liqguard/validator"
)

// Actions understood by Run
const (
	ActionRegister       = "register"
	ActionUpdate         = "update"
	ActionInflow         = "inflow"
	ActionOutflow        = "outflow"
	ActionClaim          = "claim"
	ActionSync           = "sync"
	ActionOverride       = "override"
	ActionOverrideExpire = "override_expired"
	ActionGracePeriod    = "grace_period"
	ActionPause          = "pause"
	ActionMigrate        = "migrate"
	ActionProtect        = "protect"
	ActionPropose        = "propose"
	ActionVote           = "vote"
	ActionExecute        = "execute"
	ActionEmergencyPause = "emergency_pause"
	ActionStatus         = "status"
)

var actions = []interface{}{
	ActionRegister, ActionUpdate, ActionInflow, ActionOutflow, ActionClaim, ActionSync,
	ActionOverride, ActionOverrideExpire, ActionGracePeriod, ActionPause, ActionMigrate,
	ActionProtect, ActionPropose, ActionVote, ActionExecute, ActionEmergencyPause, ActionStatus,
}

// DefaultStart 未指定 start 时的起始时间
var DefaultStart = time.Unix(1_700_000_000, 0).UTC()

// Scenario 回放脚本
type Scenario struct {
	Name      string    `yaml:"name"`
	Start     time.Time `yaml:"start"`
	Breaker   Settings  `yaml:"breaker"`
	Admin     string    `yaml:"admin"`
	Protected []string  `yaml:"protected"`
	Guardians []string  `yaml:"guardians"`
	Threshold int       `yaml:"threshold"`
	Custody   []Balance `yaml:"custody"`
	Assets    []Asset   `yaml:"assets"`
	Steps     []Step    `yaml:"steps"`
}

// Settings 熔断参数，零值沿用默认配置
type Settings struct {
	WithdrawalPeriod time.Duration `yaml:"withdrawal_period"`
	TickLength       time.Duration `yaml:"tick_length"`
	CooldownPeriod   time.Duration `yaml:"cooldown_period"`
	MaxSyncSteps     int           `yaml:"max_sync_steps"`
}

// Balance 托管账户初始余额
type Balance struct {
	Asset  string `yaml:"asset"`
	Amount string `yaml:"amount"`
}

// Asset 启动时注册的资产
type Asset struct {
	Asset               string `yaml:"asset"`
	MinLiqRetainedBps   uint32 `yaml:"min_liq_retained_bps"`
	LimitBeginThreshold string `yaml:"limit_begin_threshold"`
}

// Step 单个动作。At 为相对 Start 的偏移，必须单调不减。
type Step struct {
	At        time.Duration `yaml:"at"`
	Action    string        `yaml:"action"`
	Caller    string        `yaml:"caller"`
	Asset     string        `yaml:"asset"`
	Amount    string        `yaml:"amount"`
	Recipient string        `yaml:"recipient"`
	Revert    bool          `yaml:"revert_on_breach"`

	// register / update
	MinLiqRetainedBps   uint32 `yaml:"min_liq_retained_bps"`
	LimitBeginThreshold string `yaml:"limit_begin_threshold"`
	MaxSyncSteps        int    `yaml:"max_sync_steps"`

	// grace_period: end offset relative to Start
	Until time.Duration `yaml:"until"`

	// migrate
	Assets []string `yaml:"assets"`

	// protect
	Target string `yaml:"target"`

	// governance
	Proposal string `yaml:"proposal"`
	Approve  *bool  `yaml:"approve"`

	// Expect 期望结果标签（transferred / locked / ok / rate_limited ...），为空不校验
	Expect string `yaml:"expect"`
}

// Load 解析并校验 YAML 脚本，未知字段报错
func Load(r io.Reader) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.Start.IsZero() {
		sc.Start = DefaultStart
	}
	if sc.Admin == "" {
		sc.Admin = "admin"
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadFile reads a scenario from path
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Validate 校验脚本结构
func (s Scenario) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Admin, validation.Required),
		validation.Field(&s.Protected, validator.NoBlankItems),
		validation.Field(&s.Guardians, validator.NoBlankItems),
		validation.Field(&s.Threshold, validation.Min(0), validation.Max(maxInt(len(s.Guardians), 1))),
		validation.Field(&s.Custody),
		validation.Field(&s.Assets),
		validation.Field(&s.Steps, validation.Required),
	)
	if err != nil {
		return err
	}
	var last time.Duration
	for i, st := range s.Steps {
		if st.At < last {
			return fmt.Errorf("steps[%d]: at %s is before the previous step (%s)", i, st.At, last)
		}
		last = st.At
	}
	return nil
}

// Validate balance
func (b Balance) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Asset, validation.Required),
		validation.Field(&b.Amount, validation.Required, validator.Amount),
	)
}

// Validate asset
func (a Asset) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Asset, validation.Required),
		validation.Field(&a.MinLiqRetainedBps, validation.Required, validator.Bps),
		validation.Field(&a.LimitBeginThreshold, validator.Amount),
	)
}

// Validate step
func (s Step) Validate() error {
	needsAsset := s.Action == ActionRegister || s.Action == ActionUpdate || s.Action == ActionInflow ||
		s.Action == ActionOutflow || s.Action == ActionClaim || s.Action == ActionSync || s.Action == ActionStatus
	needsAmount := s.Action == ActionInflow || s.Action == ActionOutflow
	needsProposal := s.Action == ActionPropose || s.Action == ActionVote || s.Action == ActionExecute

	return validation.ValidateStruct(&s,
		validation.Field(&s.At, validation.Min(time.Duration(0))),
		validation.Field(&s.Action, validation.Required, validation.In(actions...)),
		validation.Field(&s.Asset, validation.When(needsAsset, validation.Required)),
		validation.Field(&s.Amount, validation.When(needsAmount, validation.Required), validator.Amount),
		validation.Field(&s.Recipient, validation.When(s.Action == ActionOutflow || s.Action == ActionMigrate, validation.Required)),
		validation.Field(&s.MinLiqRetainedBps, validation.When(s.Action == ActionRegister || s.Action == ActionUpdate, validation.Required), validator.Bps),
		validation.Field(&s.LimitBeginThreshold, validator.Amount),
		validation.Field(&s.Proposal, validation.When(needsProposal, validation.Required)),
		validation.Field(&s.Until, validation.When(s.Action == ActionGracePeriod, validation.Required)),
		validation.Field(&s.Target, validation.When(s.Action == ActionProtect, validation.Required)),
	)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
