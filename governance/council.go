// Package governance 守护者多签治理
//
// 守护者可以发起提案解除熔断，赞成票达到阈值后任何人都可以执行；
// 单个守护者可以立即紧急暂停协议，不经过投票。
package governance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/event"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
)

// BreachClearer 熔断解除钩子（breaker.Controller 实现）
type BreachClearer interface {
	ClearBreach(ctx context.Context, source string) error
}

// Proposal 提案，Open -> Executed
type Proposal struct {
	ID           string    `json:"id"`
	Proposer     string    `json:"proposer"`
	VotesFor     int       `json:"votes_for"`
	VotesAgainst int       `json:"votes_against"`
	Executed     bool      `json:"executed"`
	CreatedAt    time.Time `json:"created_at"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// Options 依赖
type Options struct {
	Access     breaker.AccessControl
	Breaker    BreachClearer
	Pause      breaker.PauseFlag
	Clock      breaker.Clock
	Dispatcher event.Dispatcher
	Logger     *logger.CtxZapLogger
}

// Council 守护者注册表、阈值和提案投票表
type Council struct {
	mu sync.Mutex

	access  breaker.AccessControl
	clearer BreachClearer
	pause   breaker.PauseFlag
	clock   breaker.Clock
	events  event.Dispatcher
	logger  *logger.CtxZapLogger

	guardians map[string]struct{}
	threshold int
	proposals map[string]*Proposal
	votes     map[string]map[string]bool // proposal -> guardian -> approve
}

// NewCouncil 创建治理模块
func NewCouncil(cfg Config, opts Options) (*Council, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Access == nil || opts.Breaker == nil || opts.Pause == nil {
		return nil, ErrInvalidConfig.WithMsgf("governance requires access control, breaker and pause flag")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger("liqguard")
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = event.NewDispatcher(event.WithLogger(opts.Logger))
	}

	c := &Council{
		access:    opts.Access,
		clearer:   opts.Breaker,
		pause:     opts.Pause,
		clock:     opts.Clock,
		events:    opts.Dispatcher,
		logger:    opts.Logger,
		guardians: make(map[string]struct{}, len(cfg.Guardians)),
		threshold: cfg.Threshold,
		proposals: make(map[string]*Proposal),
		votes:     make(map[string]map[string]bool),
	}
	for _, g := range cfg.Guardians {
		c.guardians[g] = struct{}{}
	}
	return c, nil
}

// ========== 守护者管理 ==========

// AddGuardian 注册守护者（管理员）
func (c *Council) AddGuardian(ctx context.Context, caller, guardian string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if guardian == "" {
		return ErrInvalidArgument
	}
	if _, ok := c.guardians[guardian]; ok {
		return nil
	}
	c.guardians[guardian] = struct{}{}

	c.logger.InfoCtx(ctx, "guardian added", zap.String("guardian", guardian))
	c.publish(ctx, &GuardianEvent{BaseEvent: c.newEvent(EventGuardianAdded), Guardian: guardian})
	return nil
}

// RemoveGuardian 移除守护者（管理员）
// 阈值超过剩余守护者数量时收紧为 max(1, 剩余数量)
func (c *Council) RemoveGuardian(ctx context.Context, caller, guardian string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if _, ok := c.guardians[guardian]; !ok {
		return ErrNotGuardian.WithData("guardian", guardian)
	}
	delete(c.guardians, guardian)

	c.logger.InfoCtx(ctx, "guardian removed", zap.String("guardian", guardian))
	c.publish(ctx, &GuardianEvent{BaseEvent: c.newEvent(EventGuardianRemoved), Guardian: guardian})

	limit := len(c.guardians)
	if limit < 1 {
		limit = 1
	}
	if c.threshold > limit {
		c.logger.WarnCtx(ctx, "guardian threshold clamped",
			zap.Int("from", c.threshold),
			zap.Int("to", limit))
		c.threshold = limit
		c.publish(ctx, &ThresholdEvent{BaseEvent: c.newEvent(EventThresholdChanged), Threshold: limit, Clamped: true})
	}
	return nil
}

// SetGuardianThreshold 设置阈值，要求 1 <= n <= 守护者数量（管理员）
func (c *Council) SetGuardianThreshold(ctx context.Context, caller string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if n < 1 || n > len(c.guardians) {
		return ErrInvalidThreshold.
			WithData("threshold", n).
			WithData("guardians", len(c.guardians))
	}
	c.threshold = n

	c.logger.InfoCtx(ctx, "guardian threshold set", zap.Int("threshold", n))
	c.publish(ctx, &ThresholdEvent{BaseEvent: c.newEvent(EventThresholdChanged), Threshold: n})
	return nil
}

// ========== 提案 ==========

// Propose 创建提案，发起人自动投赞成票
func (c *Council) Propose(ctx context.Context, proposalID, proposer string) (Proposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireGuardian(proposer); err != nil {
		return Proposal{}, err
	}
	if proposalID == "" {
		return Proposal{}, ErrInvalidArgument.WithMsgf("proposal id is required")
	}
	if _, ok := c.proposals[proposalID]; ok {
		return Proposal{}, ErrProposalExists.WithData("proposal_id", proposalID)
	}

	p := &Proposal{
		ID:        proposalID,
		Proposer:  proposer,
		VotesFor:  1,
		CreatedAt: c.clock.Now(),
	}
	c.proposals[proposalID] = p
	c.votes[proposalID] = map[string]bool{proposer: true}

	c.logger.InfoCtx(ctx, "proposal created",
		zap.String("proposal_id", proposalID),
		zap.String("proposer", proposer))
	c.publish(ctx, &ProposalEvent{BaseEvent: c.newEvent(EventProposalCreated), Proposal: *p})
	return *p, nil
}

// Vote 守护者投票，每个守护者每个提案只能投一次
func (c *Council) Vote(ctx context.Context, proposalID, guardian string, approve bool) (Proposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireGuardian(guardian); err != nil {
		return Proposal{}, err
	}
	p, err := c.openProposal(proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if _, voted := c.votes[proposalID][guardian]; voted {
		return Proposal{}, ErrAlreadyVoted.
			WithData("proposal_id", proposalID).
			WithData("guardian", guardian)
	}

	c.votes[proposalID][guardian] = approve
	if approve {
		p.VotesFor++
	} else {
		p.VotesAgainst++
	}

	c.logger.InfoCtx(ctx, "vote cast",
		zap.String("proposal_id", proposalID),
		zap.String("guardian", guardian),
		zap.Bool("approve", approve))
	c.publish(ctx, &VoteEvent{
		BaseEvent:  c.newEvent(EventVoteCast),
		ProposalID: proposalID,
		Guardian:   guardian,
		Approve:    approve,
	})
	return *p, nil
}

// Execute 赞成票达到阈值后执行提案并解除熔断，任何人都可以调用
func (c *Council) Execute(ctx context.Context, proposalID string) (Proposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.openProposal(proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if p.VotesFor < c.threshold {
		return Proposal{}, ErrThresholdNotMet.
			WithData("votes_for", p.VotesFor).
			WithData("threshold", c.threshold)
	}
	if err := c.clearer.ClearBreach(ctx, breaker.SourceGovernance); err != nil {
		return Proposal{}, err
	}

	p.Executed = true
	p.ExecutedAt = c.clock.Now()

	c.logger.InfoCtx(ctx, "proposal executed",
		zap.String("proposal_id", proposalID),
		zap.Int("votes_for", p.VotesFor))
	c.publish(ctx, &ProposalEvent{BaseEvent: c.newEvent(EventProposalExecuted), Proposal: *p})
	return *p, nil
}

// EmergencyPause 任意守护者立即暂停协议
func (c *Council) EmergencyPause(ctx context.Context, guardian string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireGuardian(guardian); err != nil {
		return err
	}
	c.pause.SetPaused(true)

	c.logger.WarnCtx(ctx, "emergency pause", zap.String("guardian", guardian))
	c.publish(ctx, &GuardianEvent{BaseEvent: c.newEvent(EventEmergencyPaused), Guardian: guardian})
	return nil
}

// ========== 查询 ==========

// Proposal 查询提案
func (c *Council) Proposal(proposalID string) (Proposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.proposals[proposalID]
	if !ok {
		return Proposal{}, ErrProposalNotFound.WithData("proposal_id", proposalID)
	}
	return *p, nil
}

// Guardians 守护者列表（有序）
func (c *Council) Guardians() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.guardians))
	for g := range c.guardians {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// IsGuardian 是否为守护者
func (c *Council) IsGuardian(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.guardians[id]
	return ok
}

// Threshold 当前阈值
func (c *Council) Threshold() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// HasVoted 守护者是否已对提案投票
func (c *Council) HasVoted(proposalID, guardian string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.votes[proposalID][guardian]
	return ok
}

// Close 关闭事件分发器
func (c *Council) Close() {
	c.events.Close()
}

func (c *Council) openProposal(proposalID string) (*Proposal, error) {
	p, ok := c.proposals[proposalID]
	if !ok {
		return nil, ErrProposalNotFound.WithData("proposal_id", proposalID)
	}
	if p.Executed {
		return nil, ErrProposalAlreadyExecuted.WithData("proposal_id", proposalID)
	}
	return p, nil
}

func (c *Council) requireAdmin(ctx context.Context, caller string) error {
	if !c.access.IsAdmin(ctx, caller) {
		return ErrNotAdmin.WithData("caller", caller)
	}
	return nil
}

func (c *Council) requireGuardian(id string) error {
	if _, ok := c.guardians[id]; !ok {
		return ErrNotGuardian.WithData("guardian", id)
	}
	return nil
}

func (c *Council) newEvent(name string) event.BaseEvent {
	return event.NewEvent(name, c.clock.Now())
}

func (c *Council) publish(ctx context.Context, e event.Event) {
	c.events.DispatchAsync(ctx, e)
}
