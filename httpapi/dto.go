package httpapi

import (
	"time"

	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/validator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/holiman/uint256"
)

// Ack empty success payload
type Ack struct {
	OK bool `json:"ok"`
}

var ack = &Ack{OK: true}

// PolicyRequest policy fields shared by register and update
type PolicyRequest struct {
	MinLiqRetainedBps   uint32 `json:"min_liq_retained_bps"`
	LimitBeginThreshold string `json:"limit_begin_threshold"`
}

func (p PolicyRequest) policy() limiter.Policy {
	threshold, _ := uint256.FromDecimal(p.LimitBeginThreshold)
	return limiter.Policy{MinLiqRetainedBps: p.MinLiqRetainedBps, LimitBeginThreshold: *threshold}
}

func (p *PolicyRequest) fields() []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(&p.MinLiqRetainedBps, validation.Required, validator.Bps),
		validation.Field(&p.LimitBeginThreshold, validation.Required, validator.Amount),
	}
}

// RegisterAssetRequest POST /v1/assets
type RegisterAssetRequest struct {
	Asset string `json:"asset"`
	PolicyRequest
}

// Validate request
func (r *RegisterAssetRequest) Validate() error {
	return validation.ValidateStruct(r, append(r.PolicyRequest.fields(),
		validation.Field(&r.Asset, validation.Required))...)
}

// UpdateAssetRequest PUT /v1/assets/:asset
type UpdateAssetRequest struct {
	Asset        string `uri:"asset" json:"-"`
	MaxSyncSteps int    `json:"max_sync_steps"`
	PolicyRequest
}

// Validate request
func (r *UpdateAssetRequest) Validate() error {
	return validation.ValidateStruct(r, append(r.PolicyRequest.fields(),
		validation.Field(&r.MaxSyncSteps, validation.Min(0)))...)
}

// AssetRequest routes keyed only by asset
type AssetRequest struct {
	Asset string `uri:"asset" json:"-"`
}

// SyncRequest POST /v1/assets/:asset/sync
type SyncRequest struct {
	Asset    string `uri:"asset" json:"-"`
	MaxSteps int    `json:"max_steps"`
}

// Validate request
func (r *SyncRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.MaxSteps, validation.Min(0)))
}

// InflowRequest POST /v1/flows/inflow; asset "native" is the native path
type InflowRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// Validate request
func (r *InflowRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Asset, validation.Required),
		validation.Field(&r.Amount, validation.Required, validator.Amount),
	)
}

// OutflowRequest POST /v1/flows/outflow
type OutflowRequest struct {
	Asset          string `json:"asset"`
	Amount         string `json:"amount"`
	Recipient      string `json:"recipient"`
	RevertOnBreach bool   `json:"revert_on_breach"`
}

// Validate request
func (r *OutflowRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Asset, validation.Required),
		validation.Field(&r.Amount, validation.Required, validator.Amount),
		validation.Field(&r.Recipient, validation.Required),
	)
}

// GracePeriodRequest POST /v1/breaker/grace-period
type GracePeriodRequest struct {
	End time.Time `json:"end"`
}

// Validate request
func (r *GracePeriodRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.End, validation.Required))
}

// ClaimRequest POST /v1/claims; recipient defaults to the caller
type ClaimRequest struct {
	Asset     string `json:"asset"`
	Recipient string `json:"recipient"`
}

// Validate request
func (r *ClaimRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Asset, validation.Required))
}

// MigrateRequest POST /v1/breaker/migrate
type MigrateRequest struct {
	Assets   []string `json:"assets"`
	Recovery string   `json:"recovery"`
}

// Validate request
func (r *MigrateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Assets, validation.Required, validator.NoBlankItems),
		validation.Field(&r.Recovery, validation.Required),
	)
}

// ProtectedCallersRequest POST|DELETE /v1/breaker/protected-callers
type ProtectedCallersRequest struct {
	Callers []string `json:"callers"`
}

// Validate request
func (r *ProtectedCallersRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Callers, validation.Required, validator.NoBlankItems),
	)
}

// LockedRequest GET /v1/locked/:recipient/:asset
type LockedRequest struct {
	Recipient string `uri:"recipient"`
	Asset     string `uri:"asset"`
}

// GuardianRequest POST /v1/governance/guardians, DELETE /v1/governance/guardians/:guardian
type GuardianRequest struct {
	Guardian string `uri:"guardian" json:"guardian"`
}

// Validate request
func (r *GuardianRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Guardian, validation.Required))
}

// ThresholdRequest PUT /v1/governance/threshold
type ThresholdRequest struct {
	Threshold int `json:"threshold"`
}

// ProposeRequest POST /v1/governance/proposals
type ProposeRequest struct {
	ID string `json:"id"`
}

// Validate request
func (r *ProposeRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.ID, validation.Required))
}

// ProposalRequest routes keyed by proposal id
type ProposalRequest struct {
	ID string `uri:"id" json:"-"`
}

// VoteRequest POST /v1/governance/proposals/:id/votes
type VoteRequest struct {
	ID      string `uri:"id" json:"-"`
	Approve bool   `json:"approve"`
}

// AssetView one registered asset
type AssetView struct {
	Asset               string         `json:"asset"`
	Status              string         `json:"status"`
	MinLiqRetainedBps   uint32         `json:"min_liq_retained_bps"`
	LimitBeginThreshold string         `json:"limit_begin_threshold"`
	LiqTotal            string         `json:"liq_total"`
	LiqInPeriod         string         `json:"liq_in_period"`
	ConfirmedLiquidity  string         `json:"confirmed_liquidity"`
	Window              []limiter.Tick `json:"window,omitempty"`
}

func newAssetView(st limiter.State, status limiter.Status, window []limiter.Tick) *AssetView {
	return &AssetView{
		Asset:               st.Asset,
		Status:              status.String(),
		MinLiqRetainedBps:   st.Policy.MinLiqRetainedBps,
		LimitBeginThreshold: st.Policy.LimitBeginThreshold.Dec(),
		LiqTotal:            st.LiqTotal.String(),
		LiqInPeriod:         st.LiqInPeriod.String(),
		ConfirmedLiquidity:  st.LiqTotal.Sub(st.LiqInPeriod).String(),
		Window:              window,
	}
}

// AssetList GET /v1/assets
type AssetList struct {
	Assets []*AssetView `json:"assets"`
}

// StatusView GET /v1/assets/:asset/status
type StatusView struct {
	Asset     string `json:"asset"`
	Status    string `json:"status"`
	Triggered bool   `json:"triggered"`
}

// SyncView result of a backlog sync
type SyncView struct {
	Asset   string `json:"asset"`
	Evicted string `json:"evicted"`
	Steps   int    `json:"steps"`
	Head    uint64 `json:"head"`
	Tail    uint64 `json:"tail"`
}

func newSyncView(asset string, r limiter.SyncResult) *SyncView {
	return &SyncView{
		Asset:   asset,
		Evicted: r.Evicted.String(),
		Steps:   r.Steps,
		Head:    r.List.Head,
		Tail:    r.List.Tail,
	}
}

// OutflowView POST /v1/flows/outflow
type OutflowView struct {
	Outcome breaker.Outcome `json:"outcome"`
}

// FundsView locked or claimed amount
type FundsView struct {
	Asset     string `json:"asset"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// MigrateView POST /v1/breaker/migrate
type MigrateView struct {
	Recovery string            `json:"recovery"`
	Amounts  map[string]string `json:"amounts"`
}

// CouncilView GET /v1/governance
type CouncilView struct {
	Guardians []string `json:"guardians"`
	Threshold int      `json:"threshold"`
}
