package httpapi

import (
	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/governance"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

// API binds controller and council operations to routes
type API struct {
	breaker *breaker.Controller
	council *governance.Council
}

// NewAPI council may be nil when governance is disabled
func NewAPI(b *breaker.Controller, c *governance.Council) *API {
	return &API{breaker: b, council: c}
}

// Register mounts the /v1 routes on r; r must already authenticate
func (a *API) Register(r gin.IRouter) {
	assets := r.Group("/assets")
	assets.GET("", Wrap(a.listAssets))
	assets.POST("", Wrap(a.registerAsset))
	assets.GET("/:asset", Wrap(a.getAsset))
	assets.PUT("/:asset", Wrap(a.updateAsset))
	assets.GET("/:asset/status", Wrap(a.assetStatus))
	assets.POST("/:asset/sync", Wrap(a.syncAsset))

	flows := r.Group("/flows")
	flows.POST("/inflow", Wrap(a.inflow))
	flows.POST("/outflow", Wrap(a.outflow))

	br := r.Group("/breaker")
	br.GET("", Wrap(a.snapshot))
	br.POST("/override", Wrap(a.override))
	br.POST("/override-expired", Wrap(a.overrideExpired))
	br.POST("/grace-period", Wrap(a.gracePeriod))
	br.POST("/pause", Wrap(a.pause))
	br.POST("/migrate", Wrap(a.migrate))
	br.POST("/protected-callers", Wrap(a.addProtected))
	br.DELETE("/protected-callers", Wrap(a.removeProtected))

	r.GET("/locked/:recipient/:asset", Wrap(a.locked))
	r.POST("/claims", Wrap(a.claim))

	if a.council == nil {
		return
	}
	gov := r.Group("/governance")
	gov.GET("", Wrap(a.councilView))
	gov.POST("/guardians", Wrap(a.addGuardian))
	gov.DELETE("/guardians/:guardian", Wrap(a.removeGuardian))
	gov.PUT("/threshold", Wrap(a.setThreshold))
	gov.POST("/proposals", Wrap(a.propose))
	gov.GET("/proposals/:id", Wrap(a.proposal))
	gov.POST("/proposals/:id/votes", Wrap(a.vote))
	gov.POST("/proposals/:id/execute", Wrap(a.execute))
	gov.POST("/emergency-pause", Wrap(a.emergencyPause))
}

func mustAmount(s string) *uint256.Int {
	v, _ := uint256.FromDecimal(s)
	return v
}

// ---- assets ----

func (a *API) listAssets(c *gin.Context, _ *struct{}) (*AssetList, error) {
	ctx := c.Request.Context()
	names, err := a.breaker.Assets(ctx)
	if err != nil {
		return nil, err
	}
	out := &AssetList{Assets: make([]*AssetView, 0, len(names))}
	for _, name := range names {
		view, err := a.assetView(c, name, false)
		if err != nil {
			return nil, err
		}
		out.Assets = append(out.Assets, view)
	}
	return out, nil
}

func (a *API) assetView(c *gin.Context, asset string, withWindow bool) (*AssetView, error) {
	ctx := c.Request.Context()
	st, err := a.breaker.Limiter(ctx, asset)
	if err != nil {
		return nil, err
	}
	status, err := a.breaker.Status(ctx, asset)
	if err != nil {
		return nil, err
	}
	var window []limiter.Tick
	if withWindow {
		if window, err = a.breaker.Window(ctx, asset); err != nil {
			return nil, err
		}
	}
	return newAssetView(st, status, window), nil
}

func (a *API) registerAsset(c *gin.Context, req *RegisterAssetRequest) (*AssetView, error) {
	if err := a.breaker.RegisterAsset(c.Request.Context(), CallerFrom(c), req.Asset, req.policy()); err != nil {
		return nil, err
	}
	return a.assetView(c, req.Asset, false)
}

func (a *API) getAsset(c *gin.Context, req *AssetRequest) (*AssetView, error) {
	return a.assetView(c, req.Asset, true)
}

func (a *API) updateAsset(c *gin.Context, req *UpdateAssetRequest) (*AssetView, error) {
	if _, err := a.breaker.UpdateAssetParams(c.Request.Context(), CallerFrom(c), req.Asset, req.policy(), req.MaxSyncSteps); err != nil {
		return nil, err
	}
	return a.assetView(c, req.Asset, false)
}

func (a *API) assetStatus(c *gin.Context, req *AssetRequest) (*StatusView, error) {
	status, err := a.breaker.Status(c.Request.Context(), req.Asset)
	if err != nil {
		return nil, err
	}
	return &StatusView{Asset: req.Asset, Status: status.String(), Triggered: status == limiter.StatusTriggered}, nil
}

func (a *API) syncAsset(c *gin.Context, req *SyncRequest) (*SyncView, error) {
	res, err := a.breaker.ClearBacklog(c.Request.Context(), req.Asset, req.MaxSteps)
	if err != nil {
		return nil, err
	}
	return newSyncView(req.Asset, res), nil
}

// ---- flows ----

func (a *API) inflow(c *gin.Context, req *InflowRequest) (*Ack, error) {
	ctx, caller, amount := c.Request.Context(), CallerFrom(c), mustAmount(req.Amount)
	var err error
	if req.Asset == breaker.NativeAsset {
		err = a.breaker.OnNativeInflow(ctx, caller, amount)
	} else {
		err = a.breaker.OnTokenInflow(ctx, caller, req.Asset, amount)
	}
	if err != nil {
		return nil, err
	}
	return ack, nil
}

func (a *API) outflow(c *gin.Context, req *OutflowRequest) (*OutflowView, error) {
	ctx, caller, amount := c.Request.Context(), CallerFrom(c), mustAmount(req.Amount)
	var (
		outcome breaker.Outcome
		err     error
	)
	if req.Asset == breaker.NativeAsset {
		outcome, err = a.breaker.OnNativeOutflow(ctx, caller, amount, req.Recipient, req.RevertOnBreach)
	} else {
		outcome, err = a.breaker.OnTokenOutflow(ctx, caller, req.Asset, amount, req.Recipient, req.RevertOnBreach)
	}
	if err != nil {
		return nil, err
	}
	return &OutflowView{Outcome: outcome}, nil
}

// ---- breaker ----

func (a *API) snapshot(_ *gin.Context, _ *struct{}) (*breaker.Snapshot, error) {
	s := a.breaker.Snapshot()
	return &s, nil
}

func (a *API) override(c *gin.Context, _ *struct{}) (*Ack, error) {
	if err := a.breaker.OverrideRateLimit(c.Request.Context(), CallerFrom(c)); err != nil {
		return nil, err
	}
	return ack, nil
}

func (a *API) overrideExpired(c *gin.Context, _ *struct{}) (*Ack, error) {
	if err := a.breaker.OverrideExpiredRateLimit(c.Request.Context()); err != nil {
		return nil, err
	}
	return ack, nil
}

func (a *API) gracePeriod(c *gin.Context, req *GracePeriodRequest) (*Ack, error) {
	if err := a.breaker.StartGracePeriod(c.Request.Context(), CallerFrom(c), req.End); err != nil {
		return nil, err
	}
	return ack, nil
}

func (a *API) pause(c *gin.Context, _ *struct{}) (*Ack, error) {
	if err := a.breaker.MarkAsNotOperational(c.Request.Context(), CallerFrom(c)); err != nil {
		return nil, err
	}
	return ack, nil
}

func (a *API) migrate(c *gin.Context, req *MigrateRequest) (*MigrateView, error) {
	moved, err := a.breaker.MigrateFundsAfterExploit(c.Request.Context(), CallerFrom(c), req.Assets, req.Recovery)
	if err != nil {
		return nil, err
	}
	out := &MigrateView{Recovery: req.Recovery, Amounts: make(map[string]string, len(moved))}
	for asset, amount := range moved {
		out.Amounts[asset] = amount.Dec()
	}
	return out, nil
}

func (a *API) addProtected(c *gin.Context, req *ProtectedCallersRequest) (*breaker.Snapshot, error) {
	if err := a.breaker.AddProtectedCallers(c.Request.Context(), CallerFrom(c), req.Callers...); err != nil {
		return nil, err
	}
	s := a.breaker.Snapshot()
	return &s, nil
}

func (a *API) removeProtected(c *gin.Context, req *ProtectedCallersRequest) (*breaker.Snapshot, error) {
	if err := a.breaker.RemoveProtectedCallers(c.Request.Context(), CallerFrom(c), req.Callers...); err != nil {
		return nil, err
	}
	s := a.breaker.Snapshot()
	return &s, nil
}

func (a *API) locked(_ *gin.Context, req *LockedRequest) (*FundsView, error) {
	return &FundsView{
		Asset:     req.Asset,
		Recipient: req.Recipient,
		Amount:    a.breaker.LockedFunds(req.Recipient, req.Asset).Dec(),
	}, nil
}

func (a *API) claim(c *gin.Context, req *ClaimRequest) (*FundsView, error) {
	recipient := req.Recipient
	if recipient == "" {
		recipient = CallerFrom(c)
	}
	amount, err := a.breaker.ClaimLockedFunds(c.Request.Context(), req.Asset, recipient)
	if err != nil {
		return nil, err
	}
	return &FundsView{Asset: req.Asset, Recipient: recipient, Amount: amount.Dec()}, nil
}

// ---- governance ----

func (a *API) councilView(_ *gin.Context, _ *struct{}) (*CouncilView, error) {
	return &CouncilView{Guardians: a.council.Guardians(), Threshold: a.council.Threshold()}, nil
}

func (a *API) addGuardian(c *gin.Context, req *GuardianRequest) (*CouncilView, error) {
	if err := a.council.AddGuardian(c.Request.Context(), CallerFrom(c), req.Guardian); err != nil {
		return nil, err
	}
	return a.councilView(c, nil)
}

func (a *API) removeGuardian(c *gin.Context, req *GuardianRequest) (*CouncilView, error) {
	if err := a.council.RemoveGuardian(c.Request.Context(), CallerFrom(c), req.Guardian); err != nil {
		return nil, err
	}
	return a.councilView(c, nil)
}

func (a *API) setThreshold(c *gin.Context, req *ThresholdRequest) (*CouncilView, error) {
	if err := a.council.SetGuardianThreshold(c.Request.Context(), CallerFrom(c), req.Threshold); err != nil {
		return nil, err
	}
	return a.councilView(c, nil)
}

func (a *API) propose(c *gin.Context, req *ProposeRequest) (*governance.Proposal, error) {
	p, err := a.council.Propose(c.Request.Context(), req.ID, CallerFrom(c))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) proposal(_ *gin.Context, req *ProposalRequest) (*governance.Proposal, error) {
	p, err := a.council.Proposal(req.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) vote(c *gin.Context, req *VoteRequest) (*governance.Proposal, error) {
	p, err := a.council.Vote(c.Request.Context(), req.ID, CallerFrom(c), req.Approve)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) execute(c *gin.Context, req *ProposalRequest) (*governance.Proposal, error) {
	p, err := a.council.Execute(c.Request.Context(), req.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) emergencyPause(c *gin.Context, _ *struct{}) (*Ack, error) {
	if err := a.council.EmergencyPause(c.Request.Context(), CallerFrom(c)); err != nil {
		return nil, err
	}
	return ack, nil
}
