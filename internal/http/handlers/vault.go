package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/http/response"
	"github.com/yungbote/yieldvault-backend/internal/platform/apierr"
	"github.com/yungbote/yieldvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/yieldvault-backend/internal/vault"
)

type VaultHandler struct {
	vaults *vault.Manager
}

func NewVaultHandler(vaults *vault.Manager) *VaultHandler {
	return &VaultHandler{vaults: vaults}
}

type amountRequest struct {
	Amount types.Amount `json:"amount"`
}

type provisionRequest struct {
	Name              string `json:"name" binding:"required"`
	Symbol            string `json:"symbol" binding:"required"`
	PrincipalAsset    string `json:"principal_asset" binding:"required"`
	DistributionAsset string `json:"distribution_asset" binding:"required"`
	Harvester         string `json:"harvester" binding:"required"`
	Governance        string `json:"governance" binding:"required"`
}

type createStrategyRequest struct {
	Kind   string `json:"kind" binding:"required"`
	Source string `json:"source" binding:"required"`
}

type setStrategyRequest struct {
	StrategyID uuid.UUID `json:"strategy_id" binding:"required"`
	Migrate    bool      `json:"migrate"`
}

// GET /api/vaults
func (h *VaultHandler) List(c *gin.Context) {
	out, err := h.vaults.List(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"vaults": out})
}

// POST /api/vaults
func (h *VaultHandler) Provision(c *gin.Context) {
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, badRequest(err))
		return
	}
	v, err := h.vaults.Provision(c.Request.Context(), ctxutil.CallerID(c.Request.Context()), vault.ProvisionInput{
		Name:              req.Name,
		Symbol:            req.Symbol,
		PrincipalAsset:    req.PrincipalAsset,
		DistributionAsset: req.DistributionAsset,
		Harvester:         req.Harvester,
		Governance:        req.Governance,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"vault": v})
}

// GET /api/vaults/:id
func (h *VaultHandler) Get(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	st, err := h.vaults.State(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, st)
}

// GET /api/vaults/:id/positions/:depositor
// "me" resolves to the authenticated caller.
func (h *VaultHandler) Position(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	depositor := c.Param("depositor")
	if depositor == "me" {
		depositor = ctxutil.CallerID(c.Request.Context())
	}
	pv, err := h.vaults.Position(c.Request.Context(), id, depositor)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, pv)
}

// POST /api/vaults/:id/deposit
func (h *VaultHandler) Deposit(c *gin.Context) {
	id, req, ok := amountBody(c)
	if !ok {
		return
	}
	res, err := h.vaults.Deposit(c.Request.Context(), id, ctxutil.CallerID(c.Request.Context()), req.Amount)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/vaults/:id/withdraw
func (h *VaultHandler) Withdraw(c *gin.Context) {
	id, req, ok := amountBody(c)
	if !ok {
		return
	}
	res, err := h.vaults.Withdraw(c.Request.Context(), id, ctxutil.CallerID(c.Request.Context()), req.Amount)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/vaults/:id/claim
func (h *VaultHandler) Claim(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	res, err := h.vaults.Claim(c.Request.Context(), id, ctxutil.CallerID(c.Request.Context()))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/vaults/:id/proceeds
func (h *VaultHandler) RecordProceeds(c *gin.Context) {
	id, req, ok := amountBody(c)
	if !ok {
		return
	}
	res, err := h.vaults.RecordHarvestProceeds(c.Request.Context(), id, ctxutil.CallerID(c.Request.Context()), req.Amount)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/vaults/:id/strategies
func (h *VaultHandler) CreateStrategy(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, badRequest(err))
		return
	}
	row, err := h.vaults.CreateStrategy(c.Request.Context(), id, ctxutil.CallerID(c.Request.Context()), req.Kind, req.Source)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"strategy": row})
}

// PUT /api/vaults/:id/strategy
func (h *VaultHandler) SetStrategy(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	var req setStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, badRequest(err))
		return
	}
	res, err := h.vaults.SetStrategy(c.Request.Context(), id, ctxutil.CallerID(c.Request.Context()), req.StrategyID, req.Migrate)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/vaults/:id/pause
func (h *VaultHandler) Pause(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	v, err := h.vaults.Pause(c.Request.Context(), id, ctxutil.CallerID(c.Request.Context()))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"vault": v})
}

// POST /api/vaults/:id/unpause
func (h *VaultHandler) Unpause(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	v, err := h.vaults.Unpause(c.Request.Context(), id, ctxutil.CallerID(c.Request.Context()))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"vault": v})
}

// GET /api/vaults/:id/yield
// ?accrue=true pokes the venue first.
func (h *VaultHandler) Yield(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	read := h.vaults.UnderlyingYield
	if c.Query("accrue") == "true" {
		read = h.vaults.AccrueYield
	}
	y, err := read(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"vault_id": id, "yield": y})
}

// GET /api/vaults/:id/ledger?after=&limit=
func (h *VaultHandler) Ledger(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	after, err := queryInt(c, "after", 0)
	if err != nil {
		response.Fail(c, badRequest(err))
		return
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		response.Fail(c, badRequest(err))
		return
	}
	rows, err := h.vaults.Ledger(c.Request.Context(), id, int64(after), limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"entries": rows})
}

func vaultID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, apierr.BadRequest("invalid_vault_id", err))
		return uuid.Nil, false
	}
	return id, true
}

func amountBody(c *gin.Context) (uuid.UUID, amountRequest, bool) {
	var req amountRequest
	id, ok := vaultID(c)
	if !ok {
		return id, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, badRequest(err))
		return id, req, false
	}
	return id, req, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func badRequest(err error) error {
	return apierr.BadRequest("invalid_request", err)
}
