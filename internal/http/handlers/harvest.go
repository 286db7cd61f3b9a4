package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/harvester"
	"github.com/yungbote/yieldvault-backend/internal/http/response"
	"github.com/yungbote/yieldvault-backend/internal/platform/apierr"
	"github.com/yungbote/yieldvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/yieldvault-backend/internal/vault"
)

type HarvestHandler struct {
	harvests harvester.Service
	vaults   *vault.Manager
}

func NewHarvestHandler(harvests harvester.Service, vaults *vault.Manager) *HarvestHandler {
	return &HarvestHandler{harvests: harvests, vaults: vaults}
}

type harvestRequest struct {
	ExpectedYield types.Amount `json:"expected_yield"`
	MinProceeds   types.Amount `json:"min_proceeds"`
	SwapPath      []string     `json:"swap_path"`
	Deadline      time.Time    `json:"deadline"`
}

// POST /api/vaults/:id/harvest
func (h *HarvestHandler) Harvest(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	var req harvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, badRequest(err))
		return
	}
	res, err := h.harvests.Harvest(c.Request.Context(), harvester.Request{
		VaultID:       id,
		Caller:        ctxutil.CallerID(c.Request.Context()),
		ExpectedYield: req.ExpectedYield,
		MinProceeds:   req.MinProceeds,
		SwapPath:      req.SwapPath,
		Deadline:      req.Deadline,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/vaults/:id/harvest/quote?path=DAI,WETH
func (h *HarvestHandler) Quote(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	var path []string
	if raw := strings.TrimSpace(c.Query("path")); raw != "" {
		path = strings.Split(raw, ",")
	}
	q, err := h.harvests.Quote(c.Request.Context(), id, path)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, q)
}

// GET /api/vaults/:id/harvests?limit=
func (h *HarvestHandler) List(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		response.Fail(c, badRequest(err))
		return
	}
	rows, err := h.vaults.Harvests(c.Request.Context(), id, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"harvests": rows})
}

// POST /api/vaults/:id/harvests/:harvest_id/resolve
func (h *HarvestHandler) Resolve(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	harvestID, err := uuid.Parse(c.Param("harvest_id"))
	if err != nil {
		response.Fail(c, apierr.BadRequest("invalid_harvest_id", err))
		return
	}
	res, err := h.vaults.ResolveStranded(c.Request.Context(), id, ctxutil.CallerID(c.Request.Context()), harvestID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, res)
}
