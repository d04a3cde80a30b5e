package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/petpath/tracksync/internal/models"
	"github.com/petpath/tracksync/internal/store"
	"github.com/petpath/tracksync/internal/syncer"
)

// UsersHandler exposes the reconciled directory to reporting and back-office
// tools. It is the only writer of the plan field; everything else is owned
// by the reconciliation engine.
type UsersHandler struct {
	stores *store.Stores
	now    func() time.Time
}

func NewUsersHandler(stores *store.Stores) *UsersHandler {
	return &UsersHandler{stores: stores, now: func() time.Time { return time.Now().UTC() }}
}

func (h *UsersHandler) Register(rg *gin.RouterGroup) {
	u := rg.Group("/users")
	u.GET("", h.List)
	u.GET("/:nif", h.Get)
	u.GET("/:nif/devices", h.Devices)
	u.GET("/:nif/changes", h.Changes)
	u.PUT("/:nif", h.UpdatePlan)
	u.DELETE("/:nif", h.Deactivate)
}

func (h *UsersHandler) List(c *gin.Context) {
	users, err := h.stores.Users.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch users", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UsersHandler) Get(c *gin.Context) {
	u, err := h.stores.Users.FindByNIF(c.Request.Context(), c.Param("nif"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed", "details": err.Error()})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Devices(c *gin.Context) {
	devs, err := h.stores.Devices.ListByNIF(c.Request.Context(), c.Param("nif"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, devs)
}

func (h *UsersHandler) Changes(c *gin.Context) {
	entries, err := h.stores.Changes.ListByNIF(c.Request.Context(), c.Param("nif"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// UpdatePlan sets the plan field. The change is audited with source=ADMIN so
// plan history stays reconstructable next to the sync trail.
func (h *UsersHandler) UpdatePlan(c *gin.Context) {
	var req struct {
		Plan string `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	nif := c.Param("nif")
	u, err := h.stores.Users.FindByNIF(ctx, nif)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed", "details": err.Error()})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if u.Plan == req.Plan {
		c.JSON(http.StatusOK, u)
		return
	}

	change := syncer.Change{Field: "plan", Old: u.Plan, New: req.Plan}
	now := h.now()
	u.Plan = req.Plan
	u.LastUpdated = now
	if err := h.stores.Users.Upsert(ctx, u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save user", "details": err.Error()})
		return
	}
	if err := h.appendAudit(c, nif, now, change); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log change", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, u)
}

// Deactivate soft-deletes: user records are never removed, only transitioned
// to inactive.
func (h *UsersHandler) Deactivate(c *gin.Context) {
	ctx := c.Request.Context()
	nif := c.Param("nif")
	u, err := h.stores.Users.FindByNIF(ctx, nif)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed", "details": err.Error()})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if u.Status == models.StatusInactive {
		c.JSON(http.StatusOK, u)
		return
	}

	change := syncer.Change{Field: "status", Old: u.Status, New: models.StatusInactive, Note: "deactivated by admin"}
	now := h.now()
	u.Status = models.StatusInactive
	u.LastUpdated = now
	u.DeactivatedTimestamp = now
	if err := h.stores.Users.Upsert(ctx, u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save user", "details": err.Error()})
		return
	}
	if err := h.appendAudit(c, nif, now, change); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log change", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UsersHandler) appendAudit(c *gin.Context, nif string, now time.Time, changes ...syncer.Change) error {
	entry := &models.ChangeLogEntry{
		PartitionKey: fmt.Sprintf("USER_%s", nif),
		RowKey:       store.AuditRowKey(now),
		NIF:          nif,
		Timestamp:    now,
		Source:       models.SourceAdmin,
		Changes:      syncer.Render(changes),
		ChangesCount: len(changes),
	}
	return h.stores.Changes.Append(c.Request.Context(), entry)
}
