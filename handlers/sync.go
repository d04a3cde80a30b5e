package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petpath/tracksync/internal/models"
	"github.com/petpath/tracksync/internal/runlock"
	"github.com/petpath/tracksync/internal/trackimo"
	"github.com/petpath/tracksync/pkg/logger"
)

// SyncRunner is the engine surface the trigger depends on.
type SyncRunner interface {
	Run(ctx context.Context) (*models.SyncReport, error)
}

// SyncHandler exposes the reconciliation trigger. The endpoint takes no
// parameters: one call is one full sync run.
type SyncHandler struct {
	runner SyncRunner
	lock   runlock.Locker
}

func NewSyncHandler(runner SyncRunner, lock runlock.Locker) *SyncHandler {
	if lock == nil {
		lock = runlock.NoopLocker{}
	}
	return &SyncHandler{runner: runner, lock: lock}
}

// Register routes under the given group.
func (h *SyncHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sync/users", h.SyncUsers)
}

// SyncUsers runs one reconciliation. Status codes: 200 for any completed run
// (per-user errors included), 401 when the remote handshake fails, 409 when
// another run holds the lock, 500 for precondition failures.
func (h *SyncHandler) SyncUsers(c *gin.Context) {
	release, ok, err := h.lock.Acquire(c.Request.Context())
	if err != nil {
		logger.Errorf("sync lock check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync lock check failed", "details": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "a sync run is already in progress"})
		return
	}
	defer release()

	report, err := h.runner.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, trackimo.ErrAuthFailed) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "failed to authenticate with Trackimo API"})
			return
		}
		logger.Errorf("sync run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"processed_users":   len(report.Processed),
		"deactivated_users": len(report.Deactivated),
		"users":             report.Processed,
		"inactive_users":    report.Deactivated,
		"summary":           report.Summarize(),
	})
}
