package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/yourorg/rentnest/internal/service"
	"github.com/yourorg/rentnest/internal/worker"
)

// AdminHandler exposes the operational endpoints: consistency diagnosis,
// repair and a manual expiry sweep. These are guarded by a shared admin
// token rather than user auth.
type AdminHandler struct {
	auditor    *service.AuditorService
	sweeper    *worker.ExpirySweeper
	adminToken string
	logger     *slog.Logger
}

// NewAdminHandler creates a new admin handler. An empty adminToken disables
// every endpoint.
func NewAdminHandler(auditor *service.AuditorService, sweeper *worker.ExpirySweeper, adminToken string, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		auditor:    auditor,
		sweeper:    sweeper,
		adminToken: adminToken,
		logger:     logger,
	}
}

func (h *AdminHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	token := r.Header.Get("X-Admin-Token")
	if h.adminToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		h.logger.Warn("admin endpoint denied", slog.String("path", r.URL.Path))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return false
	}
	return true
}

// Diagnose handles GET /api/admin/consistency
func (h *AdminHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	discrepancies, err := h.auditor.Diagnose(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"consistent":    len(discrepancies) == 0,
		"discrepancies": discrepancies,
	})
}

// Repair handles POST /api/admin/consistency/repair
func (h *AdminHandler) Repair(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	results, err := h.auditor.Repair(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"repaired": len(results),
		"results":  results,
	})
}

// Sweep handles POST /api/admin/sweep - run the expiry sweep now instead of
// waiting for the schedule
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	expired, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"expired": expired})
}
