package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

const statsCacheTTL = 5 * time.Second

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	service *attendance.Service
	cache   statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(svc *attendance.Service) *StatsHandler {
	return &StatsHandler{service: svc}
}

// StatsResponse represents the stats response
type StatsResponse struct {
	attendance.Stats
	Backend string `json:"backend"`
}

// Get returns store statistics. ?refresh=1 bypasses the cache.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		h.cache.invalidate()
	}
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := &StatsResponse{Stats: stats, Backend: database.BackendName()}
	h.cache.set(resp)
	respondJSON(w, http.StatusOK, resp)
}
