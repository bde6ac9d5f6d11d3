package debug

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/zhouzirui/crossview/backend/internal/store"
	"github.com/zhouzirui/crossview/backend/pkg/utils"
)

// Handler exposes the stored record keys for operators.
type Handler struct {
	store store.Store
	now   func() time.Time
}

// New 创建调试处理器
func New(st store.Store, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{store: st, now: now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/debug/data", h.handleData)
}

type dataResponse struct {
	Collections  map[string][]string `json:"collections"`
	TotalRecords int                 `json:"totalRecords"`
	Timestamp    time.Time           `json:"timestamp"`
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	collections := make(map[string][]string, len(store.AllCollections))
	for _, c := range store.AllCollections {
		keys, err := h.store.Keys(r.Context(), c)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		collections[c] = keys
	}

	utils.RespondJSON(w, http.StatusOK, dataResponse{
		Collections:  collections,
		TotalRecords: lo.SumBy(lo.Values(collections), func(keys []string) int { return len(keys) }),
		Timestamp:    h.now().UTC(),
	})
}
