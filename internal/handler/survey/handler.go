package survey

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	surveyService "github.com/zhouzirui/crossview/backend/internal/service/survey"
	"github.com/zhouzirui/crossview/backend/pkg/utils"
)

// Handler 问卷提交的HTTP处理器
type Handler struct {
	svc *surveyService.Service
}

// New 创建问卷处理器
func New(svc *surveyService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册问卷相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/survey/submit", h.handleSubmit)
	r.Post("/exit-survey", h.handleExitSurvey)
}

// handleSubmit 分类并登记参与者
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload surveyService.Submission
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Submit(r.Context(), payload)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, surveyService.ErrInvalidSubmission) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, res)
}

// handleExitSurvey 保存退出问卷
func (h *Handler) handleExitSurvey(w http.ResponseWriter, r *http.Request) {
	var payload surveyService.ExitSurvey
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.SaveExitSurvey(r.Context(), payload); err != nil {
		if errors.Is(err, surveyService.ErrInvalidSubmission) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to save exit survey")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
