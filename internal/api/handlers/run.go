package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/claryon/docqa/internal/api"
	"github.com/claryon/docqa/internal/domain"
)

// QuestionRunner answers a batch of questions against a single document.
type QuestionRunner interface {
	Run(ctx context.Context, documentURL string, questions []string) []string
}

type RunHandler struct {
	runner QuestionRunner
}

func NewRunHandler(runner QuestionRunner) *RunHandler {
	return &RunHandler{runner: runner}
}

type RunRequest struct {
	Documents string   `json:"documents"`
	Questions []string `json:"questions"`
}

type RunResponse struct {
	Answers []string `json:"answers"`
}

func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Documents) == "" {
		api.HandleError(w, domain.ErrMissingDocumentURL)
		return
	}
	if len(req.Questions) == 0 {
		api.HandleError(w, domain.ErrNoQuestions)
		return
	}
	for _, q := range req.Questions {
		if strings.TrimSpace(q) == "" {
			api.Error(w, http.StatusBadRequest, "questions must not be empty")
			return
		}
	}

	answers := h.runner.Run(r.Context(), req.Documents, req.Questions)

	api.JSON(w, http.StatusOK, RunResponse{Answers: answers})
}
