package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"quizClashClient/internal/types/quiz"
	"quizClashClient/services"
)

type QuizHandler struct {
	quizService *services.QuizService
}

func NewQuizHandler(quizService *services.QuizService) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
	}
}

func (h *QuizHandler) SubmitQuizResult(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var result quiz.AttemptResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = time.Now().UTC()
	}

	updated, err := h.quizService.SubmitQuizResult(ctx, &result)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *QuizHandler) GetScoreProfile(w http.ResponseWriter, r *http.Request) {
	p := h.quizService.Profile()
	if p == nil {
		respondWithError(w, http.StatusNotFound, "No score profile yet, submit a quiz result first")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}
