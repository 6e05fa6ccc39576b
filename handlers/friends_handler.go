package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"quizClashClient/internal/backend"
	"quizClashClient/internal/scoring"
	"quizClashClient/internal/statemachine"
	"quizClashClient/services"
)

type FriendsHandler struct {
	friendsService *services.FriendsService
}

func NewFriendsHandler(friendsService *services.FriendsService) *FriendsHandler {
	return &FriendsHandler{
		friendsService: friendsService,
	}
}

func (h *FriendsHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	friends, err := h.friendsService.GetFriends(ctx)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, friends)
}

func (h *FriendsHandler) GetPendingIncoming(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	requests, err := h.friendsService.GetPendingIncoming(ctx)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}

func (h *FriendsHandler) GetPendingOutgoing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	requests, err := h.friendsService.GetPendingOutgoing(ctx)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}

func (h *FriendsHandler) GetFriendshipStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.friendsService.GetFriendshipStats(ctx)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func (h *FriendsHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		TargetUserID string `json:"target_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	target, err := uuid.Parse(body.TargetUserID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid target user id")
		return
	}

	f, err := h.friendsService.SendFriendRequest(ctx, target)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, f)
}

func (h *FriendsHandler) RespondToFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	requestID, err := uuid.Parse(mux.Vars(r)["requestID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request id")
		return
	}

	var body struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Decision != "accept" && body.Decision != "decline" {
		respondWithError(w, http.StatusBadRequest, "Decision must be 'accept' or 'decline'")
		return
	}

	f, err := h.friendsService.RespondToFriendRequest(ctx, requestID, body.Decision == "accept")
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, f)
}

func (h *FriendsHandler) CancelFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	requestID, err := uuid.Parse(mux.Vars(r)["requestID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request id")
		return
	}

	if err := h.friendsService.CancelFriendRequest(ctx, requestID); err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "request cancelled"})
}

func (h *FriendsHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	friendUserID, err := uuid.Parse(mux.Vars(r)["userID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := h.friendsService.Unfriend(ctx, friendUserID); err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "friend removed"})
}

func (h *FriendsHandler) GetFriendsLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	board, err := h.friendsService.GetFriendsLeaderboard(ctx, limit)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, board)
}

func (h *FriendsHandler) CheckFriendshipStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	target, err := uuid.Parse(r.URL.Query().Get("targetUserId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'targetUserId' is required")
		return
	}

	status, err := h.friendsService.CheckFriendshipStatus(ctx, target)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

func (h *FriendsHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	query := r.URL.Query().Get("q")
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "Search query parameter 'q' is required")
		return
	}

	users, err := h.friendsService.SearchUsers(ctx, query)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, users)
}

func (h *FriendsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := h.friendsService.Refresh(ctx); err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "refreshed"})
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithDomainError maps the engine's error taxonomy onto HTTP codes:
// local validation failures are the caller's fault, stale state asks for a
// refresh-and-retry, and network failures surface as a bad gateway because
// the outcome is unknown.
func respondWithDomainError(w http.ResponseWriter, err error) {
	var (
		invalidTransition *statemachine.InvalidTransitionError
		staleState        *statemachine.StaleStateError
		notAuthorized     *statemachine.NotAuthorizedError
		invalidSubmission *scoring.InvalidSubmissionError
		outOfOrder        *scoring.OutOfOrderActivityError
		networkErr        *backend.NetworkError
		apiErr            *backend.APIError
	)

	switch {
	case errors.As(err, &invalidTransition):
		respondWithError(w, http.StatusConflict, invalidTransition.Error())
	case errors.As(err, &staleState):
		respondWithError(w, http.StatusConflict, staleState.Error()+" (refresh and retry)")
	case errors.As(err, &notAuthorized):
		respondWithError(w, http.StatusForbidden, notAuthorized.Error())
	case errors.As(err, &invalidSubmission):
		respondWithError(w, http.StatusBadRequest, invalidSubmission.Error())
	case errors.As(err, &outOfOrder):
		respondWithError(w, http.StatusBadRequest, outOfOrder.Error())
	case errors.As(err, &networkErr):
		respondWithError(w, http.StatusBadGateway, networkErr.Error())
	case errors.As(err, &apiErr) && apiErr.Code == backend.CodeNotFound:
		respondWithError(w, http.StatusNotFound, apiErr.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
