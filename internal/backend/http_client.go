package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"quizClashClient/internal/types/friendship"
	"quizClashClient/internal/types/profile"
	"quizClashClient/internal/types/quiz"
	"quizClashClient/internal/types/user"
)

// HTTPClient talks JSON to the QuizClash REST API. Requests carry the
// session bearer token issued by the identity provider; the client never
// mints tokens itself. A client-side limiter keeps a misbehaving caller from
// hammering the backend.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(10, 20),
	}
}

type apiErrorBody struct {
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	op := method + " " + path

	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		// The server saw the request but we cannot know whether the
		// operation took effect.
		return &NetworkError{Op: op, Err: fmt.Errorf("server error: %s", resp.Status)}
	}

	if resp.StatusCode >= 400 {
		var errBody apiErrorBody
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr != nil || errBody.Code == "" {
			errBody.Code = codeForStatus(resp.StatusCode)
			if errBody.Error == "" {
				errBody.Error = resp.Status
			}
		}
		return &APIError{Code: errBody.Code, Message: errBody.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return CodeNotAuthorized
	case http.StatusConflict:
		return CodeWrongState
	default:
		return CodeInvalidSubmission
	}
}

func (c *HTTPClient) SendFriendRequest(ctx context.Context, targetUserID uuid.UUID) (uuid.UUID, error) {
	body := map[string]string{"target_user_id": targetUserID.String()}
	var out struct {
		FriendshipID uuid.UUID `json:"friendship_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/friends/requests", body, &out); err != nil {
		return uuid.Nil, err
	}
	return out.FriendshipID, nil
}

func (c *HTTPClient) RespondToFriendRequest(ctx context.Context, requestID uuid.UUID, accept bool) (*friendship.Friendship, error) {
	decision := "decline"
	if accept {
		decision = "accept"
	}
	body := map[string]string{"decision": decision}
	var out friendship.Friendship
	if err := c.do(ctx, http.MethodPut, "/api/v1/friends/requests/"+requestID.String(), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CancelFriendRequest(ctx context.Context, requestID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/friends/requests/"+requestID.String(), nil, nil)
}

func (c *HTTPClient) Unfriend(ctx context.Context, friendUserID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/friends/"+friendUserID.String(), nil, nil)
}

func (c *HTTPClient) GetFriends(ctx context.Context) ([]*friendship.Friend, error) {
	var out []*friendship.Friend
	if err := c.do(ctx, http.MethodGet, "/api/v1/friends", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetPendingIncoming(ctx context.Context) ([]*friendship.FriendRequest, error) {
	var out []*friendship.FriendRequest
	if err := c.do(ctx, http.MethodGet, "/api/v1/friends/requests/incoming", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetPendingOutgoing(ctx context.Context) ([]*friendship.FriendRequest, error) {
	var out []*friendship.FriendRequest
	if err := c.do(ctx, http.MethodGet, "/api/v1/friends/requests/outgoing", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetFriendshipStats(ctx context.Context) (*friendship.FriendshipStats, error) {
	var out friendship.FriendshipStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/friends/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CheckFriendshipStatus(ctx context.Context, targetUserID uuid.UUID) (*FriendshipStatusResult, error) {
	var out FriendshipStatusResult
	path := "/api/v1/friends/status?target_user_id=" + targetUserID.String()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetFriendsLeaderboard(ctx context.Context, limit int) (*LeaderboardPage, error) {
	var out LeaderboardPage
	path := fmt.Sprintf("/api/v1/friends/leaderboard?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SubmitQuizResult(ctx context.Context, result *quiz.AttemptResult) (*profile.UserScoreProfile, error) {
	var out profile.UserScoreProfile
	if err := c.do(ctx, http.MethodPost, "/api/v1/quiz-results", result, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SearchUsers(ctx context.Context, query string) ([]*user.User, error) {
	var out []*user.User
	path := "/api/v1/users/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
