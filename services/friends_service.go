package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"quizClashClient/internal/backend"
	"quizClashClient/internal/cache"
	"quizClashClient/internal/ranking"
	"quizClashClient/internal/statemachine"
	"quizClashClient/internal/types/friendship"
	"quizClashClient/internal/types/leaderboard"
	"quizClashClient/internal/types/user"
)

const profileCacheSize = 1000

// FriendsService is the consolidated entry point for everything social: it
// keeps the RelationshipCache coherent with the backend, joins relationship
// records with user display attributes, and computes the friends
// leaderboard. One instance serves one viewer.
type FriendsService struct {
	viewer   uuid.UUID
	backend  backend.Client
	cache    *cache.RelationshipCache
	profiles *lru.Cache
}

func NewFriendsService(viewer uuid.UUID, client backend.Client) *FriendsService {
	profiles, _ := lru.New(profileCacheSize)
	return &FriendsService{
		viewer:   viewer,
		backend:  client,
		cache:    cache.NewRelationshipCache(viewer, client),
		profiles: profiles,
	}
}

// Cache exposes the underlying relationship cache, mainly for tests and the
// health endpoint.
func (s *FriendsService) Cache() *cache.RelationshipCache {
	return s.cache
}

// Refresh re-fetches the authoritative relationship state and installs it
// atomically. Any optimistic mutation still in flight will find its rollback
// bookkeeping invalidated, so the fresher state wins.
func (s *FriendsService) Refresh(ctx context.Context) error {
	friends, err := s.backend.GetFriends(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch friends: %w", err)
	}
	incoming, err := s.backend.GetPendingIncoming(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch incoming requests: %w", err)
	}
	outgoing, err := s.backend.GetPendingOutgoing(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch outgoing requests: %w", err)
	}

	records := make([]*friendship.Friendship, 0, len(friends)+len(incoming)+len(outgoing))
	for _, f := range friends {
		s.profiles.Add(f.User.ID, &f.User)
		records = append(records, &friendship.Friendship{
			ID:          f.FriendshipID,
			RequesterID: f.User.ID,
			AddresseeID: s.viewer,
			Status:      friendship.FriendshipAccepted,
			AcceptedAt:  f.FriendsSince,
		})
	}
	for _, req := range incoming {
		if req.OtherUser != nil {
			s.profiles.Add(req.OtherUser.ID, req.OtherUser)
		}
		records = append(records, &friendship.Friendship{
			ID:          req.FriendshipID,
			RequesterID: req.OtherUserID,
			AddresseeID: s.viewer,
			Status:      friendship.FriendshipPending,
			CreatedAt:   req.CreatedAt,
		})
	}
	for _, req := range outgoing {
		if req.OtherUser != nil {
			s.profiles.Add(req.OtherUser.ID, req.OtherUser)
		}
		records = append(records, &friendship.Friendship{
			ID:          req.FriendshipID,
			RequesterID: s.viewer,
			AddresseeID: req.OtherUserID,
			Status:      friendship.FriendshipPending,
			CreatedAt:   req.CreatedAt,
		})
	}

	s.cache.Replace(records)
	log.Printf("Refresh: installed %d friendships (%d friends, %d incoming, %d outgoing)",
		len(records), len(friends), len(incoming), len(outgoing))
	return nil
}

func (s *FriendsService) lookupUser(id uuid.UUID) *user.User {
	if cached, ok := s.profiles.Get(id); ok {
		return cached.(*user.User)
	}
	return &user.User{ID: id}
}

// GetFriends serves the viewer's friends from the cache, joined with the
// display attributes last seen from the backend.
func (s *FriendsService) GetFriends(ctx context.Context) ([]*friendship.Friend, error) {
	out := make([]*friendship.Friend, 0)
	for _, f := range s.cache.Friends() {
		out = append(out, &friendship.Friend{
			FriendshipID: f.ID,
			User:         *s.lookupUser(f.OtherParticipant(s.viewer)),
			FriendsSince: f.AcceptedAt,
		})
	}
	return out, nil
}

func (s *FriendsService) GetPendingIncoming(ctx context.Context) ([]*friendship.FriendRequest, error) {
	return s.annotate(s.cache.PendingIncoming()), nil
}

func (s *FriendsService) GetPendingOutgoing(ctx context.Context) ([]*friendship.FriendRequest, error) {
	return s.annotate(s.cache.PendingOutgoing()), nil
}

func (s *FriendsService) annotate(reqs []*friendship.FriendRequest) []*friendship.FriendRequest {
	for _, req := range reqs {
		req.OtherUser = s.lookupUser(req.OtherUserID)
	}
	return reqs
}

func (s *FriendsService) GetFriendshipStats(ctx context.Context) (friendship.FriendshipStats, error) {
	return s.cache.Stats(), nil
}

// CheckFriendshipStatus reports the pair state between the viewer and
// another user from the locally coherent view.
func (s *FriendsService) CheckFriendshipStatus(ctx context.Context, target uuid.UUID) (*backend.FriendshipStatusResult, error) {
	state, id := s.cache.StatusWith(target)
	result := &backend.FriendshipStatusResult{Status: string(state)}
	if state != statemachine.StateNone {
		result.FriendshipID = &id
	}
	return result, nil
}

func (s *FriendsService) SendFriendRequest(ctx context.Context, target uuid.UUID) (*friendship.Friendship, error) {
	f, err := s.cache.SendRequest(ctx, target)
	if err != nil {
		log.Printf("SendFriendRequest: %v", err)
		return nil, err
	}
	log.Printf("SendFriendRequest: request %s sent to %s", f.ID, target)
	return f, nil
}

func (s *FriendsService) RespondToFriendRequest(ctx context.Context, requestID uuid.UUID, accept bool) (*friendship.Friendship, error) {
	f, err := s.cache.Respond(ctx, requestID, accept)
	if err != nil {
		log.Printf("RespondToFriendRequest: %v", err)
		return nil, err
	}
	log.Printf("RespondToFriendRequest: request %s -> %s", requestID, f.Status)
	return f, nil
}

func (s *FriendsService) CancelFriendRequest(ctx context.Context, requestID uuid.UUID) error {
	if err := s.cache.Cancel(ctx, requestID); err != nil {
		log.Printf("CancelFriendRequest: %v", err)
		return err
	}
	log.Printf("CancelFriendRequest: request %s cancelled", requestID)
	return nil
}

func (s *FriendsService) Unfriend(ctx context.Context, friendUserID uuid.UUID) error {
	if err := s.cache.Unfriend(ctx, friendUserID); err != nil {
		log.Printf("Unfriend: %v", err)
		return err
	}
	log.Printf("Unfriend: removed friendship with %s", friendUserID)
	return nil
}

// GetFriendsLeaderboard fetches the friend circle's score rows and ranks
// them locally so the ordering is deterministic regardless of how the
// backend happens to return them. The backend's own rank for the viewer is
// used only when the viewer falls outside the requested window.
func (s *FriendsService) GetFriendsLeaderboard(ctx context.Context, limit int) (*leaderboard.Leaderboard, error) {
	page, err := s.backend.GetFriendsLeaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}

	board := ranking.Top(page.Profiles, s.viewer, limit)
	if board.UserPosition == nil && page.CurrentUserRank > 0 {
		board.UserPosition = &leaderboard.LeaderboardEntry{
			Rank:          page.CurrentUserRank,
			UserID:        s.viewer,
			Username:      s.lookupUser(s.viewer).Username,
			IsCurrentUser: true,
		}
	}
	return board, nil
}

func (s *FriendsService) SearchUsers(ctx context.Context, query string) ([]*user.User, error) {
	users, err := s.backend.SearchUsers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	for _, u := range users {
		s.profiles.Add(u.ID, u)
	}
	return users, nil
}
