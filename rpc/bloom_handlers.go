package rpc

import (
	"encoding/hex"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core"
	"bloomsocial/core/types"
	"bloomsocial/native/bloom"
)

type bloomCreateContentParams struct {
	Caller          string `json:"caller" validate:"required,eth_addr"`
	LikeAmount      string `json:"likeAmount" validate:"required,numeric"`
	DurationSeconds uint64 `json:"durationSeconds"`
	ContentURI      string `json:"contentUri" validate:"max=2048"`
	ContentHash     string `json:"contentHash,omitempty" validate:"omitempty,max=66"`
}

type bloomContentActionParams struct {
	Caller    string  `json:"caller" validate:"required,eth_addr"`
	ContentID *uint64 `json:"contentId" validate:"required"`
}

type bloomFollowParams struct {
	Caller string `json:"caller" validate:"required,eth_addr"`
	Target string `json:"target" validate:"required,eth_addr"`
}

type bloomContentParams struct {
	ContentID *uint64 `json:"contentId" validate:"required"`
}

type bloomLikerParams struct {
	ContentID *uint64 `json:"contentId" validate:"required"`
	Liker     string  `json:"liker" validate:"required,eth_addr"`
}

type bloomFollowQueryParams struct {
	Follower string `json:"follower" validate:"required,eth_addr"`
	Followee string `json:"followee" validate:"required,eth_addr"`
}

type bloomUserParams struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

type commandResult struct {
	Command   string              `json:"command"`
	ContentID *uint64             `json:"contentId,omitempty"`
	Amount    string              `json:"amount,omitempty"`
	Events    []eventRecordResult `json:"events"`
}

type bloomContentResult struct {
	ID              uint64 `json:"id"`
	Author          string `json:"author"`
	LikeAmount      string `json:"likeAmount"`
	CreatedAt       int64  `json:"createdAt"`
	Deadline        int64  `json:"deadline"`
	ContentURI      string `json:"contentUri"`
	ContentHash     string `json:"contentHash"`
	AuthorPool      string `json:"authorPool"`
	LikerRewardPool string `json:"likerRewardPool"`
	TotalWeight     string `json:"totalWeight"`
	LikeCount       uint64 `json:"likeCount"`
	AuthorClaimed   bool   `json:"authorClaimed"`
	ProtocolFees    string `json:"protocolFees"`
	LikerRewardPaid string `json:"likerRewardPaid"`
	Expired         bool   `json:"expired"`
}

type bloomLikeInfoResult struct {
	ContentID uint64 `json:"contentId"`
	Liker     string `json:"liker"`
	LikeIndex uint64 `json:"likeIndex"`
	Weight    string `json:"weight"`
	Claimed   bool   `json:"claimed"`
}

type bloomFollowResult struct {
	Follower   string `json:"follower"`
	Followee   string `json:"followee"`
	Following  bool   `json:"following"`
	FollowedAt int64  `json:"followedAt,omitempty"`
}

type bloomUserResult struct {
	Address         string `json:"address"`
	TotalEarned     string `json:"totalEarned"`
	TotalLiked      uint64 `json:"totalLiked"`
	FollowersCount  uint64 `json:"followersCount"`
	FollowingCount  uint64 `json:"followingCount"`
	ContentsCreated uint64 `json:"contentsCreated"`
}

func formatContent(content *bloom.Content, now int64) bloomContentResult {
	return bloomContentResult{
		ID:              content.ID,
		Author:          content.Author.Hex(),
		LikeAmount:      bigString(content.LikeAmount),
		CreatedAt:       content.CreatedAt,
		Deadline:        content.Deadline,
		ContentURI:      content.ContentURI,
		ContentHash:     "0x" + hex.EncodeToString(content.ContentHash[:]),
		AuthorPool:      bigString(content.AuthorPool),
		LikerRewardPool: bigString(content.LikerRewardPool),
		TotalWeight:     bigString(content.TotalWeight),
		LikeCount:       content.LikeCount,
		AuthorClaimed:   content.AuthorClaimed,
		ProtocolFees:    bigString(content.ProtocolFees),
		LikerRewardPaid: bigString(content.LikerRewardPaid),
		Expired:         content.Expired(now),
	}
}

func formatUser(user *bloom.UserStats) bloomUserResult {
	return bloomUserResult{
		Address:         user.Address.Hex(),
		TotalEarned:     bigString(user.TotalEarned),
		TotalLiked:      user.TotalLiked,
		FollowersCount:  user.FollowersCount,
		FollowingCount:  user.FollowingCount,
		ContentsCreated: user.ContentsCreated,
	}
}

func formatCommandResult(result *core.Result) commandResult {
	out := commandResult{
		Command: result.Command.String(),
		Events:  formatRecords(result.Records),
	}
	if result.Amount != nil {
		out.Amount = result.Amount.String()
	}
	return out
}

// apply submits a command on behalf of the authenticated caller.
func (s *Server) apply(r *http.Request, cmd *types.Command, failure string) (*core.Result, *RPCError) {
	if authErr := s.authorize(r, cmd.Caller.Hex()); authErr != nil {
		return nil, authErr
	}
	result, err := s.ledger.Apply(r.Context(), cmd)
	if err != nil {
		return nil, ledgerError(failure, err)
	}
	return result, nil
}

func (s *Server) handleBloomCreateContent(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params bloomCreateContentParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseSignedAmount("likeAmount", params.LikeAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := parseHash(params.ContentHash)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, rpcErr := s.apply(r, &types.Command{
		Type:        types.CommandCreateContent,
		Caller:      caller,
		Amount:      amount,
		Duration:    params.DurationSeconds,
		ContentURI:  params.ContentURI,
		ContentHash: hash,
	}, "failed to create content")
	if rpcErr != nil {
		return nil, rpcErr
	}
	out := formatCommandResult(result)
	id := result.ContentID
	out.ContentID = &id
	return out, nil
}

func (s *Server) contentAction(r *http.Request, req *RPCRequest, kind types.CommandType, failure string) (interface{}, *RPCError) {
	var params bloomContentActionParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, rpcErr := s.apply(r, &types.Command{
		Type:      kind,
		Caller:    caller,
		ContentID: *params.ContentID,
	}, failure)
	if rpcErr != nil {
		return nil, rpcErr
	}
	out := formatCommandResult(result)
	id := result.ContentID
	out.ContentID = &id
	return out, nil
}

func (s *Server) handleBloomLike(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.contentAction(r, req, types.CommandLike, "failed to like content")
}

func (s *Server) handleBloomClaimAuthorReward(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.contentAction(r, req, types.CommandClaimAuthorReward, "failed to claim author reward")
}

func (s *Server) handleBloomClaimLikerReward(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.contentAction(r, req, types.CommandClaimLikerReward, "failed to claim liker reward")
}

func (s *Server) followAction(r *http.Request, req *RPCRequest, kind types.CommandType, failure string) (interface{}, *RPCError) {
	var params bloomFollowParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	target, rpcErr := parseAddress("target", params.Target)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, rpcErr := s.apply(r, &types.Command{Type: kind, Caller: caller, Target: target}, failure)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return formatCommandResult(result), nil
}

func (s *Server) handleBloomFollow(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.followAction(r, req, types.CommandFollow, "failed to follow")
}

func (s *Server) handleBloomUnfollow(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.followAction(r, req, types.CommandUnfollow, "failed to unfollow")
}

func (s *Server) handleBloomGetContent(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params bloomContentParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	content, err := s.ledger.GetContent(*params.ContentID)
	if err != nil {
		return nil, ledgerError("failed to load content", err)
	}
	return formatContent(content, s.ledger.Now()), nil
}

func (s *Server) handleBloomContentCount(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	count, err := s.ledger.ContentCount()
	if err != nil {
		return nil, ledgerError("failed to count content", err)
	}
	return map[string]uint64{"count": count}, nil
}

func (s *Server) handleBloomGetLikeInfo(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params bloomLikerParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	liker, rpcErr := parseAddress("liker", params.Liker)
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := s.ledger.GetLikeInfo(*params.ContentID, liker)
	if err != nil {
		return nil, ledgerError("failed to load like", err)
	}
	return bloomLikeInfoResult{
		ContentID: *params.ContentID,
		Liker:     liker.Hex(),
		LikeIndex: info.LikeIndex,
		Weight:    bigString(info.Weight),
		Claimed:   info.Claimed,
	}, nil
}

func (s *Server) handleBloomGetEstimatedReward(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params bloomLikerParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	liker, rpcErr := parseAddress("liker", params.Liker)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.ledger.GetEstimatedReward(*params.ContentID, liker)
	if err != nil {
		return nil, ledgerError("failed to estimate reward", err)
	}
	return map[string]string{"amount": bigString(amount)}, nil
}

func (s *Server) handleBloomIsFollowing(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params bloomFollowQueryParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	follower, rpcErr := parseAddress("follower", params.Follower)
	if rpcErr != nil {
		return nil, rpcErr
	}
	followee, rpcErr := parseAddress("followee", params.Followee)
	if rpcErr != nil {
		return nil, rpcErr
	}
	follow, ok, err := s.ledger.GetFollow(follower, followee)
	if err != nil {
		return nil, ledgerError("failed to load follow", err)
	}
	result := bloomFollowResult{Follower: follower.Hex(), Followee: followee.Hex(), Following: ok}
	if ok && follow != nil {
		result.FollowedAt = follow.FollowedAt
	}
	return result, nil
}

func (s *Server) handleBloomGetUser(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params bloomUserParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	user, err := s.ledger.GetUser(addr)
	if err != nil {
		return nil, ledgerError("failed to load user", err)
	}
	if user == nil {
		user = &bloom.UserStats{Address: addr}
	}
	if user.Address == (common.Address{}) {
		user.Address = addr
	}
	return formatUser(user), nil
}
