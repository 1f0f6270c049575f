package rpc

import (
	"net/http"

	"bloomsocial/core/types"
	"bloomsocial/native/token"
)

type tokenBalanceParams struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

type tokenAllowanceParams struct {
	Owner   string `json:"owner" validate:"required,eth_addr"`
	Spender string `json:"spender" validate:"required,eth_addr"`
}

type tokenApproveParams struct {
	Caller  string `json:"caller" validate:"required,eth_addr"`
	Spender string `json:"spender" validate:"required,eth_addr"`
	Amount  string `json:"amount" validate:"required,number"`
}

type tokenTransferParams struct {
	Caller string `json:"caller" validate:"required,eth_addr"`
	To     string `json:"to" validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required,number"`
}

type tokenFaucetParams struct {
	Caller string `json:"caller" validate:"required,eth_addr"`
}

type tokenInfoResult struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
	Custody     string `json:"custody"`
}

func (s *Server) handleTokenInfo(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	supply, err := s.ledger.TotalSupply()
	if err != nil {
		return nil, ledgerError("failed to load supply", err)
	}
	return tokenInfoResult{
		Name:        token.Name,
		Symbol:      token.Symbol,
		Decimals:    token.Decimals,
		TotalSupply: bigString(supply),
		Custody:     s.ledger.Custody().Hex(),
	}, nil
}

func (s *Server) handleTokenBalanceOf(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params tokenBalanceParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.ledger.BalanceOf(addr)
	if err != nil {
		return nil, ledgerError("failed to load balance", err)
	}
	return map[string]string{"address": addr.Hex(), "balance": bigString(balance)}, nil
}

func (s *Server) handleTokenAllowance(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params tokenAllowanceParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddress("owner", params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := parseAddress("spender", params.Spender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	allowance, err := s.ledger.Allowance(owner, spender)
	if err != nil {
		return nil, ledgerError("failed to load allowance", err)
	}
	return map[string]string{"owner": owner.Hex(), "spender": spender.Hex(), "allowance": bigString(allowance)}, nil
}

func (s *Server) handleTokenApprove(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params tokenApproveParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := parseAddress("spender", params.Spender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, rpcErr := s.apply(r, &types.Command{
		Type:   types.CommandTokenApprove,
		Caller: caller,
		Target: spender,
		Amount: amount,
	}, "failed to approve")
	if rpcErr != nil {
		return nil, rpcErr
	}
	return formatCommandResult(result), nil
}

func (s *Server) handleTokenTransfer(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params tokenTransferParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddress("to", params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, rpcErr := s.apply(r, &types.Command{
		Type:   types.CommandTokenTransfer,
		Caller: caller,
		Target: to,
		Amount: amount,
	}, "failed to transfer")
	if rpcErr != nil {
		return nil, rpcErr
	}
	return formatCommandResult(result), nil
}

func (s *Server) handleTokenFaucet(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params tokenFaucetParams
	if rpcErr := s.decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, rpcErr := s.apply(r, &types.Command{Type: types.CommandTokenFaucet, Caller: caller}, "faucet request failed")
	if rpcErr != nil {
		return nil, rpcErr
	}
	return formatCommandResult(result), nil
}
