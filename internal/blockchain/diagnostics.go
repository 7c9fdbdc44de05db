package blockchain

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DiagnosticResult holds the result of a chain connectivity diagnostic
type DiagnosticResult struct {
	RPCConnected    bool   `json:"rpc_connected"`
	RPCError        string `json:"rpc_error,omitempty"`
	ChainID         string `json:"chain_id,omitempty"`
	ChainIDMatches  bool   `json:"chain_id_matches"`
	LatestBlock     uint64 `json:"latest_block,omitempty"`
	TokenAddress    string `json:"token_address"`
	TokenDeployed   bool   `json:"token_deployed"`
	SpenderKeySet   bool   `json:"spender_key_set"`
	SpenderAddress  string `json:"spender_address,omitempty"`
	SpenderBalance  string `json:"spender_usdc_balance,omitempty"`
	DiagnosticError string `json:"error,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// Healthy reports whether charges can currently be executed
func (r *DiagnosticResult) Healthy() bool {
	return r.RPCConnected && r.ChainIDMatches && r.TokenDeployed && r.SpenderKeySet
}

// RunDiagnostics checks RPC connectivity, the configured chain, the token
// contract and the spender key.
func (c *USDCClient) RunDiagnostics(ctx context.Context) *DiagnosticResult {
	result := &DiagnosticResult{
		Timestamp:    time.Now().Format(time.RFC3339),
		TokenAddress: c.token.Hex(),
	}

	chainID, err := c.rpcClient.ChainID(ctx)
	if err != nil {
		result.RPCError = err.Error()
		log.Warn().Err(err).Msg("Chain diagnostics: RPC unreachable")
		return result
	}
	result.RPCConnected = true
	result.ChainID = chainID.String()
	result.ChainIDMatches = chainID.Cmp(c.chainID) == 0
	if !result.ChainIDMatches {
		result.DiagnosticError = fmt.Sprintf("RPC chain id %s does not match configured %s", chainID, c.chainID)
	}

	if block, err := c.rpcClient.BlockNumber(ctx); err == nil {
		result.LatestBlock = block
	}

	code, err := c.rpcClient.CodeAt(ctx, c.token, nil)
	if err != nil {
		result.DiagnosticError = fmt.Sprintf("token code lookup failed: %v", err)
	} else {
		result.TokenDeployed = len(code) > 0
	}

	if c.privateKey != nil {
		result.SpenderKeySet = true
		result.SpenderAddress = c.spender.Hex()
		if balance, err := c.BalanceOf(ctx, c.spender.Hex()); err == nil {
			result.SpenderBalance = FromBaseUnits(balance).String()
		}
	}

	log.Debug().
		Bool("rpc_connected", result.RPCConnected).
		Bool("chain_id_matches", result.ChainIDMatches).
		Bool("token_deployed", result.TokenDeployed).
		Bool("spender_key_set", result.SpenderKeySet).
		Msg("Chain diagnostics completed")

	return result
}
