package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// erc20ABI covers the subset of ERC-20 used for cast payments
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// receiptTimeout bounds how long a charge waits to be mined
const receiptTimeout = 2 * time.Minute

var (
	// ErrInvalidAddress is returned for malformed EVM addresses
	ErrInvalidAddress = errors.New("invalid EVM address")
	// ErrTransferReverted is returned when a transferFrom is mined but reverted
	ErrTransferReverted = errors.New("transferFrom reverted")
	// ErrSpenderMismatch is returned when a configured spender is not the
	// account of the signing key
	ErrSpenderMismatch = errors.New("spender address does not match signing key")
)

// USDCClient reads allowances and balances of the USDC contract and executes
// transferFrom as the approved spender.
type USDCClient struct {
	rpcClient  *ethclient.Client
	contract   *bind.BoundContract
	token      common.Address
	spender    common.Address
	privateKey *ecdsa.PrivateKey
	chainID    *big.Int
}

// NewUSDCClient dials the RPC endpoint and binds the token contract. The
// spender key may be empty, in which case only reads are available.
func NewUSDCClient(ctx context.Context, rpcURL string, chainID int64, tokenAddress, spenderPrivateKey string) (*USDCClient, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("%w: token %q", ErrInvalidAddress, tokenAddress)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	rpcClient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}

	token := common.HexToAddress(tokenAddress)
	client := &USDCClient{
		rpcClient: rpcClient,
		contract:  bind.NewBoundContract(token, parsed, rpcClient, rpcClient, rpcClient),
		token:     token,
		chainID:   big.NewInt(chainID),
	}

	if spenderPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(spenderPrivateKey, "0x"))
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("invalid spender private key: %w", err)
		}
		client.privateKey = key
		client.spender = crypto.PubkeyToAddress(key.PublicKey)
		log.Info().Str("spender", client.spender.Hex()).Msg("USDC spender key loaded")
	}

	return client, nil
}

// SpenderAddress returns the address charges are executed from, if configured
func (c *USDCClient) SpenderAddress() string {
	if c.privateKey == nil {
		return ""
	}
	return c.spender.Hex()
}

// ResolveSpender returns the address allowances must be granted to. A
// configured address is accepted only when it is the signing key's account,
// since transferFrom is always sent from that account.
func ResolveSpender(configured, signer string) (string, error) {
	if signer == "" {
		return "", fmt.Errorf("%w: no signing key loaded", ErrSpenderMismatch)
	}
	signerAddr, err := parseAddress(signer)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(configured) == "" {
		return signerAddr.Hex(), nil
	}

	configuredAddr, err := parseAddress(strings.TrimSpace(configured))
	if err != nil {
		return "", err
	}
	if configuredAddr != signerAddr {
		return "", fmt.Errorf("%w: configured %s, key %s", ErrSpenderMismatch, configuredAddr.Hex(), signerAddr.Hex())
	}
	return signerAddr.Hex(), nil
}

// Allowance returns how much spender may pull from owner, in base units
func (c *USDCClient) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	ownerAddr, err := parseAddress(owner)
	if err != nil {
		return nil, err
	}
	spenderAddr, err := parseAddress(spender)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", ownerAddr, spenderAddr); err != nil {
		return nil, fmt.Errorf("allowance call failed: %w", err)
	}
	return firstBigInt(out)
}

// BalanceOf returns the token balance of account, in base units
func (c *USDCClient) BalanceOf(ctx context.Context, account string) (*big.Int, error) {
	addr, err := parseAddress(account)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", addr); err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	return firstBigInt(out)
}

// TransferFrom moves amount base units from one address to another using the
// spender's allowance, waits for the receipt and returns the transaction hash.
func (c *USDCClient) TransferFrom(ctx context.Context, from, to string, amount *big.Int) (string, error) {
	if c.privateKey == nil {
		return "", errors.New("spender private key not configured")
	}
	fromAddr, err := parseAddress(from)
	if err != nil {
		return "", err
	}
	toAddr, err := parseAddress(to)
	if err != nil {
		return "", err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.privateKey, c.chainID)
	if err != nil {
		return "", fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, "transferFrom", fromAddr, toAddr, amount)
	if err != nil {
		return "", fmt.Errorf("transferFrom submission failed: %w", err)
	}

	log.Info().
		Str("tx_hash", tx.Hash().Hex()).
		Str("from", fromAddr.Hex()).
		Str("amount", amount.String()).
		Msg("transferFrom submitted")

	waitCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.rpcClient, tx)
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("failed waiting for transferFrom receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash().Hex(), fmt.Errorf("%w: %s", ErrTransferReverted, tx.Hash().Hex())
	}

	return tx.Hash().Hex(), nil
}

// Close releases the RPC connection
func (c *USDCClient) Close() {
	c.rpcClient.Close()
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, value)
	}
	return common.HexToAddress(value), nil
}

func firstBigInt(out []interface{}) (*big.Int, error) {
	if len(out) == 0 {
		return nil, errors.New("empty contract call result")
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", out[0])
	}
	return value, nil
}
