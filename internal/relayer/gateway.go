// Package relayer is the Relayer Gateway: the relay's only signing key and
// its only path to the chain. It builds, signs, and submits the escrow
// contract's state-changing calls, and answers the read-only queries the
// rest of the relay needs (order/trade existence, on-chain commitment
// hashes, contract tunables).
package relayer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// lowGasPriceWei is a fixed legacy gas price tuned for Base L2, where the
// base fee sits far below what mainnet gas estimation APIs assume. 0.03 gwei.
const lowGasPriceWei = 30_000_000

// gasEstimateBufferPct is applied to every simulated gas estimate before a
// transaction is built, so a slightly pessimistic estimate never causes an
// out-of-gas revert.
const gasEstimateBufferPct = 120

// Gateway wraps one signing key against one escrow contract deployment.
type Gateway struct {
	client      *ethclient.Client
	chainID     *big.Int
	escrowAddr  common.Address
	escrowABI   abi.ABI
	verifierABI abi.ABI
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address
}

// New dials rpcURL and prepares a Gateway signing with privateKeyHex (no 0x
// prefix required) against the escrow contract at escrowAddr.
func New(rpcURL string, chainID int64, escrowAddr common.Address, privateKeyHex string) (*Gateway, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	escrowContractABI, err := parseEscrowABI()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	verifierContractABI, err := parseVerifierABI()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse verifier abi: %w", err)
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse relayer private key: %w", err)
	}
	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		client.Close()
		return nil, fmt.Errorf("derive public key: unexpected key type")
	}
	return &Gateway{
		client:      client,
		chainID:     big.NewInt(chainID),
		escrowAddr:  escrowAddr,
		escrowABI:   escrowContractABI,
		verifierABI: verifierContractABI,
		privateKey:  privateKey,
		fromAddress: crypto.PubkeyToAddress(*pub),
	}, nil
}

// Close releases the underlying RPC connection.
func (g *Gateway) Close() { g.client.Close() }

// Address returns the relayer's own on-chain address.
func (g *Gateway) Address() common.Address { return g.fromAddress }

// TxResult is what a submitted transaction resolves to once mined.
type TxResult struct {
	TxHash  common.Hash
	GasUsed uint64
	GasCost *big.Int
	// RevertData is the raw return data of a transaction that was mined but
	// reverted (receipt status 0). Non-nil only when Reverted is true.
	Reverted   bool
	RevertData []byte
}

// send builds, signs, and submits a legacy transaction calling method on
// the escrow contract, then waits for its receipt. It distinguishes a
// transaction-level failure (mined with status 0) from a send-time error
// (nonce/RPC/signing failure) — callers use TxResult.Reverted to detect the
// former and decode it with revertError.
func (g *Gateway) send(ctx context.Context, method string, params ...interface{}) (*TxResult, error) {
	callData, err := g.escrowABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("pack %s call: %w", method, err)
	}

	nonce, err := g.client.PendingNonceAt(ctx, g.fromAddress)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{
		From: g.fromAddress,
		To:   &g.escrowAddr,
		Data: callData,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas for %s: %w", method, err)
	}
	gasLimit = gasLimit * gasEstimateBufferPct / 100

	gasPrice := big.NewInt(lowGasPriceWei)
	tx := types.NewTransaction(nonce, g.escrowAddr, big.NewInt(0), gasLimit, gasPrice, callData)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(g.chainID), g.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign %s transaction: %w", method, err)
	}
	if err := g.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send %s transaction: %w", method, err)
	}

	receipt, err := waitMined(ctx, g.client, signedTx.Hash())
	if err != nil {
		return nil, fmt.Errorf("wait for %s transaction: %w", method, err)
	}

	result := &TxResult{
		TxHash:  signedTx.Hash(),
		GasUsed: receipt.GasUsed,
		GasCost: new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(receipt.GasUsed)),
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		result.Reverted = true
		result.RevertData = fetchRevertReason(ctx, g.client, signedTx, receipt.BlockNumber)
	}
	return result, nil
}

// waitMined polls for a transaction's receipt, matching bind.WaitMined's
// contract without pulling in the full bind package for one call site.
func waitMined(ctx context.Context, client *ethclient.Client, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// fetchRevertReason replays the transaction as an eth_call at the block it
// was mined in to recover the revert data a receipt alone doesn't carry.
// A failure here just means revertError gets nothing to decode; it never
// masks the original Reverted=true result.
func fetchRevertReason(ctx context.Context, client *ethclient.Client, tx *types.Transaction, blockNumber *big.Int) []byte {
	from, err := types.Sender(types.NewEIP155Signer(tx.ChainId()), tx)
	if err != nil {
		return nil
	}
	to := tx.To()
	data, callErr := client.CallContract(ctx, ethereum.CallMsg{
		From: from,
		To:   to,
		Data: tx.Data(),
	}, blockNumber)
	if callErr == nil {
		return nil
	}
	if de, ok := callErr.(interface{ ErrorData() interface{} }); ok {
		if raw, ok := de.ErrorData().(string); ok {
			return common.FromHex(raw)
		}
	}
	return data
}

// CreateTrade locks buyer into a fiat-denominated fill of order orderID.
// fiatAmount must be a whole multiple of 100 (fen-denominated CNY cents
// collapsed to whole yuan) — the contract enforces this too, but failing
// fast here avoids burning gas on a call that will only revert.
func (g *Gateway) CreateTrade(ctx context.Context, orderID [32]byte, buyer common.Address, fiatAmount *big.Int) (common.Hash, [32]byte, error) {
	if new(big.Int).Mod(fiatAmount, big.NewInt(100)).Sign() != 0 {
		return common.Hash{}, [32]byte{}, fmt.Errorf("fiat amount %s is not a whole-yuan multiple of 100", fiatAmount)
	}
	result, err := g.send(ctx, "fillOrder", orderID, buyer, fiatAmount)
	if err != nil {
		return common.Hash{}, [32]byte{}, err
	}
	if result.Reverted {
		return common.Hash{}, [32]byte{}, g.revertError("fillOrder", result)
	}

	receipt, err := g.client.TransactionReceipt(ctx, result.TxHash)
	if err != nil {
		return result.TxHash, [32]byte{}, fmt.Errorf("refetch receipt for trade id: %w", err)
	}
	if len(receipt.Logs) == 0 || len(receipt.Logs[0].Topics) < 2 {
		return result.TxHash, [32]byte{}, fmt.Errorf("fillOrder receipt carries no TradeCreated log to read the trade id from")
	}
	return result.TxHash, receipt.Logs[0].Topics[1], nil
}

// SubmitProof delivers a generated proof for tradeID along with the
// payment-time/tx-id-hash commitments the contract re-derives its own
// expected hash from.
func (g *Gateway) SubmitProof(ctx context.Context, tradeID, txIDHash [32]byte, paymentTime string, userPublicValues [32]byte, accumulator, proof []byte) (*TxResult, error) {
	result, err := g.send(ctx, "submitProof", tradeID, txIDHash, paymentTime, userPublicValues, accumulator, proof)
	if err != nil {
		return nil, err
	}
	if result.Reverted {
		return result, g.revertError("submitProof", result)
	}
	return result, nil
}

// CancelExpired settles a trade whose payment window lapsed back to the
// seller's remaining liquidity. Called from the independent auto-cancel
// loop, never from the settlement coordinator.
func (g *Gateway) CancelExpired(ctx context.Context, tradeID [32]byte) (*TxResult, error) {
	result, err := g.send(ctx, "cancelExpiredTrade", tradeID)
	if err != nil {
		return nil, err
	}
	if result.Reverted {
		return result, g.revertError("cancelExpiredTrade", result)
	}
	return result, nil
}

// UpdateKeyFingerprint rotates the registered Alipay signer public-key hash.
// Called opportunistically by the settlement coordinator right after a
// validate step observes the receipt was signed with a key the contract
// doesn't yet recognize; failure here is logged, never fatal to settlement.
func (g *Gateway) UpdateKeyFingerprint(ctx context.Context, newFingerprint [32]byte) (*TxResult, error) {
	result, err := g.send(ctx, "updatePublicKeyHash", newFingerprint)
	if err != nil {
		return nil, err
	}
	if result.Reverted {
		return result, g.revertError("updatePublicKeyHash", result)
	}
	return result, nil
}
