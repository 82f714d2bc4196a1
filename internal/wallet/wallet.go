// Package wallet sends withdrawal payouts on-chain.
//
// The ledger debits first, then the engine asks the wallet to move the funds.
// A failed send is reported back to the ledger so stranded credits are
// visible to operators instead of silently lost.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"wagerbot/internal/config"
)

// ErrNoWallet means the account id is not an EVM address, so there is
// nowhere to send the funds.
var ErrNoWallet = errors.New("account has no wallet address")

const transferGasLimit = 21000 // plain value transfer

// Wallet signs and submits payout transactions from the bot's hot wallet.
type Wallet struct {
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	client  *ethclient.Client
	dryRun  bool
	logger  *slog.Logger
}

// New creates a wallet from config. In dry-run mode no key or RPC endpoint
// is needed; transfers are logged instead of sent.
func New(cfg config.WalletConfig, logger *slog.Logger) (*Wallet, error) {
	w := &Wallet{
		dryRun: cfg.DryRun,
		logger: logger.With("component", "wallet"),
	}
	if cfg.DryRun {
		return w, nil
	}

	// Strip 0x prefix if present
	keyHex := cfg.PrivateKey
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	w.key = key
	w.from = crypto.PubkeyToAddress(key.PublicKey)
	w.chainID = big.NewInt(cfg.ChainID)
	w.client = client
	return w, nil
}

// Address returns the sending address, or "" in dry-run mode.
func (w *Wallet) Address() string {
	if w.key == nil {
		return ""
	}
	return w.from.Hex()
}

// Transfer sends amount (in the chain's native asset) to the account's
// address. The account must be a hex address; ledger account ids that are
// feed usernames have no wallet to pay.
func (w *Wallet) Transfer(ctx context.Context, account string, amount decimal.Decimal) error {
	if !common.IsHexAddress(account) {
		return fmt.Errorf("account %q: %w", account, ErrNoWallet)
	}
	wei := toWei(amount)
	if wei.Sign() <= 0 {
		return nil
	}

	if w.dryRun {
		w.logger.Info("dry-run transfer", "to", account, "amount", amount.String())
		return nil
	}

	to := common.HexToAddress(account)

	nonce, err := w.client.PendingNonceAt(ctx, w.from)
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, to, wei, transferGasLimit, gasPrice, nil)
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return fmt.Errorf("sign transfer: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send transfer: %w", err)
	}

	w.logger.Info("transfer sent",
		"to", to.Hex(),
		"amount", amount.String(),
		"tx", signed.Hash().Hex(),
	)
	return nil
}

// Close releases the RPC connection.
func (w *Wallet) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// toWei converts a decimal asset amount to integer wei, truncating anything
// below 18 decimal places.
func toWei(d decimal.Decimal) *big.Int {
	return d.Shift(18).Truncate(0).BigInt()
}
