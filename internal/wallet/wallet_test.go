package wallet

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"wagerbot/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewParsesKeyWithAndWithoutPrefix(t *testing.T) {
	t.Parallel()
	const key = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	plain, err := New(config.WalletConfig{
		RPCURL:     "http://127.0.0.1:8545",
		PrivateKey: key,
		ChainID:    1,
	}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prefixed, err := New(config.WalletConfig{
		RPCURL:     "http://127.0.0.1:8545",
		PrivateKey: "0x" + key,
		ChainID:    1,
	}, testLogger())
	if err != nil {
		t.Fatalf("New with 0x prefix: %v", err)
	}

	if plain.Address() == "" || plain.Address() != prefixed.Address() {
		t.Errorf("addresses differ: %q vs %q", plain.Address(), prefixed.Address())
	}
	if !common.IsHexAddress(plain.Address()) {
		t.Errorf("address %q is not a hex address", plain.Address())
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	t.Parallel()
	_, err := New(config.WalletConfig{
		RPCURL:     "http://127.0.0.1:8545",
		PrivateKey: "not-a-key",
		ChainID:    1,
	}, testLogger())
	if err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestTransferRejectsNonAddressAccount(t *testing.T) {
	t.Parallel()
	w, err := New(config.WalletConfig{DryRun: true}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = w.Transfer(context.Background(), "alice", decimal.RequireFromString("0.1"))
	if !errors.Is(err, ErrNoWallet) {
		t.Errorf("err = %v, want ErrNoWallet", err)
	}
}

func TestDryRunTransferTouchesNoNetwork(t *testing.T) {
	t.Parallel()
	w, err := New(config.WalletConfig{DryRun: true}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	to := "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	if err := w.Transfer(context.Background(), to, decimal.RequireFromString("0.149")); err != nil {
		t.Errorf("dry-run transfer: %v", err)
	}
}

func TestToWei(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.149", "149000000000000000"},
		{"0.000000000000000001", "1"},
		// below one wei truncates to zero
		{"0.0000000000000000009", "0"},
		{"0", "0"},
	}
	for _, tt := range tests {
		got := toWei(decimal.RequireFromString(tt.in))
		want, _ := new(big.Int).SetString(tt.want, 10)
		if got.Cmp(want) != 0 {
			t.Errorf("toWei(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
