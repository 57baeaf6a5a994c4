package rpc

import (
	"context"
	"errors"
	"math/big"
	"time"

	"walletunity/pkg/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var RPCTimeout = 10 * time.Second

// FetchReceipt returns the receipt of txHash, trying each RPC in turn until
// one answers. A nil receipt with a nil error means the transaction is not
// mined yet.
func FetchReceipt(ctx context.Context, rpcURLs []string, txHash string) (*types.Receipt, []string, error) {
	var failed []string
	lastErr := errors.New("no rpc urls configured")
	hash := common.HexToHash(txHash)

	for _, rpcURL := range rpcURLs {
		callCtx, cancel := context.WithTimeout(ctx, RPCTimeout)
		client, err := ethclient.DialContext(callCtx, rpcURL)
		if err != nil {
			cancel()
			failed = append(failed, rpcURL)
			lastErr = err
			continue
		}

		receipt, err := client.TransactionReceipt(callCtx, hash)
		client.Close()
		cancel()

		if errors.Is(err, ethereum.NotFound) {
			return nil, failed, nil
		}
		if err != nil {
			failed = append(failed, rpcURL)
			lastErr = err
			continue
		}
		return receipt, failed, nil
	}
	return nil, failed, lastErr
}

// FetchChainID asks rpcURL for its chain ID.
func FetchChainID(ctx context.Context, rpcURL string) (*big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	client, err := ethclient.DialContext(callCtx, rpcURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.ChainID(callCtx)
}

// FetchRPCLatency pings an RPC URL to measure latency.
func FetchRPCLatency(rpcURL string) (models.RPCLatencyData, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	defer client.Close()

	_, err = client.HeaderByNumber(ctx, nil)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	return models.RPCLatencyData{RPCURL: rpcURL, Latency: time.Since(start)}, nil
}
