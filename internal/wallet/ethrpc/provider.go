// ethrpc — провайдер кошелька поверх Ethereum JSON-RPC (go-ethereum rpc).
//
// Запросы (eth_requestAccounts, eth_chainId, eth_getBalance) уходят в узел
// или в мост браузерного кошелька; уведомления accountsChanged/chainChanged
// приходят от UI и раздаются подписчикам через Hub.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/pribylovaa/crypto-dashboard/internal/wallet"
)

// ErrInvalidAddress — строка не является hex-адресом.
var ErrInvalidAddress = errors.New("invalid address")

// methodNotFoundCode — JSON-RPC "method not found".
const methodNotFoundCode = -32601

// rpcCaller — подмножество *rpc.Client, нужное провайдеру.
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// Provider реализует wallet.Provider.
type Provider struct {
	*Hub

	rpc rpcCaller
}

// Dial подключается к JSON-RPC эндпойнту. client может быть nil.
func Dial(ctx context.Context, url string, client *http.Client) (*Provider, error) {
	const op = "ethrpc.provider.Dial"

	var opts []rpc.ClientOption
	if client != nil {
		opts = append(opts, rpc.WithHTTPClient(client))
	}

	c, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return New(c), nil
}

func New(c rpcCaller) *Provider {
	return &Provider{Hub: NewHub(), rpc: c}
}

// Close закрывает RPC-соединение.
func (p *Provider) Close() {
	p.rpc.Close()
}

// RequestAccounts вызывает eth_requestAccounts. Узлы без этого метода
// опрашиваются через eth_accounts. Адреса возвращаются в checksum-виде.
// Код 4001 превращается в wallet.ErrUserRejected.
func (p *Provider) RequestAccounts(ctx context.Context) ([]string, error) {
	const op = "ethrpc.provider.RequestAccounts"

	var raw []string
	err := p.rpc.CallContext(ctx, &raw, "eth_requestAccounts")
	if errorCode(err) == methodNotFoundCode {
		err = p.rpc.CallContext(ctx, &raw, "eth_accounts")
	}

	if err != nil {
		if wallet.IsUserRejection(err) {
			return nil, fmt.Errorf("%s: %w", op, wallet.ErrUserRejected)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accounts := make([]string, 0, len(raw))
	for _, a := range raw {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidAddress, a)
		}
		accounts = append(accounts, common.HexToAddress(a).Hex())
	}

	return accounts, nil
}

// ChainID вызывает eth_chainId и возвращает id в нормализованном hex.
func (p *Provider) ChainID(ctx context.Context) (string, error) {
	const op = "ethrpc.provider.ChainID"

	var id hexutil.Big
	if err := p.rpc.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hexutil.EncodeBig((*big.Int)(&id)), nil
}

// Balance вызывает eth_getBalance(address, "latest") и возвращает wei.
func (p *Provider) Balance(ctx context.Context, address string) (*big.Int, error) {
	const op = "ethrpc.provider.Balance"

	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidAddress, address)
	}

	var balance hexutil.Big
	if err := p.rpc.CallContext(ctx, &balance, "eth_getBalance", common.HexToAddress(address), "latest"); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return (*big.Int)(&balance), nil
}

func errorCode(err error) int {
	var re rpc.Error
	if errors.As(err, &re) {
		return re.ErrorCode()
	}

	return 0
}
