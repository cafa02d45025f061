package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/params"

	"github.com/pribylovaa/crypto-dashboard/internal/models"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/redact"
)

var weiPerEther = new(big.Float).SetInt(big.NewInt(params.Ether))

// WeiToEther переводит wei в ether.
func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}

	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return f
}

// FetchBalance запрашивает баланс address и применяет его, если address
// всё ещё текущий аккаунт той же эпохи.
//
// Ошибка провайдера: баланс и стоимость обнуляются, аккаунт сохраняется,
// возвращается ErrBalanceQuery. Устаревший ответ — ErrStaleBalance,
// состояние не меняется.
func (c *Connector) FetchBalance(ctx context.Context, address string) (float64, error) {
	const op = "wallet.balance.FetchBalance"

	lg := log.From(ctx)

	if c.provider == nil {
		return 0, fmt.Errorf("%s: %w", op, ErrProviderUnavailable)
	}

	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	wei, err := c.provider.Balance(ctx, address)

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.epoch == epoch && c.account == address && c.status == StatusConnected

	if err != nil {
		lg.Warn("wallet_balance_failed",
			slog.String("op", op),
			slog.String("account", redact.Address(address)),
			slog.String("err", err.Error()),
		)

		if current {
			c.balance = 0
			c.balanceKnown = false
			c.usdValue = 0
		}

		return 0, fmt.Errorf("%s: %w: %v", op, ErrBalanceQuery, err)
	}

	balance := WeiToEther(wei)

	if !current {
		lg.Debug("wallet_balance_stale",
			slog.String("op", op),
			slog.String("account", redact.Address(address)),
		)
		return balance, fmt.Errorf("%s: %w", op, ErrStaleBalance)
	}

	c.balance = balance
	c.balanceKnown = true
	c.recomputeLocked()

	return balance, nil
}

// FetchPrice запрашивает цену единицы. При ошибке прежняя цена сохраняется.
func (c *Connector) FetchPrice(ctx context.Context) (float64, error) {
	const op = "wallet.balance.FetchPrice"

	if c.prices == nil {
		return 0, fmt.Errorf("%s: %w", op, ErrPriceUnavailable)
	}

	price, err := c.prices.UnitPrice(ctx, c.symbol)
	if err != nil {
		log.From(ctx).Warn("wallet_price_failed",
			slog.String("op", op),
			slog.String("symbol", c.symbol),
			slog.String("err", err.Error()),
		)
		return 0, fmt.Errorf("%s: %w: %v", op, ErrPriceUnavailable, err)
	}

	c.SetPrice(price)

	return price, nil
}

// SetPrice фиксирует цену и пересчитывает стоимость.
func (c *Connector) SetPrice(price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := price
	c.price = &p
	c.recomputeLocked()
}

// SetBalance фиксирует баланс текущего аккаунта и пересчитывает стоимость.
// Без подключённого аккаунта вызов игнорируется.
func (c *Connector) SetBalance(balance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusConnected {
		return
	}

	c.balance = balance
	c.balanceKnown = true
	c.recomputeLocked()
}

// recomputeLocked поддерживает USDValue = Balance * EthPrice. Вызывается под mu.
func (c *Connector) recomputeLocked() {
	if c.price == nil || !c.balanceKnown {
		c.usdValue = 0
		return
	}

	c.usdValue = c.balance * *c.price
}

// Sync загружает цену и баланс текущего аккаунта и возвращает итоговое состояние.
// Ошибки не возвращаются: они уже отражены в состоянии и в логах.
func (c *Connector) Sync(ctx context.Context) models.WalletState {
	_, _ = c.FetchPrice(ctx)

	c.mu.RLock()
	account := c.account
	connected := c.status == StatusConnected
	c.mu.RUnlock()

	if connected && account != "" {
		_, _ = c.FetchBalance(ctx, account)
	}

	return c.State()
}

// syncAsync запускает Sync в фоне на базовом контексте коннектора.
func (c *Connector) syncAsync(ctx context.Context) {
	bg := log.Into(c.base, log.From(ctx))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Sync(bg)
	}()
}

// State возвращает снимок состояния.
func (c *Connector) State() models.WalletState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var price *float64
	if c.price != nil {
		p := *c.price
		price = &p
	}

	return models.WalletState{
		Status:          string(c.status),
		Account:         c.account,
		IsConnected:     c.status == StatusConnected,
		EthPrice:        price,
		Balance:         c.balance,
		USDValue:        c.usdValue,
		ChainID:         c.chainID,
		OnExpectedChain: sameChain(c.chainID, c.expected),
	}
}
