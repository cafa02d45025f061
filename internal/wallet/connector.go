package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/crypto-dashboard/internal/pkg/log"
	"github.com/pribylovaa/crypto-dashboard/internal/pkg/redact"
)

// Connect запрашивает доступ к аккаунтам и подключает первый из них.
//
// Ошибки:
//   - ErrProviderUnavailable — провайдера нет или он не отвечает;
//   - ErrUserRejected — отказ пользователя (код 4001) или пустой список аккаунтов.
//
// При ошибке состояние остаётся Disconnected. При успехе синхронно
// загружает сеть, цену и баланс.
func (c *Connector) Connect(ctx context.Context) (string, error) {
	const op = "wallet.connector.Connect"

	lg := log.From(ctx)

	if c.provider == nil {
		lg.Info("wallet_provider_missing", slog.String("op", op))
		return "", fmt.Errorf("%s: %w", op, ErrProviderUnavailable)
	}

	c.opMu.Lock()

	prev := c.setStatus(StatusConnecting)

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil || len(accounts) == 0 {
		c.setStatus(prev)
		c.opMu.Unlock()

		switch {
		case err == nil || IsUserRejection(err):
			lg.Info("wallet_connect_rejected", slog.String("op", op))
			return "", fmt.Errorf("%s: %w", op, ErrUserRejected)
		default:
			lg.Warn("wallet_connect_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
		}
	}

	account := accounts[0]
	c.adoptLocked(account)
	c.opMu.Unlock()

	lg.Info("wallet_connected",
		slog.String("op", op),
		slog.String("account", redact.Address(account)),
	)

	if _, err := c.RefreshChain(ctx); err != nil {
		lg.Warn("wallet_chain_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	c.Sync(ctx)

	return account, nil
}

// Disconnect локально отключает кошелёк: аккаунт, баланс и стоимость
// сбрасываются. Кэш цены и подписка на уведомления сохраняются.
// Разрешения на стороне провайдера не отзываются.
func (c *Connector) Disconnect(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.disconnectLocked()

	log.From(ctx).Info("wallet_disconnected", slog.String("op", "wallet.connector.Disconnect"))
}

func (c *Connector) disconnectLocked() {
	c.mu.Lock()
	c.epoch++
	c.account = ""
	c.status = StatusDisconnected
	c.balance = 0
	c.balanceKnown = false
	c.usdValue = 0
	c.mu.Unlock()

	c.metrics.SetWalletConnected(false)
}

// OnAccountsChanged применяет уведомление о смене аккаунтов.
//
// Пустой список — то же, что Disconnect. Иначе аккаунтом становится
// accounts[0] без запроса к пользователю; для нового аккаунта в фоне
// загружаются баланс и цена. Уведомления обрабатываются по одному.
func (c *Connector) OnAccountsChanged(ctx context.Context, accounts []string) {
	const op = "wallet.connector.OnAccountsChanged"

	lg := log.From(ctx)

	c.opMu.Lock()

	if len(accounts) == 0 {
		c.disconnectLocked()
		c.opMu.Unlock()

		lg.Info("wallet_accounts_cleared", slog.String("op", op))
		return
	}

	account := accounts[0]

	c.mu.RLock()
	unchanged := c.status == StatusConnected && c.account == account
	c.mu.RUnlock()

	if unchanged {
		c.opMu.Unlock()
		return
	}

	c.adoptLocked(account)
	c.opMu.Unlock()

	lg.Info("wallet_account_switched",
		slog.String("op", op),
		slog.String("account", redact.Address(account)),
	)

	c.syncAsync(ctx)
}

// OnChainChanged применяет уведомление о смене сети.
func (c *Connector) OnChainChanged(ctx context.Context, chainID string) {
	c.mu.Lock()
	c.chainID = chainID
	c.mu.Unlock()

	log.From(ctx).Info("wallet_chain_changed",
		slog.String("op", "wallet.connector.OnChainChanged"),
		slog.String("chain_id", chainID),
		slog.Bool("expected", sameChain(chainID, c.expected)),
	)
}

// RefreshChain запрашивает у провайдера текущую сеть.
func (c *Connector) RefreshChain(ctx context.Context) (string, error) {
	const op = "wallet.connector.RefreshChain"

	if c.provider == nil {
		return "", fmt.Errorf("%s: %w", op, ErrProviderUnavailable)
	}

	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	c.chainID = chainID
	c.mu.Unlock()

	return chainID, nil
}

// adoptLocked делает account текущим и открывает новую эпоху. Вызывается под opMu.
func (c *Connector) adoptLocked(account string) {
	c.mu.Lock()
	if c.account != account {
		c.balance = 0
		c.balanceKnown = false
		c.usdValue = 0
	}
	c.epoch++
	c.account = account
	c.status = StatusConnected
	c.mu.Unlock()

	c.metrics.SetWalletConnected(true)
}

func (c *Connector) setStatus(s Status) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.status
	c.status = s
	return prev
}
