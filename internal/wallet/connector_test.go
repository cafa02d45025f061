package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/crypto-dashboard/mocks"
)

const (
	accountA = "0x52908400098527886E0F7030069857D2E4169EE7"
	accountB = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
)

type rpcErr struct{ code int }

func (e rpcErr) Error() string  { return "rpc error" }
func (e rpcErr) ErrorCode() int { return e.code }

// ether переводит количество ether (с шагом 0.1) в wei.
func ether(tenths int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(tenths), big.NewInt(1e17))
}

type fixture struct {
	c        *Connector
	provider *mocks.MockProvider
	prices   *mocks.MockPriceSource

	unsubscribed atomic.Int32
	onAccounts   func([]string)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &fixture{
		provider: mocks.NewMockProvider(ctrl),
		prices:   mocks.NewMockPriceSource(ctrl),
	}
	f.expectSubscribe()
	f.c = New(f.provider, f.prices)
	t.Cleanup(func() { f.c.wg.Wait() })

	return f
}

// expectSubscribe ожидает подписку на оба события и запоминает обработчик аккаунтов.
func (f *fixture) expectSubscribe() {
	f.provider.EXPECT().OnAccountsChanged(gomock.Any()).DoAndReturn(func(fn func([]string)) func() {
		f.onAccounts = fn
		return func() { f.unsubscribed.Add(1) }
	})
	f.provider.EXPECT().OnChainChanged(gomock.Any()).Return(func() { f.unsubscribed.Add(1) })
}

// connect подключает account с балансом tenths/10 ether и ценой price.
func (f *fixture) connect(t *testing.T, account string, tenths int64, price float64) {
	t.Helper()

	f.provider.EXPECT().RequestAccounts(gomock.Any()).Return([]string{account}, nil)
	f.provider.EXPECT().ChainID(gomock.Any()).Return(DefaultExpectedChainID, nil)
	f.prices.EXPECT().UnitPrice(gomock.Any(), DefaultSymbol).Return(price, nil)
	f.provider.EXPECT().Balance(gomock.Any(), account).Return(ether(tenths), nil)

	got, err := f.c.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, account, got)
}

func TestConnect_NoProvider(t *testing.T) {
	t.Parallel()

	c := New(nil, nil)

	_, err := c.Connect(context.Background())
	require.ErrorIs(t, err, ErrProviderUnavailable)

	st := c.State()
	require.False(t, st.IsConnected)
	require.Equal(t, string(StatusDisconnected), st.Status)
}

func TestConnect_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		accounts []string
		err      error
		want     error
	}{
		{name: "eip1193_4001", err: rpcErr{code: UserRejectedCode}, want: ErrUserRejected},
		{name: "sentinel", err: ErrUserRejected, want: ErrUserRejected},
		{name: "empty_accounts", accounts: []string{}, want: ErrUserRejected},
		{name: "provider_failure", err: errors.New("connection refused"), want: ErrProviderUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.provider.EXPECT().RequestAccounts(gomock.Any()).Return(tt.accounts, tt.err)

			_, err := f.c.Connect(context.Background())
			require.ErrorIs(t, err, tt.want)

			st := f.c.State()
			require.False(t, st.IsConnected)
			require.Empty(t, st.Account)
			require.Equal(t, string(StatusDisconnected), st.Status)
		})
	}
}

func TestConnect_SyncsBalanceAndPrice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect(t, accountA, 25, 3000)

	st := f.c.State()
	require.True(t, st.IsConnected)
	require.Equal(t, string(StatusConnected), st.Status)
	require.Equal(t, accountA, st.Account)
	require.InDelta(t, 2.5, st.Balance, 1e-9)
	require.NotNil(t, st.EthPrice)
	require.InDelta(t, 3000, *st.EthPrice, 1e-9)
	require.InDelta(t, 7500, st.USDValue, 1e-6)
	require.Equal(t, DefaultExpectedChainID, st.ChainID)
	require.True(t, st.OnExpectedChain)

	// Новая цена пересчитывает стоимость без запроса баланса.
	f.c.SetPrice(3100)
	require.InDelta(t, 7750, f.c.State().USDValue, 1e-6)
}

func TestRecompute_OrderIndependent(t *testing.T) {
	t.Parallel()

	t.Run("balance_then_price", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.connect(t, accountA, 0, 1)

		f.c.SetBalance(2.5)
		f.c.SetPrice(3000)
		require.InDelta(t, 7500, f.c.State().USDValue, 1e-6)
	})

	t.Run("price_then_balance", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.connect(t, accountA, 0, 1)

		f.c.SetPrice(3000)
		f.c.SetBalance(2.5)
		require.InDelta(t, 7500, f.c.State().USDValue, 1e-6)
	})

	t.Run("unknown_price", func(t *testing.T) {
		t.Parallel()

		c := New(nil, nil)
		c.SetBalance(2.5)
		require.Zero(t, c.State().USDValue)
	})
}

func TestDisconnect_ClearsButKeepsSubscription(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect(t, accountA, 25, 3000)

	f.c.Disconnect(context.Background())

	st := f.c.State()
	require.False(t, st.IsConnected)
	require.Empty(t, st.Account)
	require.Zero(t, st.Balance)
	require.Zero(t, st.USDValue)
	require.NotNil(t, st.EthPrice, "price cache survives disconnect")
	require.Zero(t, f.unsubscribed.Load())

	f.c.Close()
	require.EqualValues(t, 2, f.unsubscribed.Load())
}

func TestReconnect_DoesNotDuplicateSubscriptions(t *testing.T) {
	t.Parallel()

	// gomock упадёт на повторной подписке: ожидания заданы один раз в newFixture.
	f := newFixture(t)
	f.connect(t, accountA, 10, 3000)
	f.c.Disconnect(context.Background())
	f.connect(t, accountA, 10, 3000)

	require.Zero(t, f.unsubscribed.Load())

	f.c.Close()
	require.EqualValues(t, 2, f.unsubscribed.Load())

	f.c.Close()
	require.EqualValues(t, 2, f.unsubscribed.Load())
}

func TestOnAccountsChanged_AdoptsWithoutConnect(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	f.prices.EXPECT().UnitPrice(gomock.Any(), DefaultSymbol).Return(3000.0, nil)
	f.provider.EXPECT().Balance(gomock.Any(), accountA).Return(ether(20), nil)

	require.NotNil(t, f.onAccounts)
	f.onAccounts([]string{accountA})
	f.c.wg.Wait()

	st := f.c.State()
	require.True(t, st.IsConnected)
	require.Equal(t, accountA, st.Account)
	require.InDelta(t, 6000, st.USDValue, 1e-6)
}

func TestOnAccountsChanged_Empty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect(t, accountA, 25, 3000)

	f.c.OnAccountsChanged(context.Background(), nil)

	st := f.c.State()
	require.False(t, st.IsConnected)
	require.Empty(t, st.Account)
	require.Zero(t, st.Balance)
	require.Zero(t, st.USDValue)
}

func TestOnAccountsChanged_EmptyWhileDisconnected(t *testing.T) {
	t.Parallel()

	c := New(nil, nil)
	c.OnAccountsChanged(context.Background(), []string{})

	st := c.State()
	require.False(t, st.IsConnected)
	require.Zero(t, st.Balance)
}

func TestOnAccountsChanged_SwitchesViaProviderEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect(t, accountA, 25, 3000)

	f.prices.EXPECT().UnitPrice(gomock.Any(), DefaultSymbol).Return(3000.0, nil)
	f.provider.EXPECT().Balance(gomock.Any(), accountB).Return(ether(10), nil)

	require.NotNil(t, f.onAccounts)
	f.onAccounts([]string{accountB})
	f.c.wg.Wait()

	st := f.c.State()
	require.Equal(t, accountB, st.Account)
	require.True(t, st.IsConnected)
	require.InDelta(t, 1.0, st.Balance, 1e-9)
	require.InDelta(t, 3000, st.USDValue, 1e-6)
}

func TestOnAccountsChanged_SameAccountIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect(t, accountA, 25, 3000)

	// Никаких новых вызовов провайдера: gomock упадёт на неожиданном Balance.
	f.c.OnAccountsChanged(context.Background(), []string{accountA})
	f.c.wg.Wait()

	require.InDelta(t, 2.5, f.c.State().Balance, 1e-9)
}

func TestFetchBalance_FailureIsNonFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect(t, accountA, 25, 3000)

	f.provider.EXPECT().Balance(gomock.Any(), accountA).Return(nil, errors.New("rpc down"))

	_, err := f.c.FetchBalance(context.Background(), accountA)
	require.ErrorIs(t, err, ErrBalanceQuery)

	st := f.c.State()
	require.True(t, st.IsConnected)
	require.Equal(t, accountA, st.Account)
	require.Zero(t, st.Balance)
	require.Zero(t, st.USDValue)
}

func TestFetchPrice_FailureKeepsPrevious(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect(t, accountA, 25, 3000)

	f.prices.EXPECT().UnitPrice(gomock.Any(), DefaultSymbol).Return(0.0, errors.New("upstream 500"))

	_, err := f.c.FetchPrice(context.Background())
	require.ErrorIs(t, err, ErrPriceUnavailable)

	st := f.c.State()
	require.InDelta(t, 3000, *st.EthPrice, 1e-9)
	require.InDelta(t, 7500, st.USDValue, 1e-6)
}

func TestFetchBalance_StaleResponseDiscarded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect(t, accountA, 25, 3000)

	started := make(chan struct{})
	release := make(chan struct{})

	f.provider.EXPECT().Balance(gomock.Any(), accountA).DoAndReturn(func(context.Context, string) (*big.Int, error) {
		close(started)
		<-release
		return ether(90), nil
	})
	f.prices.EXPECT().UnitPrice(gomock.Any(), DefaultSymbol).Return(3000.0, nil)
	f.provider.EXPECT().Balance(gomock.Any(), accountB).Return(ether(20), nil)

	type result struct {
		balance float64
		err     error
	}
	done := make(chan result, 1)
	go func() {
		b, err := f.c.FetchBalance(context.Background(), accountA)
		done <- result{b, err}
	}()

	<-started
	f.c.OnAccountsChanged(context.Background(), []string{accountB})
	f.c.wg.Wait()

	close(release)
	res := <-done
	require.ErrorIs(t, res.err, ErrStaleBalance)
	require.InDelta(t, 9.0, res.balance, 1e-9)

	st := f.c.State()
	require.Equal(t, accountB, st.Account)
	require.InDelta(t, 2.0, st.Balance, 1e-9)
	require.InDelta(t, 6000, st.USDValue, 1e-6)
}

func TestRefreshChain_UnexpectedNetwork(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().ChainID(gomock.Any()).Return("0x1", nil)
	provider.EXPECT().OnAccountsChanged(gomock.Any()).Return(func() {})
	provider.EXPECT().OnChainChanged(gomock.Any()).Return(func() {})

	c := New(provider, nil, WithExpectedChain("0x4E454152"))

	id, err := c.RefreshChain(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0x1", id)
	require.False(t, c.State().OnExpectedChain)

	c.OnChainChanged(context.Background(), "0x4e454152")
	require.True(t, c.State().OnExpectedChain)
}

func TestWeiToEther(t *testing.T) {
	t.Parallel()

	require.Zero(t, WeiToEther(nil))
	require.InDelta(t, 1.0, WeiToEther(big.NewInt(1e18)), 1e-12)
	require.InDelta(t, 0.000000001, WeiToEther(big.NewInt(1e9)), 1e-18)
}

func TestIsUserRejection(t *testing.T) {
	t.Parallel()

	require.True(t, IsUserRejection(rpcErr{code: 4001}))
	require.True(t, IsUserRejection(errors.Join(errors.New("x"), ErrUserRejected)))
	require.False(t, IsUserRejection(rpcErr{code: -32603}))
	require.False(t, IsUserRejection(errors.New("boom")))
}
