package models

// WalletState — снимок состояния подключения кошелька.
//
// Инвариант: USDValue всегда согласован с последней известной парой
// (Balance, EthPrice); при неизвестной цене USDValue == 0.
type WalletState struct {
	// Status — Disconnected / Connecting / Connected.
	Status string `json:"status"`
	// Account — выбранный адрес; пустой, если кошелёк отключён.
	Account string `json:"account,omitempty"`
	// IsConnected — явный флаг подключения.
	IsConnected bool `json:"is_connected"`
	// EthPrice — последняя известная цена за единицу (nil — ещё не получена).
	EthPrice *float64 `json:"eth_price"`
	// Balance — баланс в единицах отображения (ether).
	Balance float64 `json:"balance"`
	// USDValue — Balance * EthPrice.
	USDValue float64 `json:"usd_value"`
	// ChainID — текущая сеть провайдера в hex (0x...).
	ChainID string `json:"chain_id,omitempty"`
	// OnExpectedChain — провайдер подключён к ожидаемой сети.
	OnExpectedChain bool `json:"on_expected_chain"`
}
