package models

// Coin — строка рыночной таблицы.
type Coin struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	Image          string  `json:"image"`
	CurrentPrice   float64 `json:"current_price"`
	PriceChange24h float64 `json:"price_change_percentage_24h"`
	MarketCap      float64 `json:"market_cap"`
}

// MarketPage — страница рыночной таблицы.
type MarketPage struct {
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Items   []Coin `json:"items"`
}

// ExchangeRate — курс base -> target.
type ExchangeRate struct {
	Base   string  `json:"base"`
	Target string  `json:"target"`
	Rate   float64 `json:"rate"`
}
