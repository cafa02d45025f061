package models

// Article — новость из ленты.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	URL         string `json:"url"`
	ImageURL    string `json:"imageurl"`
	Source      string `json:"source"`
	PublishedOn int64  `json:"published_on"` // Unix UTC
}

// NewsPage — страница новостей с признаком продолжения.
//
// Особенности:
//   - Page — 1-based;
//   - Fallback == true, если апстрим недоступен и отдан резервный список.
type NewsPage struct {
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Items    []Article `json:"items"`
	HasMore  bool      `json:"has_more"`
	Total    int       `json:"total"`
	Fallback bool      `json:"fallback"`
}
