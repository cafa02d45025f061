package authapi

import (
	"html"
	"regexp"
	"strings"
)

// FallbackHTMLMessage возвращается, если в HTML-странице нет ни <title>, ни <h1>.
const FallbackHTMLMessage = "Server error: Please check your API endpoint"

var (
	reTitle = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	reH1    = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	reTags  = regexp.MustCompile(`(?s)<[^>]+>`)
)

// HTMLMessage извлекает сообщение из HTML-страницы ошибки:
// сначала <title>, затем <h1>; внутренние теги и лишние пробелы убираются.
func HTMLMessage(body []byte) string {
	for _, re := range []*regexp.Regexp{reTitle, reH1} {
		m := re.FindSubmatch(body)
		if len(m) < 2 {
			continue
		}

		text := reTags.ReplaceAllString(string(m[1]), "")
		text = strings.Join(strings.Fields(html.UnescapeString(text)), " ")
		if text != "" {
			return text
		}
	}

	return FallbackHTMLMessage
}
