// redact маскирует чувствительные данные перед записью в лог:
// e-mail, токены, пароли и адреса кошельков.
package redact

import "strings"

// Email маскирует e-mail для логирования.
//
// Правила:
//   - строка должна содержать ровно один '@', иначе возвращается "***";
//   - от локальной части остаются первые две руны + "***";
//   - если локальная часть не длиннее двух рун — "***@<domain>".
//
// Примеры:
//
//	"foobar@example.com" -> "fo***@example.com"
//	"ab@ex.com"          -> "***@ex.com"
//	"no-at"              -> "***"
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	local, domain := s[:i], s[i+1:]

	lr := []rune(local)
	if len(lr) > 2 {
		local = string(lr[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Address сокращает адрес кошелька до вида 0x1234...abcd.
// Короткие строки возвращаются как есть.
func Address(s string) string {
	if len(s) <= 10 {
		return s
	}

	return s[:6] + "..." + s[len(s)-4:]
}

// Token возвращает литерал-заглушку для токена в логах.
func Token() string { return "[REDACTED_TOKEN]" }

// Password возвращает литерал-заглушку для пароля в логах.
func Password() string { return "[REDACTED_PASSWORD]" }
