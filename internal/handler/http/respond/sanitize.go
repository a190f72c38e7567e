package respond

import (
	"regexp"
)

// より具体的なパターンから順に適用する
var secretPatterns = []struct {
	re   *regexp.Regexp
	mask string
}{
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]+`), "sk-ant-****"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9_-]{10,}`), "sk-****"},
	{regexp.MustCompile(`AIza[0-9A-Za-z_-]{20,}`), "AIza****"},
	{regexp.MustCompile(`\bre_[a-zA-Z0-9_]{10,}`), "re_****"},
	{regexp.MustCompile(`(?i)(apiKey|api_key|token)=[^&\s"]+`), "$1=****"},
	// DSN 内のパスワード
	{regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`), "://$1:****@"},
}

// SanitizeError returns err's message with API keys, tokens and DSN
// passwords masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, p := range secretPatterns {
		msg = p.re.ReplaceAllString(msg, p.mask)
	}
	return msg
}
