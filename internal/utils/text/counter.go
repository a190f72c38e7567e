// Package text provides rune-aware helpers shared by the prompt builders and
// the LLM clients.
package text

// CountRunes counts Unicode characters rather than bytes.
//
//	CountRunes("hello")   // 5
//	CountRunes("こんにちは") // 5
func CountRunes(text string) int {
	return len([]rune(text))
}

// Truncate returns the first n characters of s. It never splits a multi-byte
// character. Non-positive n yields "".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// TruncateWithSuffix truncates s to n characters including suffix when s is
// longer than n.
func TruncateWithSuffix(s string, n int, suffix string) string {
	if CountRunes(s) <= n {
		return s
	}
	keep := n - CountRunes(suffix)
	if keep < 0 {
		keep = 0
	}
	return Truncate(s, keep) + suffix
}
