package render

import (
	"strings"

	"github.com/yuchenq/mpharvest/internal/types"
)

// windowsReserved are device names that cannot be used as filenames
// on Windows regardless of extension.
var windowsReserved = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// BaseName builds the export file base name for an article:
// <account>_<title>_<YYYYMMDD>. The account contributes at most 20
// runes and the title at most 40, so the whole name stays well inside
// filesystem limits and always ends with the date suffix.
func BaseName(a *types.Article) string {
	account := truncateRunes(Sanitize(a.AccountName), 20)
	title := truncateRunes(Sanitize(a.Title), 40)
	return account + "_" + title + "_" + a.PublishDate()
}

// Sanitize makes a name component safe for use in a filename across
// platforms.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20, r == 0x7F:
			// drop control characters
		case strings.ContainsRune(`<>:"/\|?*`, r):
			// drop filesystem metacharacters
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), "_")
	cleaned = strings.Trim(cleaned, "_.")

	if cleaned == "" {
		return "unnamed"
	}
	if windowsReserved[strings.ToLower(cleaned)] {
		return cleaned + "_file"
	}
	return cleaned
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
