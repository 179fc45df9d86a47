package pages

import (
	"strconv"
	"time"
)

// Languages dates can be formatted in.
const (
	LanguageIndonesian = "id-ID"
	LanguageEnglish    = "en"

	DefaultLanguage = LanguageIndonesian
)

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatDate renders t as a long date: "1 Mei 2024" in Indonesian,
// "May 1, 2024" in English. Unknown languages use Indonesian.
func FormatDate(t time.Time, lang string) string {
	if t.IsZero() {
		return ""
	}
	if lang == LanguageEnglish {
		return t.Format("January 2, 2006")
	}
	return strconv.Itoa(t.Day()) + " " + indonesianMonths[t.Month()-1] + " " + strconv.Itoa(t.Year())
}

// Excerpt shortens s to n runes, appending "..." when it was cut.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// FormatCoord renders a coordinate with prec decimals.
func FormatCoord(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
