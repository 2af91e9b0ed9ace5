package compare

import (
	"math"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"

	"github.com/ppiankov/claimlink/internal/normalize"
)

// Similarity returns a case-insensitive similarity in [0,100] between a and b.
//
// The ratio is based on an insert/delete alignment: every character kept by
// the alignment counts twice over the combined length of both strings, i.e.
// round(200 * lcs(a, b) / (len(a) + len(b))). Two empty strings are identical.
func Similarity(a, b string) float64 {
	na, nb := normalize.Text(a), normalize.Text(b)
	total := utf8.RuneCountInString(na) + utf8.RuneCountInString(nb)
	if total == 0 {
		return 100
	}
	matches := edlib.LCS(na, nb)
	return math.Round(200 * float64(matches) / float64(total))
}
