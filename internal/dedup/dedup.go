// Package dedup computes content hashes for transactions and filters out the
// ones a ledger already holds.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// HeaderCell is the first cell of the hashes column in a ledger.
const HeaderCell = "Hash"

// Hash is the hex encoded SHA-256 identity of a transaction.
type Hash string

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Valid reports whether h looks like a value produced by HashTransaction.
func Valid(h Hash) bool {
	return hashPattern.MatchString(string(h))
}

// HashTransaction returns the identity hash of tx over
// effectiveDate|signedAmount|description. The amount is truncated, not
// rounded, to two fractional digits so float noise never changes identity.
func HashTransaction(tx domain.Transaction) Hash {
	date := ""
	if d := tx.EffectiveDate(); d != nil {
		date = d.String()
	}
	key := date + "|" + formatAmount(tx.SignedAmount()) + "|" + tx.Description
	sum := sha256.Sum256([]byte(key))
	return Hash(hex.EncodeToString(sum[:]))
}

func formatAmount(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	return decimal.NewFromFloat(f).Truncate(2).StringFixed(2)
}

// Result is the outcome of FilterDuplicates.
type Result struct {
	Unique         []domain.Transaction
	DuplicateCount int
	NewHashes      []Hash
}

// FilterDuplicates drops transactions whose hash is in existing or was
// already seen earlier in txs. existing is not modified. NewHashes holds the
// hashes of Unique, in the same order.
func FilterDuplicates(txs []domain.Transaction, existing map[Hash]struct{}) Result {
	seen := make(map[Hash]struct{}, len(existing)+len(txs))
	for h := range existing {
		seen[h] = struct{}{}
	}

	var res Result
	for _, tx := range txs {
		h := HashTransaction(tx)
		if _, dup := seen[h]; dup {
			res.DuplicateCount++
			continue
		}
		seen[h] = struct{}{}
		res.Unique = append(res.Unique, tx)
		res.NewHashes = append(res.NewHashes, h)
	}
	return res
}

// HashSet builds a set from raw ledger cells, skipping blanks and the header.
func HashSet(cells []string) map[Hash]struct{} {
	set := make(map[Hash]struct{}, len(cells))
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" || c == HeaderCell {
			continue
		}
		set[Hash(c)] = struct{}{}
	}
	return set
}

// Strings converts hashes to plain strings, for writing into cells.
func Strings(hashes []Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = string(h)
	}
	return out
}
