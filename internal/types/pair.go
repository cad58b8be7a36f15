package types

import (
	"strings"

	"github.com/rxtech-lab/argo-bitso/pkg/errors"
)

// Pair is an exchange book such as "eth_mxn": base asset, underscore, quote currency.
type Pair string

// ParsePair normalizes and validates a book name.
func ParsePair(raw string) (Pair, error) {
	book := strings.ToLower(strings.TrimSpace(raw))

	parts := strings.Split(book, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", errors.Newf(errors.ErrCodeInvalidPair, "invalid trading pair %q, expected <base>_<quote>", raw)
	}

	return Pair(book), nil
}

// Asset returns the upper-cased base asset, e.g. ETH for eth_mxn.
func (p Pair) Asset() string {
	base, _, _ := strings.Cut(string(p), "_")

	return strings.ToUpper(base)
}

// Quote returns the upper-cased quote currency, e.g. MXN for eth_mxn.
func (p Pair) Quote() string {
	_, quote, _ := strings.Cut(string(p), "_")

	return strings.ToUpper(quote)
}

func (p Pair) String() string {
	return string(p)
}
