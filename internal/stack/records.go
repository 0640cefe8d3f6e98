package stack

import (
	"fmt"

	"github.com/ATMackay/keyscraper/store"
)

// KnownRecords are real address/key pairs for secp256k1 scalar 1.
var KnownRecords = []store.Record{
	{Index: "1", Address: "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", Balance: "0 BTC", PrivateKey: "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn"},
	{Index: "2", Address: "1EHNa6Q4Jz2uvNExL497mE43ikXhwF6kZm", Balance: "0 BTC", PrivateKey: "5HpHagT65TZzG1PH3CSu63k8DbpvD8s5ip4nEB3kEsreAnchuDf"},
	{Index: "3", Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", Balance: "0 BTC", PrivateKey: "0000000000000000000000000000000000000000000000000000000000000001"},
}

// SyntheticRecords returns n records with pattern-valid (but not checksummed)
// addresses starting with "1Page<page>".
func SyntheticRecords(page, n int) []store.Record {
	out := make([]store.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, store.Record{
			Index:      fmt.Sprintf("%d", (page-1)*n+i+1),
			Address:    fmt.Sprintf("1Page%03dRow%03d%018d", page, i, i),
			Balance:    "0 BTC",
			PrivateKey: fmt.Sprintf("%064x", (page-1)*n+i+1),
		})
	}
	return out
}

// SyntheticPages returns count pages of perPage synthetic records.
func SyntheticPages(count, perPage int) [][]store.Record {
	pages := make([][]store.Record, 0, count)
	for p := 1; p <= count; p++ {
		pages = append(pages, SyntheticRecords(p, perPage))
	}
	return pages
}
