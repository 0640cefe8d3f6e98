package data

// BTCTestKeys holds published address/key pairs for secp256k1 scalar 1.
const BTCTestKeys = `[
	{"address": "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", "private_key": "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn", "format": "wif"},
	{"address": "1EHNa6Q4Jz2uvNExL497mE43ikXhwF6kZm", "private_key": "5HpHagT65TZzG1PH3CSu63k8DbpvD8s5ip4nEB3kEsreAnchuDf", "format": "wif"},
	{"address": "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", "private_key": "0000000000000000000000000000000000000000000000000000000000000001", "format": "hex"},
	{"address": "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", "private_key": "0x0000000000000000000000000000000000000000000000000000000000000001", "format": "hex"}
]`

// BTCMismatchedKeys pair valid addresses with keys that do not control them.
const BTCMismatchedKeys = `[
	{"address": "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "private_key": "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn", "format": "wif"}
]`
