package domain

import "strings"

const pairingCodeGroup = 4

// FormatPairingCode splits a pairing code into dash separated groups of four
// so it can be typed on a phone, e.g. "ABCD1234" becomes "ABCD-1234".
func FormatPairingCode(code string) string {
	code = strings.TrimSpace(code)
	if len(code) <= pairingCodeGroup {
		return code
	}

	groups := make([]string, 0, len(code)/pairingCodeGroup+1)
	for len(code) > pairingCodeGroup {
		groups = append(groups, code[:pairingCodeGroup])
		code = code[pairingCodeGroup:]
	}
	groups = append(groups, code)

	return strings.Join(groups, "-")
}
