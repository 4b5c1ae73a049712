package extract

import (
	"strings"

	"kyc-backend/internal/kyc"
)

var roleKeywords = map[kyc.DocumentRole][]string{
	kyc.RoleIDProof: {
		"passport", "driving licence", "driving license", "driver license", "driver's license",
		"national id", "identity card", "id card", "aadhaar", "aadhar", "pan card",
		"permanent account number", "voter", "date of expiry", "residence permit",
	},
	kyc.RoleAddressProof: {
		"utility", "electricity", "water bill", "gas bill", "bank statement", "statement",
		"proof of address", "address proof", "bill", "lease", "rental agreement", "council tax",
	},
}

// DetectRole guesses a document's role from its file name and text. File name
// hits count double. Ties and misses yield kyc.RoleOther.
func DetectRole(fileName, text string) kyc.DocumentRole {
	name := normalizeName(fileName)
	body := strings.ToLower(text)

	best, bestScore, tie := kyc.RoleOther, 0, false
	for _, role := range []kyc.DocumentRole{kyc.RoleIDProof, kyc.RoleAddressProof} {
		score := 0
		for _, kw := range roleKeywords[role] {
			if strings.Contains(name, kw) {
				score += 2
			}
			if strings.Contains(body, kw) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tie = role, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if tie {
		return kyc.RoleOther
	}
	return best
}

func normalizeName(fileName string) string {
	lower := strings.ToLower(fileName)
	return strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(lower)
}
