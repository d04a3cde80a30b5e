package identity

import "regexp"

// A NIF is a Portuguese tax number: exactly nine digits. Account names on the
// Trackimo side embed it free-form (e.g. "Joao NIF123456789 Silva"), so we
// scan for digit runs instead of anchoring on word boundaries.
var digitRun = regexp.MustCompile(`[0-9]+`)

// ExtractNIF returns the first run of exactly nine digits found in the
// account name. Absence is a normal result, not an error: records without a
// NIF are skipped by callers.
func ExtractNIF(accountName string) (string, bool) {
	for _, run := range digitRun.FindAllString(accountName, -1) {
		if len(run) == 9 {
			return run, true
		}
	}
	return "", false
}
