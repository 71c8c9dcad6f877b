package records

import (
	"regexp"

	"github.com/asaskevich/govalidator"

	dErrors "pharmatrace/pkg/domain-errors"
)

// User-facing validation messages.
const (
	MsgWalletRequired      = "Please enter your Solana wallet address"
	MsgWalletInvalid       = "Please enter a valid Solana wallet address"
	MsgDemographicsMissing = "Please fill in all required demographic fields"
	MsgBloodPressureFormat = "Blood pressure should be in format: 120/80"
)

const base58Pattern = "^[1-9A-HJ-NP-Za-km-z]+$"

var bloodPressurePattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)

// Validate checks rec in form order and returns the first failure as an
// invalid_input error carrying the user-facing message.
func Validate(rec UploadRecord) error {
	if rec.WalletAddress == "" {
		return dErrors.New(dErrors.CodeInvalidInput, MsgWalletRequired)
	}
	if !govalidator.StringLength(rec.WalletAddress, "32", "44") || !govalidator.Matches(rec.WalletAddress, base58Pattern) {
		return dErrors.New(dErrors.CodeInvalidInput, MsgWalletInvalid)
	}
	if rec.Demographics.AgeGroup == "" || rec.Demographics.Gender == "" {
		return dErrors.New(dErrors.CodeInvalidInput, MsgDemographicsMissing)
	}
	if bp := rec.HealthMetrics.BloodPressure; bp != nil && !bloodPressurePattern.MatchString(*bp) {
		return dErrors.New(dErrors.CodeInvalidInput, MsgBloodPressureFormat)
	}
	return nil
}
