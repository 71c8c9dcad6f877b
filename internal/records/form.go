package records

import (
	"math"
	"strconv"
	"strings"
)

// Build normalizes form input into an UploadRecord. Free text is trimmed,
// comma lists are split, and metrics that are missing, unparsable or zero
// become null.
func (f Form) Build() UploadRecord {
	rec := UploadRecord{
		WalletAddress: strings.TrimSpace(f.WalletAddress),
		Demographics: Demographics{
			AgeGroup:  f.AgeGroup,
			Gender:    f.Gender,
			Ethnicity: strings.TrimSpace(f.Ethnicity),
		},
		MedicalConditions:  ParseCommaSeparated(f.MedicalConditions),
		CurrentMedications: ParseCommaSeparated(f.CurrentMedications),
		HealthMetrics: HealthMetrics{
			BMI:            parseMetric(f.BMI),
			LastHbA1cLevel: parseMetric(f.LastHbA1cLevel),
		},
	}
	if bp := strings.TrimSpace(f.BloodPressure); bp != "" {
		rec.HealthMetrics.BloodPressure = &bp
	}
	return rec
}

// ParseCommaSeparated splits on commas, trims each item and drops empties.
// It never returns nil so the JSON body carries [] rather than null.
func ParseCommaSeparated(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseMetric reads the longest leading decimal literal the way a lenient
// form does: "23.5kg" is 23.5, "-5" is -5 and "1e3" is 1000. Unparsable, zero
// and infinite values are null.
func parseMetric(raw string) *float64 {
	s := strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(leadingNumber(s), 64)
	if err != nil || v == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// leadingNumber returns the prefix of s matching [+-]?digits[.digits][e[+-]digits].
// An exponent without digits is not part of the number.
func leadingNumber(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(s) && isDigit(s[i]); i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && isDigit(s[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return ""
	}
	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for ; k < len(s) && isDigit(s[k]); k++ {
		}
		if k > j {
			end = k
		}
	}
	return s[:end]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
