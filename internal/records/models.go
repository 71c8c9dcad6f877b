// Package records submits de-identified medical records to the records API.
// Records are linked to a wallet address; the API itself is out of scope.
package records

// UploadRecord is the request body of POST /api/upload-record.
type UploadRecord struct {
	WalletAddress      string        `json:"wallet_address"`
	Demographics       Demographics  `json:"demographics"`
	MedicalConditions  []string      `json:"medical_conditions"`
	CurrentMedications []string      `json:"current_medications"`
	HealthMetrics      HealthMetrics `json:"health_metrics"`
}

type Demographics struct {
	AgeGroup  string `json:"age_group"`
	Gender    string `json:"gender"`
	Ethnicity string `json:"ethnicity"`
}

// HealthMetrics fields are null when not provided.
type HealthMetrics struct {
	BMI            *float64 `json:"bmi"`
	BloodPressure  *string  `json:"blood_pressure"`
	LastHbA1cLevel *float64 `json:"last_hba1c_level"`
}

// Form is raw user input, as typed into a form or passed as CLI flags.
type Form struct {
	WalletAddress      string
	AgeGroup           string
	Gender             string
	Ethnicity          string
	MedicalConditions  string
	CurrentMedications string
	BMI                string
	BloodPressure      string
	LastHbA1cLevel     string
}
