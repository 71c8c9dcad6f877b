package records

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pharmatrace/pkg/domain-errors"
)

const wallet = "5DMXqq7v2gkNSyBQ9P6XMFgUFQNcLdJHdhFi9JEPfcpa"

func validForm() Form {
	return Form{
		WalletAddress:      "  " + wallet + " ",
		AgeGroup:           "30-39",
		Gender:             "female",
		Ethnicity:          " prefer not to say ",
		MedicalConditions:  "asthma, , hypertension ,",
		CurrentMedications: "",
		BMI:                "23.4",
		BloodPressure:      " 120/80 ",
		LastHbA1cLevel:     "abc",
	}
}

func TestParseCommaSeparated(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"a", []string{"a"}},
		{" a , b,,c , ", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCommaSeparated(tt.in), "input %q", tt.in)
	}
}

func TestParseMetric(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		in   string
		want *float64
	}{
		{"23.4", f(23.4)},
		{" 6.1 ", f(6.1)},
		{"23.5kg", f(23.5)},
		{"+7", f(7)},
		{"", nil},
		{"abc", nil},
		{"0", nil},
		{"-0", nil},
		{"-3", f(-3)},
		{"1e3", f(1000)},
		{"2.5E-1mg", f(0.25)},
		{"7e", f(7)},
		{"4.e+x", f(4)},
		{".5", f(0.5)},
		{"1.2.3", f(1.2)},
		{"1e999", nil},
		{".", nil},
		{"-", nil},
		{"e5", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseMetric(tt.in), "input %q", tt.in)
	}
}

func TestForm_Build(t *testing.T) {
	rec := validForm().Build()
	assert.Equal(t, wallet, rec.WalletAddress)
	assert.Equal(t, "prefer not to say", rec.Demographics.Ethnicity)
	assert.Equal(t, []string{"asthma", "hypertension"}, rec.MedicalConditions)
	assert.Equal(t, []string{}, rec.CurrentMedications)
	require.NotNil(t, rec.HealthMetrics.BMI)
	assert.InDelta(t, 23.4, *rec.HealthMetrics.BMI, 1e-9)
	require.NotNil(t, rec.HealthMetrics.BloodPressure)
	assert.Equal(t, "120/80", *rec.HealthMetrics.BloodPressure)
	assert.Nil(t, rec.HealthMetrics.LastHbA1cLevel)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"last_hba1c_level":null`)
	assert.Contains(t, string(raw), `"current_medications":[]`)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Form)
		want   string
	}{
		{"missing wallet", func(f *Form) { f.WalletAddress = "  " }, MsgWalletRequired},
		{"wallet of length 10", func(f *Form) { f.WalletAddress = "ABCDEFGHJK" }, MsgWalletInvalid},
		{"wallet too long", func(f *Form) { f.WalletAddress = wallet + "ABCDEFGHJK" }, MsgWalletInvalid},
		{"wallet outside base58", func(f *Form) { f.WalletAddress = "0OIl" + wallet[4:] }, MsgWalletInvalid},
		{"missing age group", func(f *Form) { f.AgeGroup = "" }, MsgDemographicsMissing},
		{"missing gender", func(f *Form) { f.Gender = "" }, MsgDemographicsMissing},
		{"bad blood pressure", func(f *Form) { f.BloodPressure = "120-80" }, MsgBloodPressureFormat},
		{"four digit blood pressure", func(f *Form) { f.BloodPressure = "1200/80" }, MsgBloodPressureFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)
			err := Validate(form.Build())
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
			assert.Equal(t, tt.want, err.Error())
		})
	}

	t.Run("valid record", func(t *testing.T) {
		assert.NoError(t, Validate(validForm().Build()))
	})

	t.Run("blood pressure is optional", func(t *testing.T) {
		form := validForm()
		form.BloodPressure = ""
		assert.NoError(t, Validate(form.Build()))
	})
}

func TestClient_Upload(t *testing.T) {
	t.Run("posts the record", func(t *testing.T) {
		var got UploadRecord
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/upload-record", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"rec-1"}`))
		}))
		defer srv.Close()

		res, err := NewClient(srv.URL+"/").Upload(context.Background(), validForm().Build())
		require.NoError(t, err)
		assert.Equal(t, "rec-1", res["id"])
		assert.Equal(t, wallet, got.WalletAddress)
		assert.Equal(t, []string{"asthma", "hypertension"}, got.MedicalConditions)
	})

	t.Run("invalid record never reaches the network", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
		}))
		defer srv.Close()

		form := validForm()
		form.WalletAddress = "ABCDEFGHJK"
		_, err := NewClient(srv.URL).Upload(context.Background(), form.Build())
		require.Error(t, err)
		assert.Equal(t, MsgWalletInvalid, err.Error())
		assert.Zero(t, calls.Load())
	})

	t.Run("server error text is surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"Record already exists for this wallet"}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Upload(context.Background(), validForm().Build())
		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, http.StatusConflict, rejected.Status)
		assert.Equal(t, "Record already exists for this wallet", rejected.Message)
	})

	t.Run("server error without body falls back", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Upload(context.Background(), validForm().Build())
		require.Error(t, err)
		assert.Equal(t, MsgUploadFailed, err.Error())
	})

	t.Run("unreachable api is a network error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := NewClient(url).Upload(context.Background(), validForm().Build())
		assert.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("missing base url", func(t *testing.T) {
		_, err := NewClient("").Upload(context.Background(), validForm().Build())
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})
}
