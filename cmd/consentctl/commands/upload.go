package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pharmatrace/internal/records"
)

func uploadRecordCmd(o *options) *cobra.Command {
	var form records.Form
	cmd := &cobra.Command{
		Use:   "upload-record",
		Short: "Upload a de-identified medical record linked to a wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := records.NewClient(o.recordsAPI, records.WithLogger(o.logger(cmd)))
			if _, err := client.Upload(cmd.Context(), form.Build()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), records.MsgUploaded)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.WalletAddress, "wallet", "", "Solana wallet address the record belongs to")
	f.StringVar(&form.AgeGroup, "age-group", "", "age group, e.g. 30-39")
	f.StringVar(&form.Gender, "gender", "", "gender")
	f.StringVar(&form.Ethnicity, "ethnicity", "", "ethnicity")
	f.StringVar(&form.MedicalConditions, "conditions", "", "comma-separated medical conditions")
	f.StringVar(&form.CurrentMedications, "medications", "", "comma-separated current medications")
	f.StringVar(&form.BMI, "bmi", "", "body mass index")
	f.StringVar(&form.BloodPressure, "blood-pressure", "", "blood pressure, e.g. 120/80")
	f.StringVar(&form.LastHbA1cLevel, "hba1c", "", "last HbA1c level")
	return cmd
}
