package commands

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/ports"
	"pharmatrace/internal/consent/service"
	"pharmatrace/internal/consent/session"
	"pharmatrace/internal/ledger/solana"
	"pharmatrace/internal/platform/config"
	"pharmatrace/internal/platform/logger"
	"pharmatrace/internal/wallet"
)

type options struct {
	rpcURL     string
	programID  string
	keypair    string
	recordsAPI string
	commitment string
	cluster    string
	logLevel   string

	// newLedger is replaced in tests.
	newLedger func(o *options) (ports.Ledger, error)
}

func Execute() error {
	return newRootCmd(&options{newLedger: rpcLedger}).Execute()
}

func newRootCmd(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "consentctl",
		Short:         "Sign and verify consent attestations on Solana",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaultKeypair := ""
	if dir, err := os.UserHomeDir(); err == nil {
		defaultKeypair = filepath.Join(dir, ".config", "solana", "id.json")
	}

	root.PersistentFlags().StringVar(&o.rpcURL, "rpc", envOr("SOLANA_RPC_URL", "https://api.devnet.solana.com"), "Solana JSON-RPC endpoint")
	root.PersistentFlags().StringVar(&o.programID, "program", envOr("PROGRAM_ID", config.DefaultProgramID), "consent program ID")
	root.PersistentFlags().StringVar(&o.keypair, "keypair", envOr("WALLET_KEYPAIR_PATH", defaultKeypair), "wallet keypair file (JSON array of 64 bytes)")
	root.PersistentFlags().StringVar(&o.recordsAPI, "records-api", os.Getenv("RECORDS_API_URL"), "records API base URL")
	root.PersistentFlags().StringVar(&o.commitment, "commitment", solana.CommitmentConfirmed, "commitment to wait for (processed, confirmed, finalized)")
	root.PersistentFlags().StringVar(&o.cluster, "cluster", "devnet", "cluster name for explorer links")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		hashCmd(),
		deriveCmd(o),
		signCmd(o),
		verifyCmd(o),
		balanceCmd(o),
		uploadRecordCmd(o),
		keygenCmd(),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	return logger.NewWithWriter(cmd.ErrOrStderr(), o.logLevel)
}

func (o *options) program() (models.PublicKey, error) {
	id, err := models.ParsePublicKey(o.programID)
	if err != nil {
		return models.PublicKey{}, fmt.Errorf("--program: %w", err)
	}
	return id, nil
}

func rpcLedger(o *options) (ports.Ledger, error) {
	return solana.New(solana.Config{
		Endpoint:   o.rpcURL,
		Commitment: o.commitment,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	})
}

// session builds a session from the flags. A nil wallet is allowed for
// read-only commands.
func (o *options) session(w ports.Wallet) (session.Session, error) {
	programID, err := o.program()
	if err != nil {
		return session.Session{}, err
	}
	ledger, err := o.newLedger(o)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{Wallet: w, Program: &session.Program{ID: programID, Ledger: ledger}}, nil
}

func (o *options) client(cmd *cobra.Command) *service.Client {
	return service.New(service.WithLogger(o.logger(cmd)))
}

func (o *options) loadWallet(opts ...wallet.Option) (*wallet.Keypair, error) {
	if o.keypair == "" {
		return nil, fmt.Errorf("--keypair is required")
	}
	return wallet.LoadFile(o.keypair, opts...)
}

// describe renders an attestation failure with its remedy.
func describe(err error) error {
	cerr := service.Classify(err)
	if remedy := cerr.Remedy(); remedy != "" {
		return fmt.Errorf("%s\n%s", cerr.Error(), remedy)
	}
	return cerr
}
