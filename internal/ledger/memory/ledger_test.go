package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pharmatrace/internal/consent/hasher"
	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/pda"
	"pharmatrace/internal/consent/ports"
	"pharmatrace/internal/wallet"
	"pharmatrace/pkg/platform/sentinel"
)

var programID = models.MustParsePublicKey("5DMXqq7v2gkNSyBQ9P6XMFgUFQNcLdJHdhFi9JEPfcpa")

type LedgerSuite struct {
	suite.Suite
	ctx    context.Context
	ledger *Ledger
	wallet *wallet.Keypair
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.ledger = New()
	kp, err := wallet.Generate()
	s.Require().NoError(err)
	s.wallet = kp
	s.ledger.Airdrop(kp.Address(), models.LamportsPerSOL)
}

func (s *LedgerSuite) request(owner models.PublicKey, doc string) models.CommitRequest {
	addr, err := pda.DeriveConsentAddress(owner, programID)
	s.Require().NoError(err)
	return models.CommitRequest{Address: addr, Owner: owner, Digest: hasher.Hash(doc)}
}

func (s *LedgerSuite) TestCommitThenFetch() {
	req := s.request(s.wallet.Address(), "I consent to data sharing")

	tx, err := s.ledger.SubmitCommit(s.ctx, programID, req, s.wallet)
	s.Require().NoError(err)
	s.NotEmpty(tx)

	got, err := s.ledger.FetchAttestation(s.ctx, programID, req.Address.Address)
	s.Require().NoError(err)
	s.Equal(models.Attestation{Owner: req.Owner, Digest: req.Digest}, got)

	bal, err := s.ledger.GetBalance(s.ctx, s.wallet.Address())
	s.Require().NoError(err)
	s.Equal(uint64(models.LamportsPerSOL)-DefaultFeeLamports-DefaultRentLamports, bal)
}

func (s *LedgerSuite) TestSecondCommitIsRejected() {
	req := s.request(s.wallet.Address(), "first")
	_, err := s.ledger.SubmitCommit(s.ctx, programID, req, s.wallet)
	s.Require().NoError(err)

	second := s.request(s.wallet.Address(), "second")
	_, err = s.ledger.SubmitCommit(s.ctx, programID, second, s.wallet)
	s.Require().Error(err)

	var carrier ports.LogCarrier
	s.Require().True(errors.As(err, &carrier))
	s.NotEmpty(carrier.ProgramLogs())
	s.Contains(carrier.ProgramLogs()[2], "already in use")

	got, err := s.ledger.FetchAttestation(s.ctx, programID, req.Address.Address)
	s.Require().NoError(err)
	s.Equal(hasher.Hash("first"), got.Digest, "first record is never overwritten")
}

func (s *LedgerSuite) TestInsufficientFunds() {
	poor, err := wallet.Generate()
	s.Require().NoError(err)

	_, err = s.ledger.SubmitCommit(s.ctx, programID, s.request(poor.Address(), "doc"), poor)
	s.Require().Error(err)
	s.Contains(err.Error(), "insufficient funds")
}

func (s *LedgerSuite) TestRejectsAddressNotDerivedFromSigner() {
	req := s.request(s.wallet.Address(), "doc")
	req.Address.Address = models.PublicKey{42}

	_, err := s.ledger.SubmitCommit(s.ctx, programID, req, s.wallet)
	var txErr *TxError
	s.Require().ErrorAs(err, &txErr)
	s.Contains(txErr.Message, "0x7d6")
}

func (s *LedgerSuite) TestRejectsForeignSigner() {
	other, err := wallet.Generate()
	s.Require().NoError(err)

	_, err = s.ledger.SubmitCommit(s.ctx, programID, s.request(s.wallet.Address(), "doc"), other)
	s.Require().Error(err)
	s.Contains(err.Error(), "signature verification")
}

func (s *LedgerSuite) TestWalletRejectionPropagates() {
	declining, err := wallet.Generate(wallet.WithApprover(func(context.Context, []byte) (bool, error) {
		return false, nil
	}))
	s.Require().NoError(err)
	s.ledger.Airdrop(declining.Address(), models.LamportsPerSOL)

	_, err = s.ledger.SubmitCommit(s.ctx, programID, s.request(declining.Address(), "doc"), declining)
	s.ErrorIs(err, ports.ErrUserRejected)
}

func (s *LedgerSuite) TestFetchMissing() {
	_, err := s.ledger.FetchAttestation(s.ctx, programID, models.PublicKey{1})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LedgerSuite) TestFetchUnderOtherProgramIsMissing() {
	req := s.request(s.wallet.Address(), "doc")
	_, err := s.ledger.SubmitCommit(s.ctx, programID, req, s.wallet)
	s.Require().NoError(err)

	_, err = s.ledger.FetchAttestation(s.ctx, models.PublicKey{9}, req.Address.Address)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LedgerSuite) TestSetVerified() {
	req := s.request(s.wallet.Address(), "doc")
	_, err := s.ledger.SubmitCommit(s.ctx, programID, req, s.wallet)
	s.Require().NoError(err)

	s.Require().NoError(s.ledger.SetVerified(req.Address.Address, true))
	got, err := s.ledger.FetchAttestation(s.ctx, programID, req.Address.Address)
	s.Require().NoError(err)
	s.True(got.Verified)

	s.ErrorIs(s.ledger.SetVerified(models.PublicKey{5}, true), sentinel.ErrNotFound)
}

func TestConcurrentDuplicateCommitsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	l := New()
	kp, err := wallet.Generate()
	require.NoError(t, err)
	l.Airdrop(kp.Address(), 10*models.LamportsPerSOL)

	addr, err := pda.DeriveConsentAddress(kp.Address(), programID)
	require.NoError(t, err)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.SubmitCommit(ctx, programID, models.CommitRequest{Address: addr, Owner: kp.Address(), Digest: models.Digest{byte(i)}}, kp)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
