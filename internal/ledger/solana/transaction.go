package solana

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"pharmatrace/internal/consent/models"
)

const (
	signatureLength     = 64
	discriminatorLength = 8
)

var (
	// SignConsentDiscriminator prefixes sign_consent instruction data.
	SignConsentDiscriminator = discriminator("global:sign_consent")
	// ConsentRecordDiscriminator prefixes ConsentRecord account data.
	ConsentRecordDiscriminator = discriminator("account:ConsentRecord")
)

func discriminator(preimage string) [discriminatorLength]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [discriminatorLength]byte
	copy(d[:], sum[:discriminatorLength])
	return d
}

// appendCompactU16 appends the shortvec encoding of n: seven bits per byte,
// high bit set on every byte but the last.
func appendCompactU16(b []byte, n int) []byte {
	v := uint16(n)
	for {
		elem := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}

// Account indices inside the sign_consent message. Signer-writable keys come
// first, then non-signer writable, then read-only.
const (
	idxPatient       = 0
	idxConsentRecord = 1
	idxSystemProgram = 2
	idxProgram       = 3
)

// SignConsentMessage builds the legacy message for sign_consent(agreement_hash)
// with accounts [consent_record (w), patient (w, s), system_program].
func SignConsentMessage(programID models.PublicKey, req models.CommitRequest, blockhash models.PublicKey) []byte {
	var m []byte
	// header: required signatures, read-only signed, read-only unsigned
	m = append(m, 1, 0, 2)

	m = appendCompactU16(m, 4)
	m = append(m, req.Owner[:]...)
	m = append(m, req.Address.Address[:]...)
	m = append(m, models.SystemProgramID[:]...)
	m = append(m, programID[:]...)

	m = append(m, blockhash[:]...)

	m = appendCompactU16(m, 1)
	m = append(m, idxProgram)
	m = appendCompactU16(m, 3)
	m = append(m, idxConsentRecord, idxPatient, idxSystemProgram)

	data := make([]byte, 0, discriminatorLength+models.DigestLength)
	data = append(data, SignConsentDiscriminator[:]...)
	data = append(data, req.Digest[:]...)
	m = appendCompactU16(m, len(data))
	m = append(m, data...)
	return m
}

// EncodeTransaction prefixes message with its signatures.
func EncodeTransaction(message []byte, signatures ...[]byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(appendCompactU16(nil, len(signatures)))
	for i, sig := range signatures {
		if len(sig) != signatureLength {
			return nil, fmt.Errorf("signature %d: want %d bytes, got %d", i, signatureLength, len(sig))
		}
		buf.Write(sig)
	}
	buf.Write(message)
	return buf.Bytes(), nil
}

// ConsentRecordLength is discriminator + patient + agreement_hash + is_verified.
const ConsentRecordLength = discriminatorLength + models.PublicKeyLength + models.DigestLength + 1

var ErrNotConsentRecord = errors.New("account is not a ConsentRecord")

// DecodeConsentRecord parses ConsentRecord account data. Trailing bytes are
// ignored so the program may grow the account.
func DecodeConsentRecord(data []byte) (models.Attestation, error) {
	if len(data) < ConsentRecordLength {
		return models.Attestation{}, fmt.Errorf("%w: %d bytes", ErrNotConsentRecord, len(data))
	}
	if !bytes.Equal(data[:discriminatorLength], ConsentRecordDiscriminator[:]) {
		return models.Attestation{}, fmt.Errorf("%w: discriminator %x", ErrNotConsentRecord, data[:discriminatorLength])
	}
	var a models.Attestation
	off := discriminatorLength
	copy(a.Owner[:], data[off:off+models.PublicKeyLength])
	off += models.PublicKeyLength
	copy(a.Digest[:], data[off:off+models.DigestLength])
	off += models.DigestLength
	switch data[off] {
	case 0:
	case 1:
		a.Verified = true
	default:
		return models.Attestation{}, fmt.Errorf("%w: invalid bool %d", ErrNotConsentRecord, data[off])
	}
	return a, nil
}

// EncodeConsentRecord is the inverse of DecodeConsentRecord.
func EncodeConsentRecord(a models.Attestation) []byte {
	out := make([]byte, 0, ConsentRecordLength)
	out = append(out, ConsentRecordDiscriminator[:]...)
	out = append(out, a.Owner[:]...)
	out = append(out, a.Digest[:]...)
	if a.Verified {
		return append(out, 1)
	}
	return append(out, 0)
}
