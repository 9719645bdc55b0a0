package solana

import (
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrUnknownSigner is returned when a keypair is not a required signer of the message.
	ErrUnknownSigner = errors.New("keypair is not a required signer")

	// ErrMissingSignature is returned by Verify when a required signature is unset.
	ErrMissingSignature = errors.New("missing signature")

	// ErrSignatureVerification is returned by Verify when a signature does not match.
	ErrSignatureVerification = errors.New("signature verification failed")
)

// Transaction is a signed legacy message.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles an unsigned transaction with room for every signature.
func NewTransaction(instructions []Instruction, payer PublicKey, blockhash Hash) (*Transaction, error) {
	msg, err := NewMessage(instructions, payer, blockhash)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Signatures: make([]Signature, msg.Header.NumRequiredSignatures),
		Message:    *msg,
	}, nil
}

// NewSignedTransaction compiles and signs a transaction. The payer always signs;
// signers lists any additional required signers.
func NewSignedTransaction(instructions []Instruction, payer *Keypair, signers []*Keypair, blockhash Hash) (*Transaction, error) {
	tx, err := NewTransaction(instructions, payer.PublicKey(), blockhash)
	if err != nil {
		return nil, err
	}
	all := append([]*Keypair{payer}, signers...)
	if err := tx.Sign(all...); err != nil {
		return nil, err
	}
	return tx, nil
}

// Sign fills the signature slot of every given keypair. Duplicate keypairs are
// tolerated.
func (tx *Transaction) Sign(signers ...*Keypair) error {
	msg := tx.Message.Serialize()
	required := tx.Message.Signers()
	if len(tx.Signatures) != len(required) {
		tx.Signatures = make([]Signature, len(required))
	}
	for _, kp := range signers {
		idx := -1
		for i, k := range required {
			if k == kp.PublicKey() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownSigner, kp.PublicKey())
		}
		tx.Signatures[idx] = kp.Sign(msg)
	}
	return nil
}

// Verify checks every required signature against the message.
func (tx *Transaction) Verify() error {
	required := tx.Message.Signers()
	if len(tx.Signatures) != len(required) {
		return fmt.Errorf("%w: have %d, need %d", ErrMissingSignature, len(tx.Signatures), len(required))
	}
	msg := tx.Message.Serialize()
	for i, k := range required {
		if tx.Signatures[i].IsZero() {
			return fmt.Errorf("%w: %s", ErrMissingSignature, k)
		}
		if !VerifySignature(k, msg, tx.Signatures[i]) {
			return fmt.Errorf("%w: %s", ErrSignatureVerification, k)
		}
	}
	return nil
}

// Signature returns the first signature, which identifies the transaction.
func (tx *Transaction) Signature() Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}
	return tx.Signatures[0]
}

// Serialize encodes signatures followed by the message.
func (tx *Transaction) Serialize() []byte {
	b := appendShortVec(nil, len(tx.Signatures))
	for _, s := range tx.Signatures {
		b = append(b, s[:]...)
	}
	return append(b, tx.Message.Serialize()...)
}

// ToBase64 returns the wire encoding accepted by sendTransaction.
func (tx *Transaction) ToBase64() string {
	return base64.StdEncoding.EncodeToString(tx.Serialize())
}

// DeserializeTransaction parses the wire encoding.
func DeserializeTransaction(b []byte) (*Transaction, error) {
	r := reader{buf: b}
	n := r.shortVec()
	tx := &Transaction{}
	for i := 0; i < n && r.err == nil; i++ {
		var s Signature
		copy(s[:], r.next(SignatureLength))
		tx.Signatures = append(tx.Signatures, s)
	}
	if r.err != nil {
		return nil, r.err
	}
	msg, used, err := DecodeMessage(b[r.pos:])
	if err != nil {
		return nil, err
	}
	if r.pos+used != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedMessage, len(b)-r.pos-used)
	}
	tx.Message = *msg
	return tx, nil
}

// TransactionFromBase64 decodes a base64 wire transaction.
func TransactionFromBase64(s string) (*Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 transaction: %w", err)
	}
	return DeserializeTransaction(raw)
}
