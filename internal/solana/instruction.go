package solana

// AccountMeta describes one account an instruction touches.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// Meta builds an AccountMeta.
func Meta(pk PublicKey, signer, writable bool) AccountMeta {
	return AccountMeta{PublicKey: pk, IsSigner: signer, IsWritable: writable}
}

// Writable is a writable non-signer meta.
func Writable(pk PublicKey) AccountMeta { return Meta(pk, false, true) }

// Readonly is a readonly non-signer meta.
func Readonly(pk PublicKey) AccountMeta { return Meta(pk, false, false) }

// WritableSigner is a writable signer meta.
func WritableSigner(pk PublicKey) AccountMeta { return Meta(pk, true, true) }

// ReadonlySigner is a readonly signer meta.
func ReadonlySigner(pk PublicKey) AccountMeta { return Meta(pk, true, false) }

// Instruction is a single program call.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}
