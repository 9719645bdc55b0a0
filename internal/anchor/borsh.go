package anchor

import (
	"fmt"
	"reflect"

	"github.com/near/borsh-go"

	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// Encode serializes v with Borsh. Pointers are dereferenced; Borsh would
// otherwise encode them as options.
func Encode(v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	b, err := borsh.Serialize(rv.Interface())
	if err != nil {
		return nil, fmt.Errorf("borsh encode %T: %w", v, err)
	}
	return b, nil
}

// Decode deserializes Borsh data into the pointer v.
func Decode(data []byte, v interface{}) error {
	if err := borsh.Deserialize(v, data); err != nil {
		return fmt.Errorf("borsh decode %T: %w", v, err)
	}
	return nil
}

// EncodeInstruction returns the instruction discriminator of name followed by
// the Borsh-encoded args. A nil args encodes no arguments.
func EncodeInstruction(name string, args interface{}) ([]byte, error) {
	data := InstructionDiscriminator(name).Bytes()
	if args == nil {
		return data, nil
	}
	body, err := Encode(args)
	if err != nil {
		return nil, err
	}
	return append(data, body...), nil
}

// EncodeAccount returns the account discriminator of name followed by the
// Borsh-encoded state.
func EncodeAccount(name string, state interface{}) ([]byte, error) {
	body, err := Encode(state)
	if err != nil {
		return nil, err
	}
	return append(AccountDiscriminator(name).Bytes(), body...), nil
}

// DecodeAccount decodes raw account data of type name into state.
func DecodeAccount(data []byte, name string, state interface{}) error {
	if len(data) < DiscriminatorSize {
		return ErrAccountDiscriminatorNotFound
	}
	if !AccountDiscriminator(name).Matches(data) {
		return ErrAccountDiscriminatorMismatch
	}
	if err := Decode(data[DiscriminatorSize:], state); err != nil {
		return ErrAccountDidNotDeserialize
	}
	return nil
}

// LoadAccount checks that info is an initialized account of type name owned
// by program and decodes it into state. Errors are attributed to field.
func LoadAccount(info *vm.AccountInfo, program solana.PublicKey, name, field string, state interface{}) error {
	if info.Lamports == 0 && len(info.Data) == 0 {
		return ErrAccountNotInitialized.WithAccount(field)
	}
	if !info.IsOwnedBy(program) {
		return ErrAccountOwnedByWrongProgram.WithAccount(field)
	}
	if err := DecodeAccount(info.Data, name, state); err != nil {
		if ae, ok := err.(*Error); ok {
			return ae.WithAccount(field)
		}
		return err
	}
	return nil
}
