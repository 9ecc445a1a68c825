package accounts

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize é o tamanho fixo de uma identidade (usuário, mint, vault, registro).
const PubkeySize = 32

// Pubkey é uma identidade opaca de 32 bytes. Na forma texto é base58.
type Pubkey [PubkeySize]byte

var ErrInvalidPubkey = errors.New("accounts: invalid pubkey")

// ParsePubkey decodifica uma identidade base58.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %q: %v", ErrInvalidPubkey, s, err)
	}
	if len(raw) != PubkeySize {
		return pk, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidPubkey, s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustParsePubkey é ParsePubkey para constantes conhecidas.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copia exatamente 32 bytes para uma Pubkey.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPubkey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (p Pubkey) String() string { return base58.Encode(p[:]) }

func (p Pubkey) Bytes() []byte { return p[:] }

func (p Pubkey) IsZero() bool { return p == Pubkey{} }

func (p Pubkey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Pubkey) UnmarshalText(b []byte) error {
	pk, err := ParsePubkey(string(b))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
