package accounts

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Tags de namespace usados como primeira seed de cada endereço derivado.
const (
	SeedMarket   = "market"
	SeedPosition = "position"
	SeedVault    = "vault"
	SeedToken    = "token"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
	pdaMarker     = "ProgramDerivedAddress"
)

// DefaultProgramID é o namespace padrão das derivações.
var DefaultProgramID = MustParsePubkey("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS")

var (
	ErrMaxSeedLength = errors.New("accounts: seed too long")
	ErrTooManySeeds  = errors.New("accounts: too many seeds")
	ErrOnCurve       = errors.New("accounts: derived address is on curve")
	ErrNoViableBump  = errors.New("accounts: no viable bump seed")
)

// CreateProgramAddress calcula sha256(seeds ‖ programID ‖ "ProgramDerivedAddress").
// O resultado não pode ser um ponto válido de ed25519, senão haveria chave privada para ele.
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > maxSeeds {
		return Pubkey{}, ErrTooManySeeds
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return Pubkey{}, fmt.Errorf("%w: %d bytes", ErrMaxSeedLength, len(s))
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out Pubkey
	copy(out[:], h.Sum(nil))
	if isOnCurve(out) {
		return Pubkey{}, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress procura, do bump 255 para baixo, o primeiro endereço fora da curva.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Pubkey{}, 0, err
		}
	}
	return Pubkey{}, 0, ErrNoViableBump
}

func isOnCurve(p Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// Deriver resolve os endereços de Market, Position, vault e token account de um programa.
// Clientes precisam reproduzir exatamente estas seeds para localizar registros.
type Deriver struct {
	ProgramID Pubkey
}

func NewDeriver(programID Pubkey) Deriver { return Deriver{ProgramID: programID} }

// Market: ["market", creator, nonce u64 LE].
func (d Deriver) Market(creator Pubkey, nonce uint64) (Pubkey, uint8, error) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], nonce)
	return FindProgramAddress([][]byte{[]byte(SeedMarket), creator[:], n[:]}, d.ProgramID)
}

// Position: ["position", market, owner].
func (d Deriver) Position(market, owner Pubkey) (Pubkey, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(SeedPosition), market[:], owner[:]}, d.ProgramID)
}

// Vault: ["vault", market].
func (d Deriver) Vault(market Pubkey) (Pubkey, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(SeedVault), market[:]}, d.ProgramID)
}

// TokenAccount: ["token", owner, mint].
func (d Deriver) TokenAccount(owner, mint Pubkey) (Pubkey, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(SeedToken), owner[:], mint[:]}, d.ProgramID)
}
