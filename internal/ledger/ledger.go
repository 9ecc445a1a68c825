// Package ledger concentra a aritmética monetária do motor de liquidação.
//
// Todo valor é um inteiro sem sinal de 64 bits na menor unidade do ativo de stake.
// Multiplicações usam um intermediário de 256 bits e toda divisão é piso (floor).
// Nenhuma operação dá wrap: estouro devolve erro.
package ledger

import (
	"errors"

	"github.com/holiman/uint256"
)

// BpsDenominator é a base dos percentuais em basis points (10000 = 100%).
const BpsDenominator uint64 = 10_000

var (
	ErrOverflow       = errors.New("ledger: arithmetic overflow")
	ErrUnderflow      = errors.New("ledger: arithmetic underflow")
	ErrDivisionByZero = errors.New("ledger: division by zero")
)

// Add soma a+b ou devolve ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, ErrOverflow
	}
	return s, nil
}

// Sub subtrai b de a ou devolve ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Sum soma todos os valores, falhando no primeiro estouro.
func Sum(values ...uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		var err error
		if total, err = Add(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// MulDiv calcula floor(a*b/d) com o produto em largura dupla.
// O resultado precisa caber de volta em 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	x := new(uint256.Int).SetUint64(a)
	x.Mul(x, new(uint256.Int).SetUint64(b))
	x.Div(x, new(uint256.Int).SetUint64(d))
	if !x.IsUint64() {
		return 0, ErrOverflow
	}
	return x.Uint64(), nil
}

// Bps aplica uma taxa em basis points: floor(value*bps/10000).
// Multiplica antes de dividir para que o arredondamento seja sempre a favor do pool.
func Bps(value uint64, bps uint16) (uint64, error) {
	return MulDiv(value, uint64(bps), BpsDenominator)
}
