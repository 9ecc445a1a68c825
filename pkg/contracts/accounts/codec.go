package accounts

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

const DiscriminatorSize = 8

// Discriminator são os 8 primeiros bytes de sha256("account:<Name>").
type Discriminator [DiscriminatorSize]byte

func discriminatorFor(name string) Discriminator {
	sum := sha256.Sum256([]byte("account:" + name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

var (
	MarketDiscriminator   = discriminatorFor("Market")
	PositionDiscriminator = discriminatorFor("Position")
)

// Tamanhos alocados por conta (título ocupando o máximo).
const (
	marketFixedLen = DiscriminatorSize + 3*PubkeySize + 2 + 8*4 + 1 + 1 + 1 + 1 + 1 + 4
	MarketSpace    = marketFixedLen + 1 + MaxTitleLen
	PositionSpace  = DiscriminatorSize + PubkeySize + 1 + 8 + 1 + 1
)

var (
	ErrShortBuffer         = errors.New("accounts: buffer too short")
	ErrBadDiscriminator    = errors.New("accounts: discriminator mismatch")
	ErrInvalidEnum         = errors.New("accounts: invalid enum tag")
	ErrInvalidBool         = errors.New("accounts: invalid bool byte")
	ErrTitleTooLong        = errors.New("accounts: title too long")
	ErrInvalidTitle        = errors.New("accounts: title is not valid utf-8")
	ErrTrailingBytes       = errors.New("accounts: non-zero trailing bytes")
	ErrInconsistentOutcome = errors.New("accounts: outcome does not match status")
)

// EncodeMarket serializa no layout fixo. Campos inválidos (enums, título) são erro.
func EncodeMarket(m *Market) ([]byte, error) {
	if !m.Status.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidEnum, m.Status)
	}
	if m.Outcome.Valid && !m.Outcome.Side.Valid() {
		return nil, fmt.Errorf("%w: outcome side %d", ErrInvalidEnum, m.Outcome.Side)
	}
	if len(m.Title) > MaxTitleLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrTitleTooLong, len(m.Title))
	}
	if !utf8.ValidString(m.Title) {
		return nil, ErrInvalidTitle
	}

	w := writer{buf: make([]byte, 0, marketFixedLen+1+len(m.Title))}
	w.bytes(MarketDiscriminator[:])
	w.bytes(m.Creator[:])
	w.bytes(m.StakeMint[:])
	w.bytes(m.Vault[:])
	w.u16(m.FeeBps)
	w.i64(m.EndTime)
	w.i64(m.ResolveDeadline)
	w.u64(m.StakedA)
	w.u64(m.StakedB)
	w.u8(uint8(m.Status))
	if m.Outcome.Valid {
		w.u8(1)
		w.u8(uint8(m.Outcome.Side))
	} else {
		w.u8(0)
	}
	w.bool(m.CreatorFeeWithdrawn)
	w.u8(m.Bump)
	w.u8(m.VaultBump)
	w.u32(uint32(len(m.Title)))
	w.bytes([]byte(m.Title))
	return w.buf, nil
}

// DecodeMarket valida o discriminador antes de ler o resto.
func DecodeMarket(data []byte) (*Market, error) {
	r := reader{buf: data}
	if err := r.discriminator(MarketDiscriminator); err != nil {
		return nil, err
	}
	m := &Market{}
	r.pubkey(&m.Creator)
	r.pubkey(&m.StakeMint)
	r.pubkey(&m.Vault)
	m.FeeBps = r.u16()
	m.EndTime = r.i64()
	m.ResolveDeadline = r.i64()
	m.StakedA = r.u64()
	m.StakedB = r.u64()
	m.Status = Status(r.u8())
	if r.err == nil && !m.Status.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidEnum, m.Status)
	}
	switch tag := r.u8(); {
	case r.err != nil:
	case tag == 0:
	case tag == 1:
		m.Outcome = SomeOutcome(Side(r.u8()))
		if r.err == nil && !m.Outcome.Side.Valid() {
			return nil, fmt.Errorf("%w: outcome side %d", ErrInvalidEnum, m.Outcome.Side)
		}
	default:
		return nil, fmt.Errorf("%w: option tag %d", ErrInvalidEnum, tag)
	}
	m.CreatorFeeWithdrawn = r.bool()
	m.Bump = r.u8()
	m.VaultBump = r.u8()
	m.Title = r.title()
	if err := r.finish(); err != nil {
		return nil, err
	}
	if m.Outcome.Valid != (m.Status == StatusResolved) {
		return nil, fmt.Errorf("%w: status %s, outcome %s", ErrInconsistentOutcome, m.Status, m.Outcome)
	}
	return m, nil
}

func EncodePosition(p *Position) ([]byte, error) {
	if !p.Side.Valid() {
		return nil, fmt.Errorf("%w: side %d", ErrInvalidEnum, p.Side)
	}
	w := writer{buf: make([]byte, 0, PositionSpace)}
	w.bytes(PositionDiscriminator[:])
	w.bytes(p.Owner[:])
	w.u8(uint8(p.Side))
	w.u64(p.Amount)
	w.bool(p.Claimed)
	w.u8(p.Bump)
	return w.buf, nil
}

func DecodePosition(data []byte) (*Position, error) {
	r := reader{buf: data}
	if err := r.discriminator(PositionDiscriminator); err != nil {
		return nil, err
	}
	p := &Position{}
	r.pubkey(&p.Owner)
	p.Side = Side(r.u8())
	if r.err == nil && !p.Side.Valid() {
		return nil, fmt.Errorf("%w: side %d", ErrInvalidEnum, p.Side)
	}
	p.Amount = r.u64()
	p.Claimed = r.bool()
	p.Bump = r.u8()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return p, nil
}

// Kind identifica o tipo de uma conta pelo discriminador.
func Kind(data []byte) (string, error) {
	if len(data) < DiscriminatorSize {
		return "", ErrShortBuffer
	}
	switch Discriminator(data[:DiscriminatorSize]) {
	case MarketDiscriminator:
		return "Market", nil
	case PositionDiscriminator:
		return "Position", nil
	default:
		return "", ErrBadDiscriminator
	}
}

type writer struct{ buf []byte }

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }
func (w *writer) u8(v uint8)     { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16)   { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32)   { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64)   { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) i64(v int64)    { w.u64(uint64(v)) }

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

// reader guarda o primeiro erro; leituras seguintes viram no-op.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) discriminator(want Discriminator) error {
	b := r.take(DiscriminatorSize)
	if r.err != nil {
		return r.err
	}
	if Discriminator(b) != want {
		return fmt.Errorf("%w: got %x", ErrBadDiscriminator, b)
	}
	return nil
}

func (r *reader) pubkey(dst *Pubkey) {
	if b := r.take(PubkeySize); b != nil {
		copy(dst[:], b)
	}
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *reader) i64() int64 { return int64(r.u64()) }

func (r *reader) bool() bool {
	v := r.u8()
	if r.err == nil && v > 1 {
		r.err = fmt.Errorf("%w: %d at offset %d", ErrInvalidBool, v, r.off-1)
	}
	return v == 1
}

func (r *reader) title() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	if n > MaxTitleLen {
		r.err = fmt.Errorf("%w: %d bytes", ErrTitleTooLong, n)
		return ""
	}
	b := r.take(int(n))
	if r.err != nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.err = ErrInvalidTitle
		return ""
	}
	return string(b)
}

// finish aceita padding zerado até o espaço alocado da conta.
func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	for i, b := range r.buf[r.off:] {
		if b != 0 {
			return fmt.Errorf("%w: byte %d at offset %d", ErrTrailingBytes, b, r.off+i)
		}
	}
	return nil
}
