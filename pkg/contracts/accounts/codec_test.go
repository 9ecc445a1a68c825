package accounts

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	marketHex = "dbbed53700e3c69a" +
		"0101010101010101010101010101010101010101010101010101010101010101" +
		"0303030303030303030303030303030303030303030303030303030303030303" +
		"0404040404040404040404040404040404040404040404040404040404040404" +
		"f401" + "00f1536500000000" + "8042556500000000" +
		"e803000000000000" + "d007000000000000" +
		"02" + "0100" + "00" + "ff" + "fe" +
		"0d000000" + "57696c6c206974207261696e3f"
	positionHex = "aabc8fe47a40f7d0" +
		"0202020202020202020202020202020202020202020202020202020202020202" +
		"00" + "9001000000000000" + "00" + "fd"
)

func sampleMarket() *Market {
	return &Market{
		Creator:         filled(1),
		StakeMint:       filled(3),
		Vault:           filled(4),
		FeeBps:          500,
		EndTime:         1_700_000_000,
		ResolveDeadline: 1_700_086_400,
		StakedA:         1000,
		StakedB:         2000,
		Status:          StatusResolved,
		Outcome:         SomeOutcome(SideA),
		Bump:            255,
		VaultBump:       254,
		Title:           "Will it rain?",
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, "dbbed53700e3c69a", hex.EncodeToString(MarketDiscriminator[:]))
	assert.Equal(t, "aabc8fe47a40f7d0", hex.EncodeToString(PositionDiscriminator[:]))
}

func TestEncodeMarketLayout(t *testing.T) {
	got, err := EncodeMarket(sampleMarket())
	require.NoError(t, err)
	assert.Equal(t, marketHex, hex.EncodeToString(got))

	m, err := DecodeMarket(got)
	require.NoError(t, err)
	assert.Equal(t, sampleMarket(), m)
}

func TestEncodePositionLayout(t *testing.T) {
	p := &Position{Owner: filled(2), Side: SideA, Amount: 400, Bump: 253}
	got, err := EncodePosition(p)
	require.NoError(t, err)
	assert.Equal(t, positionHex, hex.EncodeToString(got))
	assert.Len(t, got, PositionSpace)

	back, err := DecodePosition(got)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestMarketSpace(t *testing.T) {
	assert.Equal(t, 212, MarketSpace)
	m := sampleMarket()
	m.Title = string(make([]byte, MaxTitleLen))
	b, err := EncodeMarket(m)
	require.NoError(t, err)
	assert.Len(t, b, MarketSpace)
}

func TestDecodeMarketRejects(t *testing.T) {
	valid := mustHex(t, marketHex)

	cases := map[string]struct {
		mutate func([]byte) []byte
		err    error
	}{
		"empty":             {func(b []byte) []byte { return nil }, ErrShortBuffer},
		"truncated":         {func(b []byte) []byte { return b[:100] }, ErrShortBuffer},
		"title cut short":   {func(b []byte) []byte { return b[:len(b)-1] }, ErrShortBuffer},
		"position bytes":    {func(b []byte) []byte { return mustHex(t, positionHex) }, ErrBadDiscriminator},
		"status tag":        {func(b []byte) []byte { b[138] = 4; return b }, ErrInvalidEnum},
		"option tag":        {func(b []byte) []byte { b[139] = 2; return b }, ErrInvalidEnum},
		"outcome side":      {func(b []byte) []byte { b[140] = 2; return b }, ErrInvalidEnum},
		"fee withdrawn":     {func(b []byte) []byte { b[141] = 7; return b }, ErrInvalidBool},
		"title length":      {func(b []byte) []byte { b[144] = 65; return b }, ErrTitleTooLong},
		"title utf8":        {func(b []byte) []byte { b[len(b)-1] = 0xff; return b }, ErrInvalidTitle},
		"trailing garbage":  {func(b []byte) []byte { return append(b, 0, 0, 1) }, ErrTrailingBytes},
		"outcome when open": {func(b []byte) []byte { b[138] = byte(StatusOpen); return b }, ErrInconsistentOutcome},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			buf := append([]byte(nil), valid...)
			_, err := DecodeMarket(tc.mutate(buf))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDecodeMarketAcceptsZeroPadding(t *testing.T) {
	buf := append(mustHex(t, marketHex), make([]byte, 51)...)
	m, err := DecodeMarket(buf)
	require.NoError(t, err)
	assert.Equal(t, "Will it rain?", m.Title)
}

func TestDecodePositionRejects(t *testing.T) {
	valid := mustHex(t, positionHex)

	_, err := DecodePosition(valid[:40])
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = DecodePosition(mustHex(t, marketHex))
	assert.ErrorIs(t, err, ErrBadDiscriminator)

	bad := append([]byte(nil), valid...)
	bad[40] = 2
	_, err = DecodePosition(bad)
	assert.ErrorIs(t, err, ErrInvalidEnum)

	bad = append([]byte(nil), valid...)
	bad[49] = 2
	_, err = DecodePosition(bad)
	assert.ErrorIs(t, err, ErrInvalidBool)
}

func TestEncodeRejectsInvalid(t *testing.T) {
	m := sampleMarket()
	m.Title = string(make([]byte, MaxTitleLen+1))
	_, err := EncodeMarket(m)
	assert.ErrorIs(t, err, ErrTitleTooLong)

	m = sampleMarket()
	m.Status = 9
	_, err = EncodeMarket(m)
	assert.ErrorIs(t, err, ErrInvalidEnum)

	_, err = EncodePosition(&Position{Side: 3})
	assert.ErrorIs(t, err, ErrInvalidEnum)
}

func TestKind(t *testing.T) {
	k, err := Kind(mustHex(t, marketHex))
	require.NoError(t, err)
	assert.Equal(t, "Market", k)

	k, err = Kind(mustHex(t, positionHex))
	require.NoError(t, err)
	assert.Equal(t, "Position", k)

	_, err = Kind([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestMarketCodecProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		status := Status(rapid.IntRange(0, 3).Draw(t, "status"))
		m := &Market{
			FeeBps:              uint16(rapid.IntRange(0, 2000).Draw(t, "fee")),
			EndTime:             rapid.Int64().Draw(t, "end"),
			ResolveDeadline:     rapid.Int64().Draw(t, "deadline"),
			StakedA:             rapid.Uint64().Draw(t, "a"),
			StakedB:             rapid.Uint64().Draw(t, "b"),
			Status:              status,
			CreatorFeeWithdrawn: rapid.Bool().Draw(t, "withdrawn"),
			Bump:                rapid.Uint8().Draw(t, "bump"),
			VaultBump:           rapid.Uint8().Draw(t, "vaultBump"),
			Title:               rapid.StringOfN(rapid.RuneFrom([]rune("abcxyz ?é")), 0, 20, MaxTitleLen).Draw(t, "title"),
		}
		copy(m.Creator[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "creator"))
		if status == StatusResolved {
			m.Outcome = SomeOutcome(Side(rapid.IntRange(0, 1).Draw(t, "outcome")))
		}

		enc, err := EncodeMarket(m)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		dec, err := DecodeMarket(enc)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if *dec != *m {
			t.Fatalf("round trip mismatch: %+v != %+v", dec, m)
		}
		if _, err := DecodeMarket(enc[:len(enc)-1]); err == nil {
			t.Fatalf("truncated buffer decoded")
		}
	})
}
