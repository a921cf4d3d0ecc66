package pricing

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoin_Symbol(t *testing.T) {
	c := ParseCoin(" $doge ")
	assert.Equal(t, CoinSymbol, c.Kind)
	assert.Equal(t, "DOGE", c.Raw)
}

func TestParseCoin_Mint(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr := base58.Encode(pub)

	c := ParseCoin(addr)
	assert.Equal(t, CoinMint, c.Kind)
	assert.Equal(t, addr, c.Raw, "mint case must be preserved")
}

func TestParseCoin_OffCurveIsSymbol(t *testing.T) {
	// y >= p is a non-canonical encoding and never a valid point.
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = 0xff
	}
	c := ParseCoin(base58.Encode(raw))
	assert.Equal(t, CoinSymbol, c.Kind)
}

func TestParseCoin_BadBase58IsSymbol(t *testing.T) {
	// '0' and 'l' are outside the base58 alphabet.
	c := ParseCoin("0lllllllllllllllllllllllllllllllllll")
	assert.Equal(t, CoinSymbol, c.Kind)
}

func TestExtractMints(t *testing.T) {
	pubA, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pubB, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	a, b := base58.Encode(pubA), base58.Encode(pubB)

	text := "CA: " + a + "\nchart https://dexscreener.com/solana/" + b + " also " + a + " $WIF"
	assert.Equal(t, []string{a, b}, ExtractMints(text))

	assert.Empty(t, ExtractMints("$DOGE to the moon 🚀"))
}
