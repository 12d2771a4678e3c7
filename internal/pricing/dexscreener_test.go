package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDexScreenerClient_Quote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/"+addrA+","+addrB, r.URL.Path)
		fmt.Fprintf(w, `{"schemaVersion":"1.0.0","pairs":[
			{"chainId":"base","dexId":"aerodrome","pairAddress":"0xp1",
			 "baseToken":{"address":"%s","symbol":"AAA"},
			 "priceUsd":"0.01234","fdv":123400,"marketCap":100000,
			 "volume":{"h24":5000.5,"h6":100},"priceChange":{"h24":-2.5},
			 "liquidity":{"usd":25000,"base":1,"quote":2}}
		]}`, addrA)
	}))
	defer server.Close()

	c := NewDexScreenerClient(ClientConfig{BaseURL: server.URL}, zerolog.Nop())
	pairs, err := c.Quote(context.Background(), []string{addrA, addrB})
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	p := pairs[0]
	assert.Equal(t, "base", p.ChainID)
	assert.Equal(t, addrA, p.BaseToken.Address)
	assert.Equal(t, "0.01234", p.PriceUSD)
	assert.Equal(t, 123400.0, p.FDV)
	require.NotNil(t, p.Volume)
	assert.Equal(t, 5000.5, *p.Volume.H24)
	require.NotNil(t, p.PriceChange)
	assert.Equal(t, -2.5, *p.PriceChange.H24)
	liquidity, ok := p.LiquidityUSD()
	assert.True(t, ok)
	assert.Equal(t, 25000.0, liquidity)
}

func TestDexScreenerClient_NullPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"schemaVersion":"1.0.0","pairs":null}`)
	}))
	defer server.Close()

	pairs, err := NewDexScreenerClient(ClientConfig{BaseURL: server.URL}, zerolog.Nop()).
		Quote(context.Background(), []string{addrA})
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestDexScreenerClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewDexScreenerClient(ClientConfig{BaseURL: server.URL}, zerolog.Nop())
	_, err := c.Quote(context.Background(), []string{addrA})
	assert.Error(t, err)

	many := strings.Split(strings.Repeat(addrA+",", MaxAddressesPerRequest+1), ",")
	_, err = c.Quote(context.Background(), many[:MaxAddressesPerRequest+1])
	assert.ErrorContains(t, err, "exceeds limit")

	pairs, err := c.Quote(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, pairs)
}
