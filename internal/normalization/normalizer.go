// Package normalization maps raw upstream listings onto record patches.
package normalization

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
)

// Rejection reasons. Every rejection wraps ErrRejected.
var (
	ErrRejected       = errors.New("listing rejected")
	ErrMissingAddress = fmt.Errorf("%w: missing address", ErrRejected)
	ErrInvalidAddress = fmt.Errorf("%w: invalid address", ErrRejected)
	ErrUnknownSource  = fmt.Errorf("%w: unknown source", ErrRejected)
)

// RejectReason returns a short metric label for a rejection error.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingAddress):
		return "missing_address"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrUnknownSource):
		return "unknown_source"
	default:
		return "other"
	}
}

// Options configures a Normalizer.
type Options struct {
	// EthUSD converts ETH-denominated values. Zero drops them.
	EthUSD float64
	Logger zerolog.Logger
}

// Normalizer converts RawListings into RecordPatches for MergeListing.
// It is stateless and safe for concurrent use.
type Normalizer struct {
	ethUSD float64
	logger zerolog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{
		ethUSD: opts.EthUSD,
		logger: opts.Logger.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize maps one listing. A rejected listing returns an error wrapping
// ErrRejected and no patch.
func (n *Normalizer) Normalize(listing domain.RawListing) (*domain.RecordPatch, error) {
	if !listing.Source.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, listing.Source)
	}
	m := mappingFor(listing.Source)
	fields := listing.Fields

	raw, ok := n.str(fields, m.address)
	if !ok {
		return nil, ErrMissingAddress
	}
	addr, err := domain.NormalizeAddress(raw)
	if err != nil || domain.IsZeroAddress(addr) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	p := &domain.RecordPatch{Address: addr, Source: listing.Source}

	if v, ok := n.str(fields, m.name); ok {
		p.Name = &v
	}
	if v, ok := n.str(fields, m.symbol); ok {
		p.Symbol = &v
	}
	if v, ok := n.str(fields, m.handle); ok {
		if h := normalizeHandle(v); h != "" {
			p.Handle = &h
		}
	}
	if p.Handle == nil {
		p.Defaults.Handle = DeriveHandle(p.Symbol, p.Name)
	}
	if v, ok := n.str(fields, m.avatar); ok {
		p.AvatarURL = &v
	}

	if listing.Source.IsReputation() {
		if v, ok := n.number(fields, m.karma); ok {
			k := int(math.Round(v))
			p.Karma = &k
		}
	} else {
		p.Defaults.Karma = listing.Source.DefaultKarma()
	}

	if v, ok := lookupAny(fields, m.createdAt.keys); ok {
		if t, ok := ParseTimestamp(v); ok {
			p.Defaults.CreatedAt = &t
		}
	}
	if v, ok := lookupAny(fields, m.tokenizedAt.keys); ok {
		if t, ok := ParseTimestamp(v); ok {
			p.TokenizedAt = &t
		}
	}

	p.Market = n.market(fields, m, listing.Source)
	return p, nil
}

func (n *Normalizer) market(fields map[string]any, m mapping, source domain.Source) domain.MarketData {
	var md domain.MarketData
	md.Price = n.money(fields, m.price, source)
	md.MarketCap = n.money(fields, m.fdv, source)
	if md.MarketCap == nil {
		md.MarketCap = n.money(fields, m.marketCap, source)
	}
	md.Volume24h = n.amount(fields, m.volume, source)
	md.Liquidity = n.amount(fields, m.liquidity, source)
	if v, ok := n.convert(fields, m.change, source); ok {
		md.Change24h = &v
	}
	if v, ok := n.number(fields, m.holders); ok && v >= 0 {
		h := int64(v)
		md.HolderCount = &h
	}
	return md
}

// money reads a price-like value; zero means unknown.
func (n *Normalizer) money(fields map[string]any, f field, source domain.Source) *float64 {
	v, ok := n.convert(fields, f, source)
	if !ok || v <= 0 {
		return nil
	}
	return &v
}

// amount reads a non-negative total such as volume.
func (n *Normalizer) amount(fields map[string]any, f field, source domain.Source) *float64 {
	v, ok := n.convert(fields, f, source)
	if !ok || v < 0 {
		return nil
	}
	return &v
}

// convert reads f and applies its encoding.
func (n *Normalizer) convert(fields map[string]any, f field, source domain.Source) (float64, bool) {
	v, ok := lookupAny(fields, f.keys)
	if !ok {
		return 0, false
	}

	var (
		out float64
		err error
	)
	switch f.enc {
	case encPlain:
		var okf bool
		if out, okf = toFloat(v); !okf {
			err = ErrBadNumber
		}
	case encPercent:
		if s, isString := v.(string); isString {
			out, err = ParsePercent(s)
		} else if num, okf := toFloat(v); okf {
			out = num
		} else {
			err = ErrBadNumber
		}
	case encWei:
		out, err = weiValue(v)
	case encEth, encEthWei:
		if n.ethUSD <= 0 {
			n.logger.Debug().Str("source", source.String()).Strs("keys", f.keys).
				Msg("dropping ETH-denominated value, no ETH/USD rate configured")
			return 0, false
		}
		if f.enc == encEthWei {
			out, err = weiValue(v)
		} else if num, okf := toFloat(v); okf {
			out = num
		} else {
			err = ErrBadNumber
		}
		out *= n.ethUSD
	}
	if err != nil {
		n.logger.Debug().Err(err).Str("source", source.String()).Strs("keys", f.keys).Msg("unparseable market value")
		return 0, false
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, false
	}
	return out, true
}

func weiValue(v any) (float64, error) {
	s, ok := rawString(v)
	if !ok {
		return 0, ErrBadNumber
	}
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		return HexWeiToFloat(s, WeiDecimals)
	}
	return WeiToFloat(s, WeiDecimals)
}

func (n *Normalizer) str(fields map[string]any, f field) (string, bool) {
	v, ok := lookupAny(fields, f.keys)
	if !ok {
		return "", false
	}
	s, ok := rawString(v)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func (n *Normalizer) number(fields map[string]any, f field) (float64, bool) {
	v, ok := lookupAny(fields, f.keys)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// DeriveHandle returns "@" + lowercase(symbol or name), or "" when both are empty.
func DeriveHandle(symbol, name *string) string {
	for _, s := range []*string{symbol, name} {
		if s == nil {
			continue
		}
		if v := strings.ToLower(strings.Join(strings.Fields(*s), "")); v != "" {
			return "@" + v
		}
	}
	return ""
}

// normalizeHandle accepts "name", "@name" or a profile URL.
func normalizeHandle(raw string) string {
	h := strings.TrimSpace(raw)
	h = strings.TrimRight(h, "/")
	if i := strings.LastIndex(h, "/"); i >= 0 {
		h = h[i+1:]
	}
	h = strings.TrimLeft(h, "@")
	if h == "" {
		return ""
	}
	return "@" + h
}

// lookupAny returns the first non-nil value among keys.
func lookupAny(fields map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := lookup(fields, k); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// lookup resolves a dotted path through nested objects.
func lookup(fields map[string]any, path string) (any, bool) {
	if v, ok := fields[path]; ok {
		return v, true
	}
	cur := any(fields)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
