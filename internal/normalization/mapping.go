package normalization

import "launchpad-index/internal/domain"

// encoding is the unit convention of an upstream numeric field.
type encoding int

const (
	encPlain   encoding = iota // already USD (or a plain count)
	encWei                     // USD as 18-decimal fixed point, decimal string or number
	encEth                     // ETH as a plain float
	encEthWei                  // ETH as 18-decimal fixed point, decimal or 0x-hex
	encPercent                 // percent, optionally with a % suffix
)

// field lists candidate keys (dotted paths allowed) tried in order.
type field struct {
	keys []string
	enc  encoding
}

func keys(k ...string) field { return field{keys: k} }

func as(enc encoding, k ...string) field { return field{keys: k, enc: enc} }

// mapping tells the normalizer where one source keeps each canonical field.
//
// Market cap is fully diluted: fdv is read first and marketCap is the
// fallback for sources that only publish one figure.
type mapping struct {
	address     field
	name        field
	symbol      field
	handle      field
	avatar      field
	karma       field
	createdAt   field
	tokenizedAt field

	price     field
	fdv       field
	marketCap field
	volume    field
	liquidity field
	change    field
	holders   field
}

var genericMapping = mapping{
	address:     keys("tokenAddress", "address", "contract_address", "token_address", "wallet", "walletAddress"),
	name:        keys("name", "displayName", "display_name"),
	symbol:      keys("symbol", "ticker"),
	handle:      keys("handle", "username", "twitterHandle"),
	avatar:      keys("avatarUrl", "avatar_url", "image", "imageUrl"),
	karma:       keys("karma"),
	createdAt:   keys("createdAt", "created_at"),
	tokenizedAt: keys("tokenizedAt", "tokenized_at"),
	price:       keys("priceUsd", "price"),
	fdv:         keys("fdv"),
	marketCap:   keys("marketCap", "market_cap"),
	volume:      keys("volume24h", "volume_24h"),
	liquidity:   keys("liquidity", "liquidityUsd"),
	change:      as(encPercent, "change24h", "priceChange24h"),
	holders:     keys("holderCount", "holders"),
}

var mappings = map[domain.Source]mapping{
	domain.SourceClanker: {
		address:   keys("contract_address"),
		name:      keys("name"),
		symbol:    keys("symbol"),
		avatar:    keys("img_url"),
		createdAt: keys("created_at", "deployed_at"),
		price:     keys("price_usd"),
		marketCap: keys("market_cap"),
		volume:    keys("volume_24h"),
		change:    as(encPercent, "price_change_24h"),
	},
	domain.SourceClawnch: {
		address:   keys("address", "tokenAddress"),
		name:      keys("name"),
		symbol:    keys("symbol"),
		handle:    keys("agentHandle", "agent.handle"),
		avatar:    keys("image", "imageUrl"),
		createdAt: keys("createdAt", "launchedAt"),
		price:     keys("priceUsd"),
		marketCap: as(encWei, "marketCap"),
		volume:    keys("volume24h"),
		change:    as(encPercent, "priceChange24h"),
	},
	domain.SourceCreatorBid: {
		address:     keys("agentKeyAddress"),
		name:        keys("name", "agentName"),
		symbol:      keys("ticker", "symbol"),
		handle:      keys("twitterHandle"),
		avatar:      keys("profilePicture"),
		createdAt:   keys("createdAt"),
		tokenizedAt: keys("tokenizedAt"),
		price:       keys("priceUsd"),
		marketCap:   keys("marketCap"),
		volume:      keys("volume24h"),
		holders:     keys("holders"),
	},
	domain.SourceDoppler: {
		address:   keys("address"),
		name:      keys("name"),
		symbol:    keys("symbol"),
		avatar:    keys("image"),
		createdAt: keys("firstSeenAt"),
		marketCap: as(encWei, "pool.marketCapUsd"),
		volume:    as(encWei, "volumeUsd", "pool.dailyVolume"),
		change:    as(encPercent, "pool.percentDayChange"),
	},
	domain.SourceTrenches: {
		address:   keys("token_address", "tokenAddress"),
		name:      keys("name"),
		symbol:    keys("symbol"),
		handle:    keys("creator_handle"),
		avatar:    keys("image_url"),
		createdAt: keys("created_at"),
		marketCap: as(encEthWei, "market_cap_eth"),
		volume:    as(encEthWei, "volume_24h_eth"),
		change:    as(encPercent, "price_change_24h"),
	},
	domain.SourceMoltlaunch: {
		address:   keys("tokenAddress"),
		name:      keys("name"),
		symbol:    keys("symbol"),
		handle:    keys("agentHandle"),
		avatar:    keys("imageUrl"),
		createdAt: keys("launchedAt", "createdAt"),
		price:     keys("priceUsd"),
		fdv:       keys("fdvUsd"),
		marketCap: keys("marketCapUsd"),
		volume:    keys("volume24hUsd"),
		liquidity: keys("liquidityUsd"),
	},
	domain.SourceMoltbook: {
		address:   keys("wallet", "address", "walletAddress"),
		name:      keys("name", "display_name", "displayName"),
		handle:    keys("handle", "username"),
		avatar:    keys("avatar_url", "avatarUrl"),
		karma:     keys("karma"),
		createdAt: keys("created_at", "createdAt"),
	},
	domain.SourceAgent: genericMapping,
	domain.SourceBankr: genericMapping,
}

func mappingFor(source domain.Source) mapping {
	if m, ok := mappings[source]; ok {
		return m
	}
	return genericMapping
}
