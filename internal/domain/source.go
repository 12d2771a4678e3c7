package domain

// Source identifies the upstream platform that produced or last touched a
// record's non-price fields.
type Source string

const (
	SourceClanker    Source = "clanker"
	SourceAgent      Source = "agent"
	SourceBankr      Source = "bankr"
	SourceClawnch    Source = "clawnch"
	SourceCreatorBid Source = "creatorbid"
	SourceDoppler    Source = "doppler"
	SourceTrenches   Source = "trenches"
	SourceMoltlaunch Source = "moltlaunch"
	SourceMoltbook   Source = "moltbook"
)

// AllSources lists every known source tag in a stable order.
var AllSources = []Source{
	SourceClanker,
	SourceAgent,
	SourceBankr,
	SourceClawnch,
	SourceCreatorBid,
	SourceDoppler,
	SourceTrenches,
	SourceMoltlaunch,
	SourceMoltbook,
}

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a known tag.
func (s Source) IsValid() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// IsReputation reports whether the source is an agent-reputation platform.
// Only these sources supply karma directly.
func (s Source) IsReputation() bool {
	return s == SourceMoltbook || s == SourceAgent
}

// IsVerifiedPlatform reports whether the source is a launch platform whose
// listings are treated as verified (trust signal karma 100).
func (s Source) IsVerifiedPlatform() bool {
	return s == SourceClawnch || s == SourceCreatorBid || s == SourceMoltlaunch
}

// DefaultKarma returns the karma a record gets on creation when the source
// does not supply one.
func (s Source) DefaultKarma() int {
	if s.IsVerifiedPlatform() {
		return VerifiedKarma
	}
	return 0
}

// VerifiedKarma is the trust-signal karma for verified launch platforms.
const VerifiedKarma = 100

// VerifiedSources returns the verified launch platforms.
func VerifiedSources() []Source {
	var out []Source
	for _, s := range AllSources {
		if s.IsVerifiedPlatform() {
			out = append(out, s)
		}
	}
	return out
}
