package classify

import "github.com/jonathan/jobserp-explorer/internal/types"

// providerEntry is one row of a provider table. Tables are ordered slices,
// not maps: the cascade is first-match-wins in declaration order, and
// changing any entry or score changes selection behavior downstream.
type providerEntry struct {
	Substring string
	Label     types.Label
	Score     float64
}

// atsProviders lists known Applicant Tracking System hosts. Regional TLD
// variants (personio.com vs personio.de) are separate entries on purpose.
var atsProviders = []providerEntry{
	{"greenhouse.io", types.LabelATS, 3},
	{"lever.co", types.LabelATS, 3},
	{"workable.com", types.LabelATS, 3},
	{"breezy.hr", types.LabelATS, 2},
	{"personio.com", types.LabelATS, 2},
	{"personio.de", types.LabelATS, 2},
	{"comeet.com", types.LabelATS, 2},
	{"careers-page.com", types.LabelATS, 1},
	{"freshteam.com", types.LabelATS, 1},
}

// aggregators lists job boards that mirror postings, tiered by signal
// quality: T1 major general boards, T2 niche/regional, T3 low-signal.
var aggregators = []providerEntry{
	{"linkedin.com", types.LabelAggregatorT1, 2},
	{"indeed.com", types.LabelAggregatorT1, 2},
	{"glassdoor.com", types.LabelAggregatorT1, 2},
	{"ziprecruiter.com", types.LabelAggregatorT1, 2},

	{"wellfound.com", types.LabelAggregatorT2, 1},
	{"remoterocketship", types.LabelAggregatorT2, 1},
	{"builtin.com", types.LabelAggregatorT2, 1},
	{"stepstone.de", types.LabelAggregatorT2, 1},
	{"remotive.com", types.LabelAggregatorT2, 1},
	{"weworkremotely.com", types.LabelAggregatorT2, 1},

	{"reddit.com", types.LabelAggregatorT3, 0},
	{"remoteok.com", types.LabelAggregatorT3, 0},
	{"dailyremote.com", types.LabelAggregatorT3, 0},
	{"himalayas.app", types.LabelAggregatorT3, 0},
	{"grabjobs.co", types.LabelAggregatorT3, 0},
	{"jobgether.com", types.LabelAggregatorT3, 0},
	{"rubyonremote.com", types.LabelAggregatorT3, 0},
	{"gohire.io", types.LabelAggregatorT3, 0},
	{"jobot.com", types.LabelAggregatorT3, 0},
	{"virtualvocations.com", types.LabelAggregatorT3, 0},
	{"fullstack.com", types.LabelAggregatorT3, 0},
	{"dice.com", types.LabelAggregatorT3, 0},
	{"otta.com", types.LabelAggregatorT3, 0},
	{"lensa.com", types.LabelAggregatorT3, 0},
	{"uplers.com", types.LabelAggregatorT3, 0},
	{"levels.fyi", types.LabelAggregatorT3, 0},
	{"cherry.vc", types.LabelAggregatorT3, 0},
	{"datacareer.de", types.LabelAggregatorT3, 0},
	{"theorg.com", types.LabelAggregatorT3, 0},
}
