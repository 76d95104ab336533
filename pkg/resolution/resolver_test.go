package resolution

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
)

func newResolver(t *testing.T, weighting matching.Weighting) *Resolver {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	cfg := matching.DefaultConfig()
	cfg.Weighting = weighting
	engine, err := matching.NewEngine(logger, cfg)
	require.NoError(t, err)
	return NewResolver(engine, logger)
}

func letter(name, address, locality, region, postal, country string) models.IncomingRecord {
	return models.NewWarningLetterRecord("", models.WarningLetter{
		CompanyName: name,
		Address:     address,
		Locality:    locality,
		Region:      region,
		PostalCode:  postal,
		Country:     country,
	})
}

var weightings = []matching.Weighting{matching.WeightingFiveField, matching.WeightingNamePlusBonus}

func TestResolver_Scenarios(t *testing.T) {
	for _, weighting := range weightings {
		t.Run(string(weighting), func(t *testing.T) {
			ctx := context.Background()
			resolver := newResolver(t, weighting)
			reg := registry.New()

			// new organization into an empty registry
			first, err := resolver.Resolve(ctx, letter("ABC Pharma Inc.", "123 Main St", "New York", "NY", "10001", "USA"), reg)
			require.NoError(t, err)
			assert.False(t, first.Matched)
			assert.NotEmpty(t, first.OrganizationID)
			assert.Empty(t, first.CandidateID)
			assert.Equal(t, 1, reg.Len())

			org, ok := reg.Lookup(first.OrganizationID)
			require.True(t, ok)
			assert.Equal(t, "abc pharma inc", org.Name)

			// suffix variant reuses the id
			second, err := resolver.Resolve(ctx, letter("ABC Pharma", "123 Main St", "New York", "NY", "10001", "USA"), reg)
			require.NoError(t, err)
			assert.True(t, second.Matched)
			assert.Equal(t, first.OrganizationID, second.OrganizationID)
			assert.GreaterOrEqual(t, second.NameScore, 80.0)
			assert.GreaterOrEqual(t, second.OverallScore, 85.0)
			assert.Equal(t, 1, reg.Len())

			// different organization without a region
			third, err := resolver.Resolve(ctx, letter("XYZ Biotech", "456 Elm St", "San Francisco", "", "94107", "USA"), reg)
			require.NoError(t, err)
			assert.False(t, third.Matched)
			assert.Less(t, third.NameScore, 80.0)
			assert.NotEqual(t, first.OrganizationID, third.OrganizationID)
			assert.Equal(t, 2, reg.Len())
		})
	}
}

func TestResolver_SameBatchDuplicatesShareAnID(t *testing.T) {
	for _, weighting := range weightings {
		t.Run(string(weighting), func(t *testing.T) {
			resolver := newResolver(t, weighting)
			reg := registry.New()
			batch := []models.IncomingRecord{
				letter("Delta Chem", "9 Oak Ave", "Boston", "MA", "02110", "USA"),
				letter("DELTA CHEM.", " 9 Oak Ave ", "boston", "ma", "02110", "usa"),
			}

			linked, err := resolver.ResolveBatch(context.Background(), batch, reg)
			require.NoError(t, err)
			require.Len(t, linked, 2)
			assert.Equal(t, linked[0].OrganizationID, linked[1].OrganizationID)
			assert.False(t, linked[0].Matched)
			assert.True(t, linked[1].Matched)
			assert.Equal(t, 1, reg.Len())
		})
	}
}

func TestResolver_ComplianceReportCarriesRefs(t *testing.T) {
	ctx := context.Background()
	resolver := newResolver(t, matching.WeightingFiveField)
	reg := registry.New()

	wl, err := resolver.Resolve(ctx, letter("Gamma Labs GmbH", "Hauptstrasse 5", "Berlin", "", "10115", "Germany"), reg)
	require.NoError(t, err)

	ncr := models.NewComplianceReportRecord("ncr-7", models.ComplianceReport{
		SiteName:                  "Gamma Labs",
		SiteAddress:               "Hauptstrasse 5",
		City:                      "Berlin",
		Postcode:                  "10115",
		Country:                   "Germany",
		OMSOrganisationIdentifier: "ORG-100",
		OMSLocationIdentifier:     "LOC-200",
	})
	res, err := resolver.Resolve(ctx, ncr, reg)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, wl.OrganizationID, res.OrganizationID)

	org, _ := reg.Lookup(res.OrganizationID)
	assert.Equal(t, models.ExternalRefs{OrgRef: "ORG-100", LocationRef: "LOC-200"}, org.Refs())

	// a conflicting ref keeps the link and the existing ref
	conflicting := ncr
	report := *ncr.ComplianceReport
	report.OMSOrganisationIdentifier = "ORG-999"
	conflicting.ComplianceReport = &report
	res, err = resolver.Resolve(ctx, conflicting, reg)
	require.NoError(t, err)
	assert.Equal(t, wl.OrganizationID, res.OrganizationID)
	org, _ = reg.Lookup(res.OrganizationID)
	assert.Equal(t, "ORG-100", org.Refs().OrgRef)
}

func TestResolver_Monotonic(t *testing.T) {
	resolver := newResolver(t, matching.WeightingFiveField)
	reg := registry.New()

	for _, record := range fakeBatch(11, 150) {
		before := reg.Len()
		res, err := resolver.Resolve(context.Background(), record, reg)
		require.NoError(t, err)
		if res.Matched {
			assert.Equal(t, before, reg.Len())
		} else {
			assert.Equal(t, before+1, reg.Len())
		}
	}
}

func TestResolver_DeterministicPartition(t *testing.T) {
	for _, weighting := range weightings {
		t.Run(string(weighting), func(t *testing.T) {
			batch := fakeBatch(3, 120)

			run := func() [][]string {
				linked, err := newResolver(t, weighting).ResolveBatch(context.Background(), batch, registry.New())
				require.NoError(t, err)
				return partition(linked)
			}

			first, second := run(), run()
			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("partition differs between runs (-first +second):\n%s", diff)
			}
		})
	}
}

func TestResolver_ParallelSearchSamePartition(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	batch := fakeBatch(5, 200)

	build := func(workers int) [][]string {
		cfg := matching.DefaultConfig()
		cfg.SearchWorkers = workers
		cfg.ParallelThreshold = 1
		engine, err := matching.NewEngine(logger, cfg)
		require.NoError(t, err)
		linked, err := NewResolver(engine, logger).ResolveBatch(context.Background(), batch, registry.New())
		require.NoError(t, err)
		return partition(linked)
	}

	assert.Empty(t, cmp.Diff(build(1), build(6)))
}

func TestResolver_BatchErrors(t *testing.T) {
	resolver := newResolver(t, matching.WeightingFiveField)

	t.Run("nil batch fails fast", func(t *testing.T) {
		reg := registry.New()
		_, err := resolver.ResolveBatch(context.Background(), nil, reg)
		assert.ErrorIs(t, err, ErrNilBatch)
		assert.Zero(t, reg.Len())
	})

	t.Run("empty batch is fine", func(t *testing.T) {
		linked, err := resolver.ResolveBatch(context.Background(), []models.IncomingRecord{}, registry.New())
		require.NoError(t, err)
		assert.Empty(t, linked)
	})

	t.Run("cancelled context leaves a valid partial registry", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		reg := registry.New()
		linked, err := resolver.ResolveBatch(ctx, fakeBatch(1, 10), reg)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, linked)
		assert.Zero(t, reg.Len())
	})

	t.Run("unknown source stops the batch", func(t *testing.T) {
		reg := registry.New()
		batch := []models.IncomingRecord{
			letter("A Corp", "", "", "", "", ""),
			{Source: "html", RecordID: "bad"},
		}
		linked, err := resolver.ResolveBatch(context.Background(), batch, reg)
		assert.ErrorIs(t, err, models.ErrUnknownSource)
		assert.Len(t, linked, 1)
		assert.Equal(t, 1, reg.Len())
	})
}

func TestResolver_MissingFieldsNeverFail(t *testing.T) {
	resolver := newResolver(t, matching.WeightingFiveField)
	reg := registry.New()

	for i := 0; i < 3; i++ {
		res, err := resolver.Resolve(context.Background(), letter("", "", "", "", "", ""), reg)
		require.NoError(t, err)
		assert.False(t, res.Matched, "an empty record never clears the overall floor")
	}
	assert.Equal(t, 3, reg.Len())
}

func TestResolver_RecordIDDefaultsToFingerprint(t *testing.T) {
	resolver := newResolver(t, matching.WeightingFiveField)
	linked, err := resolver.ResolveBatch(context.Background(), []models.IncomingRecord{letter("A Corp", "", "", "", "", "")}, registry.New())
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, fingerprint.ForRecord(models.SourceWarningLetter, linked[0].Fields), linked[0].RecordID)
}

// fakeBatch builds a reproducible mix of fresh organizations and noisy repeats.
func fakeBatch(seed int64, n int) []models.IncomingRecord {
	faker := gofakeit.New(seed)
	var seen []models.WarningLetter
	out := make([]models.IncomingRecord, 0, n)
	for i := 0; i < n; i++ {
		if len(seen) > 0 && faker.Bool() {
			prev := seen[faker.Number(0, len(seen)-1)]
			prev.CompanyName = prev.CompanyName + " Inc."
			out = append(out, models.NewWarningLetterRecord("", prev))
			continue
		}
		addr := faker.Address()
		w := models.WarningLetter{
			CompanyName: faker.Company(),
			Address:     addr.Street,
			Locality:    addr.City,
			Region:      addr.State,
			PostalCode:  addr.Zip,
			Country:     addr.Country,
		}
		seen = append(seen, w)
		out = append(out, models.NewWarningLetterRecord("", w))
	}
	return out
}

// partition groups record positions by organization, independent of id values.
func partition(linked []models.LinkedRecord) [][]string {
	groups := map[string][]string{}
	for i, l := range linked {
		groups[l.OrganizationID] = append(groups[l.OrganizationID], fmt.Sprintf("%04d", i))
	}
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

type capturedLogs struct {
	mu       sync.Mutex
	messages []ectologger.EctoLogMessage
}

func (c *capturedLogs) log(msg ectologger.EctoLogMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *capturedLogs) at(level string) []ectologger.EctoLogMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ectologger.EctoLogMessage
	for _, m := range c.messages {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

func TestResolver_AmbiguousDecisionIsAudited(t *testing.T) {
	logs := &capturedLogs{}
	logger := ectologger.NewEctoLogger(logs.log)
	engine, err := matching.NewEngine(logger, matching.DefaultConfig())
	require.NoError(t, err)
	resolver := NewResolver(engine, logger)

	ctx := context.Background()
	reg := registry.New()
	seed, err := resolver.Resolve(ctx, letter("ABC Pharma Inc.", "123 Main St", "New Yorks", "NY", "10001", "USA"), reg)
	require.NoError(t, err)

	counter := metrics.AmbiguousMatchesTotal.WithLabelValues(string(models.SourceWarningLetter), matching.ReasonOverallFloor)
	before := testutil.ToFloat64(counter)

	// identical name and address, one typo in the city, no postcode or country:
	// 40 + 30 + 7.5 x 8/9 + 7.5 = 84.17, just under the overall gate
	links, err := resolver.ResolveBatch(ctx, []models.IncomingRecord{
		letter("ABC Pharma Inc.", "123 Main St", "New York", "NY", "", ""),
	}, reg)
	require.NoError(t, err)
	require.Len(t, links, 1)

	link := links[0]
	assert.False(t, link.Matched)
	assert.True(t, link.Ambiguous)
	assert.Equal(t, 100.0, link.NameScore)
	assert.InDelta(t, 84.17, link.OverallScore, 0.01)
	assert.Equal(t, 2, reg.Len(), "a rejected near miss still creates an organization")

	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	warns := logs.at("warn")
	require.Len(t, warns, 1)
	assert.Equal(t, "Ambiguous match decision", warns[0].Message)
	assert.Equal(t, seed.OrganizationID, warns[0].Fields["candidate_id"])
	assert.Equal(t, matching.ReasonOverallFloor, warns[0].Fields["reason"])
}

func TestResolver_SparseIdenticalRecords(t *testing.T) {
	report := func(city, postcode string) models.IncomingRecord {
		return models.NewComplianceReportRecord("", models.ComplianceReport{
			SiteName:    "Gamma Labs GmbH",
			SiteAddress: "Industriestrasse 7",
			City:        city,
			Postcode:    postcode,
			Country:     "Germany",
		})
	}

	t.Run("complete records match", func(t *testing.T) {
		for _, weighting := range weightings {
			reg := registry.New()
			links, err := newResolver(t, weighting).ResolveBatch(context.Background(), []models.IncomingRecord{
				report("Berlin", "10115"), report("Berlin", "10115"),
			}, reg)
			require.NoError(t, err)
			assert.True(t, links[1].Matched, weighting)
			assert.Equal(t, 1, reg.Len(), weighting)
		}
	})

	// Absent fields contribute zero, so identical records without a city or
	// postcode cannot clear the overall gate and split.
	t.Run("records without city and postcode split", func(t *testing.T) {
		expected := map[matching.Weighting]float64{
			matching.WeightingFiveField:     77.5,
			matching.WeightingNamePlusBonus: 80,
		}
		for weighting, overall := range expected {
			reg := registry.New()
			links, err := newResolver(t, weighting).ResolveBatch(context.Background(), []models.IncomingRecord{
				report("", ""), report("", ""),
			}, reg)
			require.NoError(t, err)
			assert.False(t, links[1].Matched, weighting)
			assert.Equal(t, 100.0, links[1].NameScore, weighting)
			assert.InDelta(t, overall, links[1].OverallScore, 0.001, weighting)
			assert.Equal(t, 2, reg.Len(), weighting)
		}
	})
}
