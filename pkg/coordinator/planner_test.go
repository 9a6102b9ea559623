package coordinator

import (
	"context"
	"strings"
	"testing"

	"github.com/clinstream/tlc/internal/testutil"
	"github.com/clinstream/tlc/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanEmpty(t *testing.T) {
	assert.Nil(t, Plan(nil, 4))
}

func TestPlanSinglePartition(t *testing.T) {
	spans := []scanner.Span{{Start: 10, Stop: 50}, {Start: 50, Stop: 120}}

	got := Plan(spans, 1)
	require.Len(t, got, 1)
	assert.Equal(t, scanner.Span{Start: 10, Stop: 120}, got[0])
}

func TestPlanBoundariesOnRecordStarts(t *testing.T) {
	spans := []scanner.Span{
		{Start: 0, Stop: 100},
		{Start: 100, Stop: 230},
		{Start: 230, Stop: 300},
		{Start: 300, Stop: 390},
		{Start: 390, Stop: 500},
	}

	got := Plan(spans, 3)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 3)

	// Partitions are contiguous and cover the full record range.
	assert.Equal(t, int64(0), got[0].Start)
	assert.Equal(t, int64(500), got[len(got)-1].Stop)

	starts := make(map[int64]bool, len(spans))
	for _, s := range spans {
		starts[s.Start] = true
	}

	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1].Stop, got[i].Start, "partitions must be contiguous")
		assert.True(t, starts[got[i].Start], "boundary must land on a record start")
	}

	// Every record's opening offset falls in exactly one partition.
	for _, s := range spans {
		claims := 0

		for _, p := range got {
			if s.Start >= p.Start && s.Start < p.Stop {
				claims++
			}
		}

		assert.Equal(t, 1, claims, "record at %d", s.Start)
	}
}

func TestPlanOversizedRecord(t *testing.T) {
	// One record dwarfs the rest; it must not absorb every partition.
	spans := []scanner.Span{
		{Start: 0, Stop: 10},
		{Start: 10, Stop: 910},
		{Start: 910, Stop: 920},
		{Start: 920, Stop: 930},
	}

	got := Plan(spans, 3)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, int64(930), got[len(got)-1].Stop)
}

func TestPlanFileMatchesScan(t *testing.T) {
	path := testutil.WriteFixtureFile(t, testutil.FixtureFile)
	log := testutil.QuietLogger()

	parts, err := PlanFile(context.Background(), log, path, 2)
	require.NoError(t, err)
	require.NotEmpty(t, parts)

	// Scanning the planned partitions yields every record exactly once.
	var ids []string

	for _, p := range parts {
		err := scanner.New(log, path, p.Start, p.Stop).Scan(context.Background(), func(rec *scanner.Record) error {
			head := rec.Text[:strings.IndexByte(rec.Text, '\n')]
			ids = append(ids, head)

			return nil
		})
		require.NoError(t, err)
	}

	require.Len(t, ids, 2)
	assert.Contains(t, ids[0], `id="8412"`)
	assert.Contains(t, ids[1], `id="9177"`)
}
