package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clinstream/tlc/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanWholeFile(t *testing.T) {
	path := testutil.WriteFixtureFile(t, testutil.FixtureFile)
	s := New(testutil.QuietLogger(), path, 0, 0)

	var records []*Record

	err := s.Scan(context.Background(), func(rec *Record) error {
		records = append(records, rec)

		return nil
	})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.True(t, strings.HasPrefix(records[0].Text, `<TL id="8412"`))
	assert.True(t, strings.HasSuffix(records[0].Text, "</TL>\n"))
	assert.True(t, strings.HasPrefix(records[1].Text, `<TL id="9177"`))
	assert.Less(t, records[0].Stop, records[1].Start+1)
}

func TestSpansMatchScan(t *testing.T) {
	path := testutil.WriteFixtureFile(t, testutil.FixtureFile)
	s := New(testutil.QuietLogger(), path, 0, 0)

	spans, err := s.Spans(context.Background())
	require.NoError(t, err)
	require.Len(t, spans, 2)

	var records []*Record

	require.NoError(t, s.Scan(context.Background(), func(rec *Record) error {
		records = append(records, rec)

		return nil
	}))

	for i, span := range spans {
		assert.Equal(t, records[i].Start, span.Start)
		assert.Equal(t, records[i].Stop, span.Stop)
	}
}

func TestPartitionEquivalence(t *testing.T) {
	// Splitting the file into two adjacent ranges must yield exactly the
	// records of a whole-file scan, each claimed by exactly one partition,
	// regardless of where the boundary lands.
	path := testutil.WriteFixtureFile(t, testutil.FixtureFile)

	whole, err := New(testutil.QuietLogger(), path, 0, 0).Spans(context.Background())
	require.NoError(t, err)
	require.Len(t, whole, 2)

	info, err := os.Stat(path)
	require.NoError(t, err)

	size := info.Size()

	for cut := int64(1); cut < size; cut += 37 {
		var got []Span

		for _, rng := range [][2]int64{{0, cut}, {cut, size}} {
			spans, err := New(testutil.QuietLogger(), path, rng[0], rng[1]).Spans(context.Background())
			require.NoError(t, err)

			got = append(got, spans...)
		}

		assert.Equal(t, whole, got, "cut at byte %d", cut)
	}
}

func TestRecordExtendsPastPartitionEnd(t *testing.T) {
	path := testutil.WriteFixtureFile(t, testutil.FixtureFile)

	whole, err := New(testutil.QuietLogger(), path, 0, 0).Spans(context.Background())
	require.NoError(t, err)

	// End the partition in the middle of the first record: the record was
	// claimed by its opening tag and must still be read to completion.
	cut := whole[0].Start + (whole[0].Stop-whole[0].Start)/2

	var records []*Record

	s := New(testutil.QuietLogger(), path, 0, cut)
	require.NoError(t, s.Scan(context.Background(), func(rec *Record) error {
		records = append(records, rec)

		return nil
	}))

	require.Len(t, records, 1)
	assert.Equal(t, whole[0].Stop, records[0].Stop)
	assert.True(t, strings.HasSuffix(records[0].Text, "</TL>\n"))
}

func TestCorruptLineSkipped(t *testing.T) {
	content := "<TL id=\"1\" gender=\"F\" wt=\"60\">\n" +
		"<L t=\"100:0\">creatinine=1.0</L>\n" +
		"\xff\xfe garbage \xff\n" +
		"<L t=\"101:0\">creatinine=1.1</L>\n" +
		"</TL>\n"

	path := testutil.WriteFixtureFile(t, content)

	var records []*Record

	s := New(testutil.QuietLogger(), path, 0, 0)
	require.NoError(t, s.Scan(context.Background(), func(rec *Record) error {
		records = append(records, rec)

		return nil
	}))

	require.Len(t, records, 1)
	assert.NotContains(t, records[0].Text, "garbage")
	assert.Contains(t, records[0].Text, "creatinine=1.1")
}

func TestUnterminatedRecordEmitted(t *testing.T) {
	content := "<TL id=\"1\" gender=\"F\" wt=\"60\">\n<L t=\"100:0\">creatinine=1.0</L>\n"
	path := testutil.WriteFixtureFile(t, content)

	var records []*Record

	s := New(testutil.QuietLogger(), path, 0, 0)
	require.NoError(t, s.Scan(context.Background(), func(rec *Record) error {
		records = append(records, rec)

		return nil
	}))

	// The partial record is handed over; the compiler decides it is
	// unreadable.
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].Text, "</TL>")
}

func TestMissingFileIsFatal(t *testing.T) {
	s := New(testutil.QuietLogger(), filepath.Join(t.TempDir(), "nope.tl"), 0, 0)

	err := s.Scan(context.Background(), func(*Record) error { return nil })
	require.ErrorIs(t, err, ErrOpenFile)
}

func TestStopScan(t *testing.T) {
	path := testutil.WriteFixtureFile(t, testutil.FixtureFile)

	count := 0

	s := New(testutil.QuietLogger(), path, 0, 0)
	require.NoError(t, s.Scan(context.Background(), func(*Record) error {
		count++

		return ErrStopScan
	}))
	assert.Equal(t, 1, count)
}
