package ingest

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/shallowclouds/unitsdb/backend"
	"github.com/shallowclouds/unitsdb/codec"
	"github.com/shallowclouds/unitsdb/metric"
)

// fakeBackend records every payload it is asked to send.
type fakeBackend struct {
	kind     backend.Kind
	payloads []string
	fail     bool
}

func (f *fakeBackend) Kind() backend.Kind {
	return f.kind
}

func (f *fakeBackend) Send(payload string) backend.SendResult {
	f.payloads = append(f.payloads, payload)
	if f.fail {
		return backend.SendResult{
			StatusCode: 400,
			Elapsed:    time.Millisecond,
			Err:        errors.New("backend returned status 400"),
		}
	}
	return backend.SendResult{
		Success:    true,
		StatusCode: 204,
		Elapsed:    time.Millisecond,
	}
}

func testPoint(ts int64, field string, value interface{}) metric.Point {
	return metric.Point{
		Timestamp: ts,
		Fields:    map[string]interface{}{field: value},
	}
}

func TestNewIngester(t *testing.T) {
	_, err := NewIngester(nil, 0)
	require.Error(t, err)

	_, err = NewIngester(&fakeBackend{kind: backend.Influx}, -1)
	require.Error(t, err)

	ing, err := NewIngester(&fakeBackend{kind: backend.Influx}, 0)
	require.NoError(t, err)
	require.Equal(t, 0, ing.Len())
}

func TestAppendValidation(t *testing.T) {
	ing, err := NewIngester(&fakeBackend{kind: backend.Influx}, 0)
	require.NoError(t, err)

	err = ing.Append(metric.Point{Timestamp: 1585934985000})
	require.Error(t, err)
	require.True(t, errors.Is(err, metric.ErrValidation))
	require.Equal(t, 0, ing.Len())

	err = ing.Append(metric.Point{
		Timestamp: 1585934985000,
		Fields:    map[string]interface{}{"bad": []int{1, 2}},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, metric.ErrValidation))
	require.Equal(t, 0, ing.Len())
}

func TestAppendDefaultTimestamp(t *testing.T) {
	ing, err := NewIngester(&fakeBackend{kind: backend.Influx}, 0)
	require.NoError(t, err)

	before := time.Now().UnixNano() / int64(time.Millisecond)
	require.NoError(t, ing.Append(metric.Point{Fields: map[string]interface{}{"a": 1}}))
	after := time.Now().UnixNano() / int64(time.Millisecond)

	fields := strings.Fields(strings.TrimSuffix(ing.Payload(), "\n"))
	require.Len(t, fields, 3)
	nanos, err := strconv.ParseInt(fields[2], 10, 64)
	require.NoError(t, err)
	millis := nanos / 1000000
	require.True(t, millis >= before && millis <= after,
		"stamped %d outside append window [%d, %d]", millis, before, after)
}

func TestPayloadMatchesCodec(t *testing.T) {
	points := []metric.Point{
		{
			Timestamp:   1585934896000,
			Measurement: "mes",
			Tags:        map[string]string{"tag1": "value1"},
			Fields:      map[string]interface{}{"field1": 43.4, "field2": "value"},
		},
		testPoint(1585934897000, "field3", 7),
	}

	for _, kind := range []backend.Kind{backend.Influx, backend.Warp10} {
		ing, err := NewIngester(&fakeBackend{kind: kind}, 0)
		require.NoError(t, err)
		for _, p := range points {
			require.NoError(t, ing.Append(p))
		}
		require.Equal(t, codec.ForKind(kind)(points), ing.Payload())
		require.Equal(t, 2, ing.Len())
	}
}

func TestManualCommit(t *testing.T) {
	fake := &fakeBackend{kind: backend.Influx}
	ing, err := NewIngester(fake, 0)
	require.NoError(t, err)

	require.NoError(t, ing.Append(testPoint(1585934985000, "name", 42)))
	report := ing.Commit()

	require.Len(t, fake.payloads, 1)
	require.Equal(t, "data name=42i 1585934985000000000\n", fake.payloads[0])
	require.Equal(t, 1, report.Attempted)
	require.Equal(t, 1, report.Points)
	require.Equal(t, 1, report.Values)
	require.NoError(t, report.Err)
	require.True(t, report.Throughput > 0)
	require.Equal(t, 0, ing.Len())

	stats := ing.Stats()
	require.Equal(t, Stats{
		Commits:   1,
		Successes: 1,
		Points:    1,
		Values:    1,
		Elapsed:   time.Millisecond,
	}, stats)
}

func TestCommitEmptyBuffer(t *testing.T) {
	fake := &fakeBackend{kind: backend.Influx}
	ing, err := NewIngester(fake, 0)
	require.NoError(t, err)

	report := ing.Commit()
	require.Equal(t, CommitReport{}, report)
	require.Empty(t, fake.payloads)
	require.Equal(t, Stats{}, ing.Stats())
}

func TestBatchAutoCommit(t *testing.T) {
	fake := &fakeBackend{kind: backend.Influx}
	ing, err := NewIngester(fake, 10)
	require.NoError(t, err)

	for i := 0; i < 26; i++ {
		require.NoError(t, ing.Append(testPoint(1585934895000+int64(i)*1000, "key", i)))
	}
	require.Len(t, fake.payloads, 2)
	require.Equal(t, 6, ing.Len())

	report := ing.Commit()
	require.Len(t, fake.payloads, 3)
	require.Equal(t, 6, report.Attempted)
	require.Equal(t, 6, report.Points)

	require.Equal(t, 10, strings.Count(fake.payloads[0], "\n"))
	require.Equal(t, 10, strings.Count(fake.payloads[1], "\n"))
	require.Equal(t, 6, strings.Count(fake.payloads[2], "\n"))

	stats := ing.Stats()
	require.Equal(t, 3, stats.Commits)
	require.Equal(t, 3, stats.Successes)
	require.Equal(t, 26, stats.Points)
	require.Equal(t, 26, stats.Values)
}

func TestBatchRemainder(t *testing.T) {
	cases := []struct {
		length, batch, remaining int
	}{
		{9, 3, 0},
		{9, 4, 1},
		{9, 10, 9},
	}
	for _, c := range cases {
		fake := &fakeBackend{kind: backend.Warp10}
		ing, err := NewIngester(fake, c.batch)
		require.NoError(t, err)
		for i := 1; i <= c.length; i++ {
			require.NoError(t, ing.Append(testPoint(1585934895000+int64(i)*10000, "key", i)))
		}
		require.Equal(t, c.remaining, ing.Len())
	}
}

func TestCommitFailureClearsBuffer(t *testing.T) {
	fake := &fakeBackend{kind: backend.Influx, fail: true}
	ing, err := NewIngester(fake, 0)
	require.NoError(t, err)

	require.NoError(t, ing.Append(testPoint(1585934985000, "name", 42)))
	report := ing.Commit()

	require.Equal(t, 1, report.Attempted)
	require.Equal(t, 0, report.Points)
	require.Error(t, report.Err)
	require.Equal(t, 0, ing.Len())

	stats := ing.Stats()
	require.Equal(t, 1, stats.Commits)
	require.Equal(t, 0, stats.Successes)
	require.Equal(t, 0, stats.Points)
	require.Equal(t, 0, stats.Values)
	require.Equal(t, time.Millisecond, stats.Elapsed)
}

func TestBufferOwnsCopies(t *testing.T) {
	ing, err := NewIngester(&fakeBackend{kind: backend.Influx}, 0)
	require.NoError(t, err)

	tags := map[string]string{"tag1": "value1"}
	fields := map[string]interface{}{"name": 42}
	require.NoError(t, ing.Append(metric.Point{
		Timestamp:   1585934985000,
		Measurement: "mes",
		Tags:        tags,
		Fields:      fields,
	}))
	payload := ing.Payload()

	tags["tag1"] = "changed"
	fields["name"] = 7
	require.Equal(t, payload, ing.Payload())
}

func TestReport(t *testing.T) {
	fake := &fakeBackend{kind: backend.Influx}
	ing, err := NewIngester(fake, 0)
	require.NoError(t, err)

	require.Equal(t, "0 commits (0 successes), 0 points, 0 values", ing.Report())

	require.NoError(t, ing.Append(testPoint(1585934985000, "a", 1)))
	require.NoError(t, ing.Append(testPoint(1585934986000, "b", 2)))
	ing.Commit()

	report := ing.Report()
	require.Contains(t, report, "1 commits (1 successes), 2 points, 2 values")
	require.Contains(t, report, "values/s")
}
