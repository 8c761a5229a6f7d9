package jsonstream

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, p *Parser, chunks ...string) ([]string, []error) {
	t.Helper()
	var (
		vals []string
		errs []error
	)
	for _, c := range chunks {
		out, err := p.Feed([]byte(c))
		for _, v := range out {
			vals = append(vals, string(v))
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return vals, errs
}

func TestFeedSingleValue(t *testing.T) {
	p := New()
	vals, errs := feedAll(t, p, `{"id":1,"result":"0x1bc16d674ec80000"}`)
	require.Empty(t, errs)
	require.Equal(t, []string{`{"id":1,"result":"0x1bc16d674ec80000"}`}, vals)
	assert.Zero(t, p.Buffered())
}

func TestFeedEverySplitPoint(t *testing.T) {
	const doc = `{"id":7,"result":{"s":"a\"b\\c}{][","n":[1,2,{"x":null}]}}`

	for i := 1; i < len(doc); i++ {
		p := New()
		vals, errs := feedAll(t, p, doc[:i], doc[i:])
		require.Empty(t, errs, "split at %d", i)
		require.Equal(t, []string{doc}, vals, "split at %d", i)
	}

	// по одному байту
	p := New()
	chunks := make([]string, 0, len(doc))
	for i := range len(doc) {
		chunks = append(chunks, doc[i:i+1])
	}
	vals, errs := feedAll(t, p, chunks...)
	require.Empty(t, errs)
	require.Equal(t, []string{doc}, vals)
}

func TestFeedConcatenatedValues(t *testing.T) {
	p := New()
	vals, errs := feedAll(t, p, `{"id":1,"result":1}{"id":2,"result":[2]}`+"\n"+`[3]`)
	require.Empty(t, errs)
	assert.Equal(t, []string{`{"id":1,"result":1}`, `{"id":2,"result":[2]}`, `[3]`}, vals)
}

func TestFeedMalformedDoesNotBlock(t *testing.T) {
	p := New()
	out, err := p.Feed([]byte(`{"a":1}{"b":}{"c":3}`))
	require.Len(t, out, 2)
	assert.JSONEq(t, `{"a":1}`, string(out[0]))
	assert.JSONEq(t, `{"c":3}`, string(out[1]))

	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, int64(7), se.Offset)
	assert.Equal(t, `{"b":}`, se.Fragment)

	// буфер не рассинхронизирован
	vals, errs := feedAll(t, p, `{"d":`, `4}`)
	require.Empty(t, errs)
	assert.Equal(t, []string{`{"d":4}`}, vals)
}

func TestFeedStrayCloser(t *testing.T) {
	p := New()
	out, err := p.Feed([]byte(`] {"a":1}`))
	require.Error(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, `{"a":1}`, string(out[0]))
}

func TestFeedWhitespaceIsNoop(t *testing.T) {
	p := New()
	for _, c := range []string{"", " ", "\n\t\r  "} {
		out, err := p.Feed([]byte(c))
		require.NoError(t, err)
		require.Empty(t, out)
	}
	assert.Zero(t, p.Buffered())
}

func TestFeedScalars(t *testing.T) {
	p := New()
	vals, errs := feedAll(t, p, `12`, `34 true "x y" null`)
	require.Empty(t, errs)
	assert.Equal(t, []string{`1234`, `true`, `"x y"`}, vals)
	// null ещё не закрыт разделителем
	assert.Equal(t, len(`null`), p.Buffered())

	vals, errs = feedAll(t, p, "\n")
	require.Empty(t, errs)
	assert.Equal(t, []string{`null`}, vals)

	vals, errs = feedAll(t, p, `nul{"a":1}`)
	require.Len(t, errs, 1)
	assert.Equal(t, []string{`{"a":1}`}, vals)
}

func TestBufferHoldsOnlyPendingValue(t *testing.T) {
	p := New()
	for range 1000 {
		_, err := p.Feed([]byte(`{"id":1,"result":"ok"} `))
		require.NoError(t, err)
	}
	assert.Zero(t, p.Buffered())

	_, err := p.Feed([]byte(`{"id":2,"result":"done"} {"id":3,`))
	require.NoError(t, err)
	assert.Equal(t, len(`{"id":3,`), p.Buffered())

	p.Reset()
	assert.Zero(t, p.Buffered())
	vals, errs := feedAll(t, p, `{"id":4}`)
	require.Empty(t, errs)
	assert.Equal(t, []string{`{"id":4}`}, vals)
}

func TestEmittedValuesDoNotAliasBuffer(t *testing.T) {
	p := New()
	out, err := p.Feed([]byte(`{"a":"first"}`))
	require.NoError(t, err)
	require.Len(t, out, 1)

	_, err = p.Feed([]byte(`{"a":"other"}`))
	require.NoError(t, err)

	var v map[string]string
	require.NoError(t, json.Unmarshal(out[0], &v))
	assert.Equal(t, "first", v["a"])
}
