package dto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/reactor/pkg/domain"
)

// Written by the desktop front end: every scalar is a string.
const legacyYAML = `
chimney:
  height: '5'
  width: '2'
meshing:
  curvature_ratio: 0.1
  optimize: false
  size: '0.5'
  square_ratio: 0.5
reactor:
  center:
  - '0'
  - '1'
  - '2'
  height: '20'
  radius: '10'
`

func TestDecode_LegacyStrings(t *testing.T) {
	raw, err := Unmarshal([]byte(legacyYAML), SyntaxYAML)
	require.NoError(t, err)

	f, unused, err := Decode(raw)
	require.NoError(t, err)
	assert.Empty(t, unused)

	p := f.Params()
	assert.Equal(t, domain.V3(0, 1, 2), p.Center)
	assert.Equal(t, domain.V2(10, 20), p.Reactor)
	assert.Equal(t, domain.V2(2, 5), p.Chimney)
	assert.Equal(t, 0.5, p.MeshSize)
	assert.Equal(t, 0.1, p.CurvatureFraction)
	assert.False(t, p.Optimize)
}

func TestDecode_TOML(t *testing.T) {
	doc := `
[reactor]
center = [0.0, 0.0, 0.0]
radius = 12
height = 30

[meshing]
optimize = 1

[optimizer]
parallelism = 4

[cache]
redis_addr = "localhost:6379"
ttl = "1h"
colour = "blue"
`
	raw, err := Unmarshal([]byte(doc), SyntaxTOML)
	require.NoError(t, err)

	f, unused, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache.colour"}, unused)

	p := f.Params()
	assert.Equal(t, 12.0, p.Reactor.X)
	assert.True(t, p.Optimize)
	// Missing keys keep their defaults.
	assert.Equal(t, domain.DefaultGeometryParams().Chimney, p.Chimney)

	s := f.Settings(domain.DefaultOptimizerSettings())
	assert.Equal(t, 4, s.Parallelism)
	assert.Equal(t, domain.DefaultOptimizerSettings().MaxIterations, s.MaxIterations)

	ttl, err := f.Cache.Duration()
	require.NoError(t, err)
	assert.Equal(t, "1h0m0s", ttl.String())
}

func TestDecode_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"short center": "reactor:\n  center: [1, 2]\n",
		"not a number": "reactor:\n  radius: wide\n",
		"bad ttl":      "cache:\n  ttl: soon\n",
	} {
		raw, err := Unmarshal([]byte(doc), SyntaxYAML)
		require.NoError(t, err, name)
		_, _, err = Decode(raw)
		assert.True(t, domain.IsKind(err, domain.KindInvalidParameter), name)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	p := domain.DefaultGeometryParams()
	p.Center = domain.V3(1, 2, 3)
	p.Optimize = true

	for _, syntax := range []Syntax{SyntaxYAML, SyntaxTOML, SyntaxJSON} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, FromParams(p), syntax), syntax)

		raw, err := Unmarshal(buf.Bytes(), syntax)
		require.NoError(t, err, syntax)
		f, _, err := Decode(raw)
		require.NoError(t, err, syntax)
		assert.Equal(t, p, f.Params(), syntax)
	}
}

func TestSyntaxFromExt(t *testing.T) {
	s, err := SyntaxFromExt(".YML")
	require.NoError(t, err)
	assert.Equal(t, SyntaxYAML, s)

	_, err = SyntaxFromExt(".ini")
	assert.Error(t, err)
}
