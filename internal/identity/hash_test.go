package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestDeterminism(t *testing.T) {
	d1 := Digest(DomainFragment, []byte(`{"name":"nginx"}`))
	d2 := Digest(DomainFragment, []byte(`{"name":"nginx"}`))

	assert.Equal(t, d1, d2, "Digest must be deterministic")
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")
}

func TestDigestDomainSeparation(t *testing.T) {
	data := []byte("syslog_aci")

	d1 := Digest(DomainFragment, data)
	d2 := Digest(DomainPolicySignature, data)

	assert.NotEqual(t, d1, d2, "same data in different domains must not collide")
}

func TestDigestJSONKeyOrderIndependence(t *testing.T) {
	a := []byte(`{"name": "custom_logs", "vars": {"id": "syslog.aci", "pipeline": "aci-pipeline"}}`)
	b := []byte(`{"vars": {"pipeline": "aci-pipeline", "id": "syslog.aci"}, "name": "custom_logs"}`)

	da, err := DigestJSON(DomainFragment, a)
	require.NoError(t, err)
	db, err := DigestJSON(DomainFragment, b)
	require.NoError(t, err)

	assert.Equal(t, da, db, "canonicalization must erase key order")
}

func TestDigestJSONWhitespaceIndependence(t *testing.T) {
	a := []byte(`{"name":"nginx","vars":{}}`)
	b := []byte(`{
		"name": "nginx",
		"vars": {}
	}`)

	da, err := DigestJSON(DomainFragment, a)
	require.NoError(t, err)
	db, err := DigestJSON(DomainFragment, b)
	require.NoError(t, err)

	assert.Equal(t, da, db)
}

func TestDigestJSONRejectsInvalidInput(t *testing.T) {
	_, err := DigestJSON(DomainFragment, []byte(`{"name":`))
	require.Error(t, err)
}
