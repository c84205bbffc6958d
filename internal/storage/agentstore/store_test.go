package agentstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/hyperdash/internal/domain"
)

const owner = "0xAbCd000000000000000000000000000000000001"

func TestStore_PutGet(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	record := domain.AgentRecord{
		OwnerAddress: owner,
		AgentName:    "dash-agent",
		PrivateKey:   "0xdeadbeef",
	}
	require.NoError(t, s.Put(record))

	got, err := s.Get(owner)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record, *got)

	// lookups are case-insensitive on the address
	got, err = s.Get("0xABCD000000000000000000000000000000000001")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestStore_GetMissing(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	got, err := s.Get(owner)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Clear(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(domain.AgentRecord{OwnerAddress: owner, PrivateKey: "0x01"}))
	require.NoError(t, s.Clear(owner))

	got, err := s.Get(owner)
	require.NoError(t, err)
	assert.Nil(t, got)

	// clearing twice is fine
	require.NoError(t, s.Clear(owner))
}

func TestStore_PutRequiresOwner(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Put(domain.AgentRecord{PrivateKey: "0x01"}))
}
