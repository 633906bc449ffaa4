package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icao-pkd/pkd-core/core"
)

func TestDecodeSyncCounts(t *testing.T) {
	st := &core.SyncStatus{
		DBCountsJSON:   `{"CSCA":10,"DSC":20}`,
		LDAPCountsJSON: `{"CSCA":9,"DSC":20}`,
	}
	require.NoError(t, decodeSyncCounts(st))
	assert.Equal(t, 10, st.DBCounts["CSCA"])
	assert.Equal(t, 9, st.LDAPCounts["CSCA"])
}

func TestDecodeSyncCounts_EmptyIsNoop(t *testing.T) {
	st := &core.SyncStatus{}
	require.NoError(t, decodeSyncCounts(st))
	assert.Nil(t, st.DBCounts)
	assert.Nil(t, st.LDAPCounts)
}

func TestDecodeSyncCounts_InvalidJSON(t *testing.T) {
	st := &core.SyncStatus{DBCountsJSON: "not json"}
	assert.Error(t, decodeSyncCounts(st))
}
