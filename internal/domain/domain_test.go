package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnomalyReport_Any(t *testing.T) {
	assert.False(t, NeutralAnomalyReport().Any())
	assert.True(t, AnomalyReport{StyleMismatch: true}.Any())
	assert.True(t, AnomalyReport{DuplicateRisk: true}.Any())
}

func TestNeutralAnomalyReport_EncodesEmptyDetails(t *testing.T) {
	data, err := json.Marshal(NeutralAnomalyReport())
	require.NoError(t, err)

	assert.Contains(t, string(data), `"anomaly_details":[]`)
	assert.Contains(t, string(data), `"duplicate_of":null`)
}

func TestSkipTally_Total(t *testing.T) {
	s := SkipTally{Passages: 1, Users: 2, Interpretations: 3}
	assert.Equal(t, 6, s.Total())
}

func TestAsKeyed(t *testing.T) {
	keyed := AsKeyed([]UserRecord{{UserID: "user_a_1"}, {UserID: "user_b_2"}})
	require.Len(t, keyed, 2)
	assert.Equal(t, "user_b_2", keyed[1].Key())

	assert.Empty(t, AsKeyed[MomentRecord](nil))
}
