package topology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcceptFirstLSA(t *testing.T) {
	db := NewDatabase()
	res := db.Accept(LSA{NodeID: "gateway-b", Neighbors: []string{"gateway-a"}, Sequence: 1, Timestamp: time.Now()})
	assert.Equal(t, Accepted, res)
}

func TestAcceptStrictMonotonic(t *testing.T) {
	db := NewDatabase()
	db.Accept(LSA{NodeID: "gateway-b", Sequence: 5})

	assert.Equal(t, Ignored, db.Accept(LSA{NodeID: "gateway-b", Sequence: 5}))
	assert.Equal(t, Ignored, db.Accept(LSA{NodeID: "gateway-b", Sequence: 3}))
	assert.Equal(t, Accepted, db.Accept(LSA{NodeID: "gateway-b", Sequence: 6}))

	snap := db.Snapshot()
	assert.Equal(t, uint64(6), snap["gateway-b"].Sequence)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	db := NewDatabase()
	db.Accept(LSA{NodeID: "gateway-b", Neighbors: []string{"gateway-a"}, Sequence: 1})

	snap := db.Snapshot()
	snap["gateway-b"].Neighbors[0] = "mutated"

	snap2 := db.Snapshot()
	assert.Equal(t, "gateway-a", snap2["gateway-b"].Neighbors[0])
}

func TestOwnNextLSAIncrementsAndSelfAccepts(t *testing.T) {
	db := NewDatabase()
	lsa1 := db.OwnNextLSA("gateway-a", []string{"gateway-b"}, time.Now())
	assert.Equal(t, uint64(1), lsa1.Sequence)

	lsa2 := db.OwnNextLSA("gateway-a", []string{"gateway-b", "gateway-c"}, time.Now())
	assert.Equal(t, uint64(2), lsa2.Sequence)

	snap := db.Snapshot()
	assert.Equal(t, uint64(2), snap["gateway-a"].Sequence)
}
