package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignment_Melt(t *testing.T) {
	a := &Assignment{
		Name:     "Cluster_TEMP",
		Stations: []int64{10, 20},
		Ks:       []int{2, 3},
		Labels:   [][]int{{1, 2}, {3, 1}},
	}

	assert.Equal(t, []Label{
		{Station: 10, K: 2, Cluster: 1},
		{Station: 20, K: 2, Cluster: 2},
		{Station: 10, K: 3, Cluster: 3},
		{Station: 20, K: 3, Cluster: 1},
	}, a.Melt())
}

func TestMergeAssignments(t *testing.T) {
	a := &Assignment{Name: "A", Stations: []int64{10, 20}, Ks: []int{2, 3}, Labels: [][]int{{1, 2}, {3, 1}}}
	b := &Assignment{Name: "B", Stations: []int64{20, 30}, Ks: []int{2}, Labels: [][]int{{2, 1}}}

	table, err := MergeAssignments(a, b)
	require.NoError(t, err)

	assert.Equal(t, []string{"STATION", "K", "A", "B"}, table.Header())
	assert.Equal(t, [][]string{{"20", "2", "2", "2"}}, table.Records())
}

func TestMergeAssignments_Errors(t *testing.T) {
	_, err := MergeAssignments()
	assert.Error(t, err)

	a := &Assignment{Name: "A"}
	_, err = MergeAssignments(a, a)
	assert.Error(t, err)
}
