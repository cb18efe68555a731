package store

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSeedsVersionAtTimestampOne(t *testing.T) {
	s := New(32, 16)
	e, err := s.Create("A", "initialA")
	require.NoError(t, err)

	require.Len(t, e.Versions, 1)
	assert.Equal(t, uint64(1), e.Versions[0].CommitTS)
	assert.Equal(t, uint64(0), e.Versions[0].Owner)
	assert.Equal(t, "initialA", e.Versions[0].Value)

	got, ok := s.Lookup("A")
	require.True(t, ok)
	assert.Same(t, e, got)
}

func TestLookupMissingKey(t *testing.T) {
	s := New(32, 16)
	_, ok := s.Lookup("missing")
	assert.False(t, ok)
}

func TestCreateRejectsDuplicates(t *testing.T) {
	s := New(32, 16)
	_, err := s.Create("A", "a0")
	require.NoError(t, err)
	_, err = s.Create("A", "a1")
	assert.True(t, errors.Is(err, ErrKeyExists))
}

func TestCreateEnforcesCapacity(t *testing.T) {
	s := New(2, 16)
	_, err := s.Create("A", "")
	require.NoError(t, err)
	_, err = s.Create("B", "")
	require.NoError(t, err)
	_, err = s.Create("C", "")
	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.Equal(t, 2, s.Len())
}

func TestCreateEnforcesKeyNameLength(t *testing.T) {
	s := New(32, 4)
	_, err := s.Create("toolong", "")
	assert.True(t, errors.Is(err, ErrKeyTooLong))
}

func TestVisibleSnapshotRule(t *testing.T) {
	e := &Entry{Name: "A", Versions: []Version{
		{CommitTS: 1, Value: "v1"},
		{CommitTS: 3, Value: "v3"},
		{CommitTS: 5, Value: "v5"},
	}}

	// A snapshot between commits sees the newest version at or below it.
	v, ok := e.Visible(9, 4)
	require.True(t, ok)
	assert.Equal(t, "v3", v)

	v, ok = e.Visible(9, 5)
	require.True(t, ok)
	assert.Equal(t, "v5", v)

	// A snapshot older than every version sees nothing.
	e2 := &Entry{Name: "B", Versions: []Version{{CommitTS: 7, Value: "v7"}}}
	_, ok = e2.Visible(9, 4)
	assert.False(t, ok)
}

func TestVisibleOwnUncommittedWins(t *testing.T) {
	e := &Entry{Name: "A", Versions: []Version{
		{CommitTS: 2, Value: "committed"},
	}}
	e.AppendUncommitted(7, "mine")

	v, ok := e.Visible(7, 2)
	require.True(t, ok)
	assert.Equal(t, "mine", v)

	// Another transaction never sees the in-flight write.
	v, ok = e.Visible(8, 2)
	require.True(t, ok)
	assert.Equal(t, "committed", v)
}

func TestAppendUncommittedReplacesOwnBuffer(t *testing.T) {
	e := &Entry{Name: "A"}
	e.AppendUncommitted(7, "first")
	e.AppendUncommitted(7, "second")

	require.Len(t, e.Versions, 1)
	assert.Equal(t, "second", e.Versions[0].Value)

	// Different transactions keep separate uncommitted versions.
	e.AppendUncommitted(8, "other")
	assert.Len(t, e.Versions, 2)
}

func TestMaterializeStampsAndClearsOwner(t *testing.T) {
	e := &Entry{Name: "A", Versions: []Version{{CommitTS: 1, Value: "v1"}}}
	e.AppendUncommitted(7, "v2")

	assert.True(t, e.Materialize(7, 4))
	require.Len(t, e.Versions, 2)
	assert.Equal(t, uint64(4), e.Versions[1].CommitTS)
	assert.Equal(t, uint64(0), e.Versions[1].Owner)

	// Nothing left to stamp.
	assert.False(t, e.Materialize(7, 5))
}

func TestDiscardUncommittedPreservesOrder(t *testing.T) {
	e := &Entry{Name: "A", Versions: []Version{{CommitTS: 1, Value: "v1"}}}
	e.AppendUncommitted(7, "doomed")
	e.Versions = append(e.Versions, Version{CommitTS: 3, Value: "v3"})
	e.AppendUncommitted(8, "survives")

	assert.Equal(t, 1, e.DiscardUncommitted(7))
	require.Len(t, e.Versions, 3)
	assert.Equal(t, "v1", e.Versions[0].Value)
	assert.Equal(t, "v3", e.Versions[1].Value)
	assert.Equal(t, "survives", e.Versions[2].Value)

	assert.Equal(t, 0, e.DiscardUncommitted(7))
}

func TestNewestCommittedSkipsUncommittedTail(t *testing.T) {
	e := &Entry{Name: "A", Versions: []Version{{CommitTS: 2, Value: "v2"}}}
	e.AppendUncommitted(7, "in-flight")

	newest, ok := e.NewestCommitted()
	require.True(t, ok)
	assert.Equal(t, uint64(2), newest.CommitTS)

	empty := &Entry{Name: "B"}
	empty.AppendUncommitted(7, "only-uncommitted")
	_, ok = empty.NewestCommitted()
	assert.False(t, ok)
}

func TestAscendWalksKeysInOrder(t *testing.T) {
	s := New(0, 0)
	for _, name := range []string{"C", "A", "B"} {
		_, err := s.Create(name, "")
		require.NoError(t, err)
	}
	var names []string
	s.Ascend(func(e *Entry) bool {
		names = append(names, e.Name)
		return true
	})
	assert.Equal(t, []string{"A", "B", "C"}, names)
}
