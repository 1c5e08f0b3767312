package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncordian/syncordian/pkg/byzsig"
	"github.com/syncordian/syncordian/pkg/docid"
	"github.com/syncordian/syncordian/pkg/vclock"
)

func mustKeyPair(t *testing.T) byzsig.KeyPair {
	t.Helper()
	kp, err := byzsig.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func signWith(kp byzsig.KeyPair) func(left, right docid.ID, lineID docid.ID, content string) ([]byte, error) {
	return func(left, right docid.ID, lineID docid.ID, content string) ([]byte, error) {
		return byzsig.Sign(kp, byzsig.Binding{LeftParentID: left, LineID: lineID, Content: content, RightParentID: right})
	}
}

// TestLinearEditSequence mirrors the single-peer scenario: inserting three
// lines at indices 0, 1 and 2, each right after the previous one, yields them in content order
// between the sentinels, each verifying against its immediate neighbours.
func TestLinearEditSequence(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()

	var line Line
	var err error
	for i, content := range []string{"A", "B", "C"} {
		line, d, err = d.InsertByPosition(i, content, 0, vclock.New(1), signWith(kp))
		require.NoError(t, err)
		assert.Equal(t, content, line.Content)
	}

	assert.Equal(t, "ABC", d.AliveContent(""))
	assert.Equal(t, 5, d.Length()) // inf, A, B, C, sup

	for i := 1; i < d.Length()-1; i++ {
		cur, _ := d.LineAtIndex(i)
		left, _ := d.LineAtIndex(i - 1)
		right, _ := d.LineAtIndex(i + 1)
		ok := byzsig.Verify(kp.Public, left.ID, right.ID, cur.ID, cur.Content, cur.Signature)
		assert.True(t, ok, "line %d should verify against its immediate neighbours", i)
	}
}

func TestInsertAtZeroLandsAfterInfimum(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()
	line, d, err := d.InsertByPosition(0, "first", 0, vclock.New(1), signWith(kp))
	require.NoError(t, err)

	got, ok := d.LineAtIndex(1)
	require.True(t, ok)
	assert.Equal(t, line.ID, got.ID)
}

func TestInsertPastEndLandsBeforeSupremum(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()
	line, d, err := d.InsertByPosition(999, "last", 0, vclock.New(1), signWith(kp))
	require.NoError(t, err)

	got, ok := d.LineAtIndex(d.Length() - 2)
	require.True(t, ok)
	assert.Equal(t, line.ID, got.ID)
}

func TestDeleteThenAliveProjectionMatchesPreInsert(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()
	before := d.AliveContent("")

	_, d, err := d.InsertByPosition(0, "temp", 0, vclock.New(1), signWith(kp))
	require.NoError(t, err)

	d, err = d.DeleteByIndex(1)
	require.NoError(t, err)

	assert.Equal(t, before, d.AliveContent(""))
}

func TestDeleteOfSentinelRejected(t *testing.T) {
	d := New()
	_, err := d.DeleteByIndex(0)
	assert.Error(t, err)
	_, err = d.DeleteByIndex(d.Length() - 1)
	assert.Error(t, err)
}

func TestSentinelsNeverMove(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()
	for i, content := range []string{"A", "B", "C", "D"} {
		_, d, _ = d.InsertByPosition(i, content, 0, vclock.New(1), signWith(kp))
	}

	first, _ := d.LineAtIndex(0)
	last, _ := d.LineAtIndex(d.Length() - 1)
	assert.Equal(t, 0, docid.Compare(first.ID, docid.Infimum()))
	assert.Equal(t, 0, docid.Compare(last.ID, docid.Supremum()))
}

func TestHasIDDetectsCollision(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()
	line, d, err := d.InsertByPosition(0, "x", 0, vclock.New(1), signWith(kp))
	require.NoError(t, err)
	assert.True(t, d.HasID(line.ID))

	other, err := docid.Between(line.ID, docid.Supremum(), 0)
	require.NoError(t, err)
	assert.False(t, d.HasID(other))
}
