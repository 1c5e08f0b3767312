package byzsig

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syncordian/syncordian/pkg/docid"
)

func mustBetween(t *testing.T, left, right docid.ID) docid.ID {
	t.Helper()
	id, err := docid.Between(left, right, 0)
	require.NoError(t, err)
	return id
}

func TestSignThenVerifySucceeds(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	left, right := docid.Infimum(), docid.Supremum()
	lineID := mustBetween(t, left, right)

	sig, err := Sign(kp, Binding{LeftParentID: left, LineID: lineID, Content: "hello", RightParentID: right})
	require.NoError(t, err)

	require.True(t, Verify(kp.Public, left, right, lineID, "hello", sig))
}

func TestVerifyFailsOnTamperedContent(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	left, right := docid.Infimum(), docid.Supremum()
	lineID := mustBetween(t, left, right)

	sig, err := Sign(kp, Binding{LeftParentID: left, LineID: lineID, Content: "hello", RightParentID: right})
	require.NoError(t, err)

	require.False(t, Verify(kp.Public, left, right, lineID, "goodbye", sig))
}

func TestVerifyFailsOnRehomedParents(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	left, right := docid.Infimum(), docid.Supremum()
	lineID := mustBetween(t, left, right)

	sig, err := Sign(kp, Binding{LeftParentID: left, LineID: lineID, Content: "hello", RightParentID: right})
	require.NoError(t, err)

	otherRight := mustBetween(t, lineID, right)
	require.False(t, Verify(kp.Public, left, otherRight, lineID, "hello", sig))
}

func TestVerifyFailsOnWrongSigner(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	other, err := GenerateKeyPair()
	require.NoError(t, err)

	left, right := docid.Infimum(), docid.Supremum()
	lineID := mustBetween(t, left, right)

	sig, err := Sign(kp, Binding{LeftParentID: left, LineID: lineID, Content: "hello", RightParentID: right})
	require.NoError(t, err)

	require.False(t, Verify(other.Public, left, right, lineID, "hello", sig))
}
