package peer

import (
	"fmt"

	"github.com/syncordian/syncordian/pkg/docid"
	"github.com/syncordian/syncordian/pkg/document"
	"github.com/syncordian/syncordian/pkg/transport"
)

// decodeInsert turns an on-the-wire insert payload into a document.Line.
// It does not verify the signature — that is the caller's job, since
// verification needs the sender's position in the local document, not
// just the payload itself.
func decodeInsert(p transport.InsertPayload) (document.Line, error) {
	var id docid.ID
	if err := id.UnmarshalText([]byte(p.LineID)); err != nil {
		return document.Line{}, fmt.Errorf("decode insert: line id: %w", err)
	}
	return document.Line{
		ID:        id,
		Content:   p.Content,
		PeerID:    p.PeerID,
		Signature: append([]byte(nil), p.Signature...),
		Status:    document.Alive,
	}, nil
}

// encodeInsert serializes a freshly created local line for broadcast. The
// parent pair it was signed against is not carried on the wire: a
// receiver re-derives candidate parent pairs from its own document during
// sliding-window validation (see document.ValidateIncoming) rather than
// trusting the sender's claimed neighbours.
func encodeInsert(line document.Line, clock []uint64) transport.InsertPayload {
	return transport.InsertPayload{
		LineID:    line.ID.String(),
		Content:   line.Content,
		PeerID:    line.PeerID,
		Signature: append([]byte(nil), line.Signature...),
		Clock:     clock,
	}
}

func decodeLineID(s string) (docid.ID, error) {
	var id docid.ID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return docid.ID{}, fmt.Errorf("decode line id %q: %w", s, err)
	}
	return id, nil
}
