package metrics

import "go.opentelemetry.io/otel/attribute"

func peerIDAttr(peerID int) attribute.KeyValue {
	return attribute.Int("peer_id", peerID)
}
