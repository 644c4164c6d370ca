// Package guid synthesizes deterministic platform-style entity identifiers
// from semantic attributes. Identifiers are a correlation convenience, not
// a uniqueness guarantee: Synthesize uses a 32-bit non-cryptographic hash
// and can collide; use SynthesizeStrong where collision resistance matters.
package guid

import (
	"encoding/base64"
	"fmt"

	"github.com/zeebo/blake3"
)

// Synthesize produces the compact correlation token for an entity:
//
//	{accountID}|INFRA|NA|{abs(hash31("{entityType}:{entityName}"))}
//
// The token is returned as-is, without further encoding; it is an internal
// convention, not a promise of compatibility with any external identifier
// format. Same inputs always yield the same token, across processes and
// runs.
func Synthesize(entityType, entityName, accountID string) string {
	return fmt.Sprintf("%s|INFRA|NA|%d", accountID, hash31(entityType+":"+entityName))
}

// SynthesizeStrong is the collision-resistant variant of Synthesize. It
// keeps the same deterministic contract but derives the numeric part from
// a 128-bit BLAKE3 digest instead of a 32-bit rolling hash.
func SynthesizeStrong(entityType, entityName, accountID string) string {
	sum := blake3.Sum256([]byte(entityType + ":" + entityName))
	return fmt.Sprintf("%s|INFRA|NA|%x", accountID, sum[:16])
}

// hash31 is the multiplicative rolling hash over UTF-8 bytes, truncated to
// 32 bits at each step, absolute value taken at the end.
func hash31(s string) int64 {
	var h int32
	for _, b := range []byte(s) {
		h = h*31 + int32(b)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return n
}

// EntityType names the Kafka entity kinds with UI-compatible identifiers.
type EntityType string

const (
	EntityTypeCluster EntityType = "AWSMSKCLUSTER"
	EntityTypeBroker  EntityType = "AWSMSKBROKER"
	EntityTypeTopic   EntityType = "AWSMSKTOPIC"
)

// SynthesizeTyped produces the Message Queues UI form of an entity GUID:
//
//	{accountID}|INFRA|{entityType}|base64(identifier)
//
// where the identifier is "{clusterName}:{accountID}" for clusters and
// "{clusterName}:{accountID}:{qualifier}" for brokers (broker id) and
// topics (topic name).
func SynthesizeTyped(entityType EntityType, accountID, clusterName, qualifier string) string {
	identifier := fmt.Sprintf("%s:%s", clusterName, accountID)
	if entityType == EntityTypeBroker || entityType == EntityTypeTopic {
		identifier = fmt.Sprintf("%s:%s", identifier, qualifier)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(identifier))
	return fmt.Sprintf("%s|INFRA|%s|%s", accountID, entityType, encoded)
}
