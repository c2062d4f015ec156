package observability

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/dosanma1/forge-booster/internal/graph"
)

// Attribute keys
const (
	attrArtifact = "artifact"
	attrTask     = "task"
	attrOutcome  = "outcome"
)

func artifactAttr(id string) attribute.KeyValue {
	return attribute.String(attrArtifact, id)
}

func taskAttr(name string) attribute.KeyValue {
	return attribute.String(attrTask, name)
}

func outcomeAttr(o graph.Outcome) attribute.KeyValue {
	return attribute.String(attrOutcome, o.String())
}
