package intent

import (
	"fmt"
	"strings"
)

// Predicate classifies what an agent intends to do with a resource.
type Predicate int

const (
	Provides Predicate = iota
	Consumes
	Mutates
	Deletes
	DependsOn
	Renames

	// NumPredicates is the size of the predicate enumeration.
	NumPredicates = 6
)

var predicateNames = [NumPredicates]string{
	"PROVIDES",
	"CONSUMES",
	"MUTATES",
	"DELETES",
	"DEPENDS_ON",
	"RENAMES",
}

// String returns the wire name of the predicate.
func (p Predicate) String() string {
	if p < 0 || int(p) >= NumPredicates {
		return fmt.Sprintf("Predicate(%d)", int(p))
	}
	return predicateNames[p]
}

// Valid reports whether p is a member of the closed enumeration.
func (p Predicate) Valid() bool {
	return p >= 0 && int(p) < NumPredicates
}

// ParsePredicate converts a wire name into a Predicate.
func ParsePredicate(s string) (Predicate, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range predicateNames {
		if n == name {
			return Predicate(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPredicate, s)
}

// ResourceType classifies the kind of shared resource an intent targets.
type ResourceType string

const (
	ResourceFile          ResourceType = "FILE"
	ResourceSymbol        ResourceType = "SYMBOL"
	ResourceAPIEndpoint   ResourceType = "API_ENDPOINT"
	ResourceDatabaseTable ResourceType = "DATABASE_TABLE"
	ResourceConfigKey     ResourceType = "CONFIG_KEY"
)

var resourceTypes = []ResourceType{
	ResourceFile,
	ResourceSymbol,
	ResourceAPIEndpoint,
	ResourceDatabaseTable,
	ResourceConfigKey,
}

// ParseResourceType converts a wire name into a ResourceType.
func ParseResourceType(s string) (ResourceType, error) {
	name := ResourceType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range resourceTypes {
		if t == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResourceType, s)
}

// ResourceRef names a shared resource by type and opaque path.
type ResourceRef struct {
	Type ResourceType `json:"resource_type"`
	Path string       `json:"resource_path"`
}

// NewResourceRef validates and builds a resource reference.
func NewResourceRef(resourceType, path string) (ResourceRef, error) {
	t, err := ParseResourceType(resourceType)
	if err != nil {
		return ResourceRef{}, err
	}
	if path == "" {
		return ResourceRef{}, ErrEmptyPath
	}
	return ResourceRef{Type: t, Path: path}, nil
}

// Key returns the canonical "TYPE:path" form used for equality and indexing.
func (r ResourceRef) Key() string {
	return string(r.Type) + ":" + r.Path
}

// ParseResourceKey decodes a canonical key back into a ResourceRef.
// Re-encoding the result yields the input bytes unchanged.
func ParseResourceKey(key string) (ResourceRef, error) {
	idx := strings.Index(key, ":")
	if idx < 0 {
		return ResourceRef{}, fmt.Errorf("%w: missing separator in %q", ErrInvalidResourceKey, key)
	}
	t, err := ParseResourceType(key[:idx])
	if err != nil {
		return ResourceRef{}, err
	}
	if key[:idx] != string(t) {
		return ResourceRef{}, fmt.Errorf("%w: non-canonical type in %q", ErrInvalidResourceKey, key)
	}
	path := key[idx+1:]
	if path == "" {
		return ResourceRef{}, ErrEmptyPath
	}
	return ResourceRef{Type: t, Path: path}, nil
}

// Confidence grades how certain an agent is about a declared intent.
// Diagnostic only; scheduling ignores it.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Triple is a declared operation: subject agent, predicate, object resource.
type Triple struct {
	Subject     string      `json:"subject"`
	Predicate   Predicate   `json:"predicate"`
	Object      ResourceRef `json:"object"`
	Confidence  Confidence  `json:"confidence,omitempty"`
	TimestampMs int64       `json:"timestamp_ms,omitempty"`
}

// Manifest is an ordered batch of intents submitted as one question.
// Two triples sharing the manifest's (agent_id, session_id) never
// conflict with each other.
type Manifest struct {
	AgentID   string   `json:"agent_id"`
	SessionID string   `json:"session_id"`
	Intents   []Triple `json:"intents"`
}
