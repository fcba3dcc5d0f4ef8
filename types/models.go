package types

import (
	"encoding/json"
	"fmt"
)

// Model identifies an embedding model served by the remote API.
type Model string

const (
	ModelTextEmbedding3Large Model = "text-embedding-3-large"
	ModelTextEmbedding3Small Model = "text-embedding-3-small"
	ModelTextEmbeddingAda002 Model = "text-embedding-ada-002"
)

// knownModels maps each supported model to its default vector length.
var knownModels = map[Model]int{
	ModelTextEmbedding3Large: 3072,
	ModelTextEmbedding3Small: 1536,
	ModelTextEmbeddingAda002: 1536,
}

// Models returns every supported model.
func Models() []Model {
	return []Model{
		ModelTextEmbedding3Large,
		ModelTextEmbedding3Small,
		ModelTextEmbeddingAda002,
	}
}

// ParseModel returns the model named by s. The match is exact.
func ParseModel(s string) (Model, error) {
	m := Model(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
	return m, nil
}

// Valid reports whether m is one of the supported models.
func (m Model) Valid() bool {
	_, ok := knownModels[m]
	return ok
}

// Dimensions returns the default embedding length for m, or 0 if m is unknown.
// Requests that set dimensions explicitly may receive shorter vectors.
func (m Model) Dimensions() int {
	return knownModels[m]
}

func (m Model) String() string {
	return string(m)
}

func (m Model) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, string(m))
	}
	return json.Marshal(string(m))
}

func (m *Model) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseModel(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
