package types

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
)

// EmbeddingsEndpoint is the embeddings path relative to the API base URL.
const EmbeddingsEndpoint = "v1/embeddings"

// EncodingFormat controls how vector components are encoded in the response.
type EncodingFormat string

const (
	EncodingFloat  EncodingFormat = "float"
	EncodingBase64 EncodingFormat = "base64"
)

// DefaultEncodingFormat is what the service documents as its default. It is
// never sent implicitly: an unset format leaves the choice to the service.
const DefaultEncodingFormat = EncodingFloat

// Input is the text to embed: either a single string or a list of strings.
// On the wire it is a bare JSON string or a bare JSON array, with no tag.
type Input struct {
	values []string
	many   bool
}

// Text returns an input holding one string.
func Text(s string) Input {
	return Input{values: []string{s}}
}

// Texts returns an input holding a list of strings, in order. The list must
// not be empty; an empty list fails when the request is serialized.
func Texts(ss ...string) Input {
	return Input{values: slices.Clone(ss), many: true}
}

// IsMany reports whether the input is the list form.
func (in Input) IsMany() bool {
	return in.many
}

// Values returns the input strings. A single-string input yields one element.
func (in Input) Values() []string {
	return slices.Clone(in.values)
}

func (in Input) MarshalJSON() ([]byte, error) {
	if len(in.values) == 0 {
		return nil, ErrEmptyInput
	}
	if !in.many {
		return json.Marshal(in.values[0])
	}
	return json.Marshal(in.values)
}

func (in *Input) UnmarshalJSON(data []byte) error {
	switch firstByte(data) {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Text(s)
		return nil
	case '[':
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return err
		}
		if len(ss) == 0 {
			return ErrEmptyInput
		}
		*in = Input{values: ss, many: true}
		return nil
	default:
		return fmt.Errorf("embedding input must be a string or an array of strings, got %s", data)
	}
}

// EmbeddingRequest is a request to the embeddings endpoint. Build it with
// NewEmbeddingRequest and the With* methods; each returns a modified copy.
type EmbeddingRequest struct {
	input          Input
	model          Model
	encodingFormat *EncodingFormat
	dimensions     *int
	user           *string
}

// Compile-time check that EmbeddingRequest implements Request.
var _ Request = EmbeddingRequest{}

// NewEmbeddingRequest creates a request with no optional fields set.
func NewEmbeddingRequest(input Input, model Model) EmbeddingRequest {
	return EmbeddingRequest{input: input, model: model}
}

// WithEncodingFormat sets the encoding of the returned vectors.
func (r EmbeddingRequest) WithEncodingFormat(f EncodingFormat) EmbeddingRequest {
	r.encodingFormat = &f
	return r
}

// WithDimensions sets the number of output dimensions. The service validates the range.
func (r EmbeddingRequest) WithDimensions(n int) EmbeddingRequest {
	r.dimensions = &n
	return r
}

// WithUser sets the end-user identifier.
func (r EmbeddingRequest) WithUser(user string) EmbeddingRequest {
	r.user = &user
	return r
}

// Input returns the text to embed.
func (r EmbeddingRequest) Input() Input { return r.input }

// Model returns the requested model.
func (r EmbeddingRequest) Model() Model { return r.model }

// EncodingFormat returns the vector encoding, if one was set.
func (r EmbeddingRequest) EncodingFormat() (EncodingFormat, bool) {
	if r.encodingFormat == nil {
		return "", false
	}
	return *r.encodingFormat, true
}

// Dimensions returns the requested output dimensions, if set.
func (r EmbeddingRequest) Dimensions() (int, bool) {
	if r.dimensions == nil {
		return 0, false
	}
	return *r.dimensions, true
}

// User returns the end-user identifier, if set.
func (r EmbeddingRequest) User() (string, bool) {
	if r.user == nil {
		return "", false
	}
	return *r.user, true
}

// Method returns http.MethodPost.
func (r EmbeddingRequest) Method() string { return http.MethodPost }

// Endpoint returns EmbeddingsEndpoint.
func (r EmbeddingRequest) Endpoint() string { return EmbeddingsEndpoint }

// BodyEncoding returns BodyJSON.
func (r EmbeddingRequest) BodyEncoding() BodyEncoding { return BodyJSON }

// embeddingRequestJSON is the wire form. Optional fields are pointers so that
// presence, not value, decides whether a key is written.
type embeddingRequestJSON struct {
	Input          *Input          `json:"input"`
	Model          *Model          `json:"model"`
	EncodingFormat *EncodingFormat `json:"encoding_format,omitempty"`
	Dimensions     *int            `json:"dimensions,omitempty"`
	User           *string         `json:"user,omitempty"`
}

func (r EmbeddingRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(embeddingRequestJSON{
		Input:          &r.input,
		Model:          &r.model,
		EncodingFormat: r.encodingFormat,
		Dimensions:     r.dimensions,
		User:           r.user,
	})
}

func (r *EmbeddingRequest) UnmarshalJSON(data []byte) error {
	var w embeddingRequestJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Input == nil {
		return fmt.Errorf("input: %w", ErrMissingField)
	}
	if w.Model == nil {
		return fmt.Errorf("model: %w", ErrMissingField)
	}
	*r = EmbeddingRequest{
		input:          *w.Input,
		model:          *w.Model,
		encodingFormat: w.EncodingFormat,
		dimensions:     w.Dimensions,
		user:           w.User,
	}
	return nil
}

// Embedding is one result vector.
type Embedding struct {
	// Object is always "embedding".
	Object string `json:"object"`

	// Embedding is the vector. Its length depends on the model and the
	// requested dimensions.
	Embedding []float32 `json:"embedding"`

	// Index is the position of the matching input in the request.
	Index int `json:"index"`
}

// Usage is the token accounting for a request.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// EmbeddingResponse is the decoded body of a successful embeddings call.
type EmbeddingResponse struct {
	// Object is always "list".
	Object string      `json:"object"`
	Data   []Embedding `json:"data"`
	Model  Model       `json:"model"`
	Usage  Usage       `json:"usage"`
}

// ParseEmbeddingResponse decodes an embeddings response body. Every field is
// required and keys match exactly; on failure it returns a *ParseError and no
// response.
func ParseEmbeddingResponse(data []byte) (*EmbeddingResponse, error) {
	w, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	var resp EmbeddingResponse
	if err := decodeField("object", w["object"], &resp.Object); err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := decodeField("data", w["data"], &items); err != nil {
		return nil, err
	}
	resp.Data = make([]Embedding, 0, len(items))
	for i, raw := range items {
		emb, err := parseEmbedding(raw)
		if err != nil {
			return nil, withPrefix(fmt.Sprintf("data[%d]", i), err)
		}
		resp.Data = append(resp.Data, emb)
	}

	if err := decodeField("model", w["model"], &resp.Model); err != nil {
		return nil, err
	}

	usage, err := parseUsage(w["usage"])
	if err != nil {
		return nil, withPrefix("usage", err)
	}
	resp.Usage = usage

	return &resp, nil
}

func (r *EmbeddingResponse) UnmarshalJSON(data []byte) error {
	resp, err := ParseEmbeddingResponse(data)
	if err != nil {
		return err
	}
	*r = *resp
	return nil
}

func (e *Embedding) UnmarshalJSON(data []byte) error {
	emb, err := parseEmbedding(data)
	if err != nil {
		return err
	}
	*e = emb
	return nil
}

func parseEmbedding(data []byte) (Embedding, error) {
	w, err := decodeObject(data)
	if err != nil {
		return Embedding{}, err
	}

	var emb Embedding
	if err := decodeField("object", w["object"], &emb.Object); err != nil {
		return Embedding{}, err
	}
	if isNull(w["embedding"]) {
		return Embedding{}, &ParseError{Field: "embedding", Err: ErrMissingField}
	}
	vec, err := decodeVector(w["embedding"])
	if err != nil {
		return Embedding{}, &ParseError{Field: "embedding", Err: err}
	}
	emb.Embedding = vec
	if err := decodeField("index", w["index"], &emb.Index); err != nil {
		return Embedding{}, err
	}
	return emb, nil
}

func parseUsage(data json.RawMessage) (Usage, error) {
	w, err := decodeObject(data)
	if err != nil {
		return Usage{}, err
	}

	var u Usage
	if err := decodeField("prompt_tokens", w["prompt_tokens"], &u.PromptTokens); err != nil {
		return Usage{}, err
	}
	if err := decodeField("total_tokens", w["total_tokens"], &u.TotalTokens); err != nil {
		return Usage{}, err
	}
	return u, nil
}

// decodeObject splits a JSON object into its raw members. Lookups on the
// result are case-sensitive, unlike struct field matching in encoding/json.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	if isNull(data) {
		return nil, &ParseError{Err: ErrMissingField}
	}
	var w map[string]json.RawMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &ParseError{Err: err}
	}
	return w, nil
}

// decodeVector accepts a JSON array of numbers or a base64 string of
// little-endian float32 values.
func decodeVector(data json.RawMessage) ([]float32, error) {
	switch firstByte(data) {
	case '[':
		// Pointers, because encoding/json leaves a number untouched on null.
		var elems []*float32
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, err
		}
		vec := make([]float32, len(elems))
		for i, f := range elems {
			if f == nil {
				return nil, fmt.Errorf("component %d is null", i)
			}
			vec[i] = *f
		}
		return vec, nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decode base64 vector: %w", err)
		}
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("base64 vector has %d bytes, not a multiple of 4", len(raw))
		}
		vec := make([]float32, len(raw)/4)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return vec, nil
	default:
		return nil, fmt.Errorf("embedding must be an array of numbers or a base64 string, got %s", data)
	}
}

// decodeField unmarshals one required value, reporting absence and type
// mismatches as a *ParseError naming the field.
func decodeField(name string, data json.RawMessage, v any) error {
	if isNull(data) {
		return &ParseError{Field: name, Err: ErrMissingField}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ParseError{Field: name, Err: err}
	}
	return nil
}

func withPrefix(prefix string, err error) error {
	var pe *ParseError
	if !errors.As(err, &pe) {
		return &ParseError{Field: prefix, Err: err}
	}
	if pe.Field == "" {
		return &ParseError{Field: prefix, Err: pe.Err}
	}
	return &ParseError{Field: prefix + "." + pe.Field, Err: pe.Err}
}

func isNull(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}

func firstByte(data []byte) byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}
	return data[0]
}
