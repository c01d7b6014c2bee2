package queryengine

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var ErrUnknownRequestShape = errors.New("data did not match any variant of untagged enum GraphQlBody")

// SingleQuery is one GraphQL operation.
type SingleQuery struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// RequestBody is a single query or a batch of queries.
type RequestBody struct {
	Single      *SingleQuery
	Batch       []SingleQuery
	Transaction bool
}

// IsBatch reports whether the body is a batch.
func (b RequestBody) IsBatch() bool {
	return b.Single == nil
}

type wireRequestBody struct {
	Query         *string        `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
	Batch         []SingleQuery  `json:"batch"`
	Transaction   bool           `json:"transaction"`
}

// DecodeRequestBody decodes a single query `{"query": ...}` or a batch `{"batch": [...], "transaction": bool}`.
func DecodeRequestBody(data []byte) (RequestBody, error) {
	var wire wireRequestBody
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &wire); err != nil {
		return RequestBody{}, err
	}

	switch {
	case wire.Batch != nil:
		return RequestBody{Batch: wire.Batch, Transaction: wire.Transaction}, nil
	case wire.Query != nil:
		return RequestBody{Single: &SingleQuery{
			Query:         *wire.Query,
			Variables:     wire.Variables,
			OperationName: wire.OperationName,
		}}, nil
	default:
		return RequestBody{}, ErrUnknownRequestShape
	}
}
