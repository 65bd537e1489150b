// Package llm is the boundary to the hosted generative model. Callers build a
// provider-neutral Request; adapters translate it to a concrete API.
package llm

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

var ErrEmptyResponse = errors.New("llm: empty response")

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// InlineData is binary content carried inside a request, such as a chart image.
type InlineData struct {
	MIMEType string
	Data     []byte
}

// Part is either text or inline data.
type Part struct {
	Text   string
	Inline *InlineData
}

func TextPart(text string) Part { return Part{Text: text} }

func ImagePart(mimeType string, data []byte) Part {
	return Part{Inline: &InlineData{MIMEType: mimeType, Data: data}}
}

// Content is one turn of a conversation.
type Content struct {
	Role  string
	Parts []Part
}

type Request struct {
	Model      string
	System     string
	Contents   []Content
	Schema     *jsonschema.Schema
	SchemaName string
}

// Client generates a single text (or JSON) completion.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
