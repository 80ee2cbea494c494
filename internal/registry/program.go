package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Input is an untyped role parameter document.
type Input map[string]any

// DecodeInput parses doc into an Input. An empty document is an empty
// Input.
func DecodeInput(doc []byte) (any, error) {
	in := Input{}
	if len(bytes.TrimSpace(doc)) == 0 {
		return in, nil
	}
	if err := yaml.Unmarshal(doc, &in); err != nil {
		return nil, fmt.Errorf("decoding input document: %w", err)
	}
	return in, nil
}

// NewFunc builds a program taking an untyped Input.
func NewFunc(name string, fn func(ctx context.Context, in Input, rc *RoleContext) (any, error)) *Program {
	return &Program{
		Name:   name,
		Decode: DecodeInput,
		Run: func(ctx context.Context, input any, rc *RoleContext) (any, error) {
			return fn(ctx, input.(Input), rc)
		},
	}
}

// Typed builds a program whose parameter document is decoded strictly into
// T. Unknown keys fail the decode.
func Typed[T any](name string, fn func(ctx context.Context, in *T, rc *RoleContext) (any, error)) *Program {
	return &Program{
		Name: name,
		Decode: func(doc []byte) (any, error) {
			in := new(T)
			dec := yaml.NewDecoder(bytes.NewReader(doc))
			dec.KnownFields(true)
			if err := dec.Decode(in); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decoding input document into %T: %w", in, err)
			}
			return in, nil
		},
		Run: func(ctx context.Context, input any, rc *RoleContext) (any, error) {
			return fn(ctx, input.(*T), rc)
		},
	}
}
