package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// TypeSubscribe is the observer stream's only client message.
const TypeSubscribe = "SUBSCRIBE"

var schemaFiles = map[string]string{
	TypeHello:        "hello.schema.json",
	TypeClick:        "action.schema.json",
	TypeDoubleClick:  "action.schema.json",
	TypeFlag:         "action.schema.json",
	TypeUnflag:       "action.schema.json",
	TypeQuery:        "query.schema.json",
	TypeSubscribe:    "subscribe.schema.json",
	TypeWelcome:      "welcome.schema.json",
	TypeChunk:        "chunk.schema.json",
	TypeRect:         "rect.schema.json",
	TypeFlagged:      "flag.schema.json",
	TypeUnflagged:    "flag.schema.json",
	TypePlayer:       "player.schema.json",
	TypeDisconnected: "disconnected.schema.json",
	TypeError:        "error.schema.json",
}

var clientTypes = map[string]bool{
	TypeHello:       true,
	TypeClick:       true,
	TypeDoubleClick: true,
	TypeFlag:        true,
	TypeUnflag:      true,
	TypeQuery:       true,
	TypeSubscribe:   true,
}

var ErrUnknownType = errors.New("protocol: unknown message type")

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func schemaURL(name string) string { return "mem:///schemas/" + name }

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		byFile := map[string]*jsonschema.Schema{}
		for _, name := range schemaFiles {
			if _, ok := byFile[name]; ok {
				continue
			}
			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = err
				return
			}
			if err := c.AddResource(schemaURL(name), bytes.NewReader(raw)); err != nil {
				schemasErr = fmt.Errorf("protocol: add schema %s: %w", name, err)
				return
			}
			byFile[name] = nil
		}
		out := map[string]*jsonschema.Schema{}
		for name := range byFile {
			s, err := c.Compile(schemaURL(name))
			if err != nil {
				schemasErr = fmt.Errorf("protocol: compile %s: %w", name, err)
				return
			}
			byFile[name] = s
		}
		for typ, name := range schemaFiles {
			out[typ] = byFile[name]
		}
		schemas = out
	})
	return schemas, schemasErr
}

// Validate checks raw against the schema for its type and returns the
// decoded envelope.
func Validate(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, fmt.Errorf("protocol: %w", err)
	}
	all, err := loadSchemas()
	if err != nil {
		return base, err
	}
	s, ok := all[base.Type]
	if !ok {
		return base, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return base, fmt.Errorf("protocol: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return base, fmt.Errorf("protocol: %s: %w", base.Type, err)
	}
	return base, nil
}

// ValidateClient is Validate restricted to messages a client may send.
func ValidateClient(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, fmt.Errorf("protocol: %w", err)
	}
	if !clientTypes[base.Type] {
		return base, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	return Validate(raw)
}
