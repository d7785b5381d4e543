package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	pkgopenapi "github.com/neuroplatform/simforms/pkg/openapi"
	"github.com/neuroplatform/simforms/pkg/schema"
)

// Parser implements pkgopenapi.Parser using kin-openapi.
type Parser struct {
	options pkgopenapi.ParserOptions
}

// Ensure the implementation satisfies the public interface.
var _ pkgopenapi.Parser = (*Parser)(nil)

// New constructs a Parser with the given options.
func New(options pkgopenapi.ParserOptions) pkgopenapi.Parser {
	return &Parser{options: options}
}

// Operations converts a Document into a map keyed by operationId. Request
// schemas are taken from the decoded payload rather than kin-openapi structs so
// their $ref pointers survive for the schema resolver.
func (p *Parser) Operations(ctx context.Context, doc schema.Document) (pkgopenapi.Operations, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := doc.Raw()
	if len(raw) == 0 {
		return nil, errors.New("openapi parser: document payload is empty")
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = false

	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi parser: load document: %w", err)
	}
	if p.options.Validate {
		if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi parser: validate: %w", err)
		}
	}

	resolver := schema.NewResolver(doc, schema.ResolveOptions{})
	paths, _ := doc.Payload()["paths"].(map[string]any)

	operations := make(pkgopenapi.Operations)
	if spec.Paths != nil {
		for path, item := range spec.Paths.Map() {
			if item == nil {
				continue
			}
			rawItem, _ := paths[path].(map[string]any)
			for method, operation := range item.Operations() {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				op, err := p.collectOperation(resolver, rawItem, method, path, operation)
				if err != nil {
					return nil, err
				}
				operations[op.ID] = op
			}
		}
	}

	if len(operations) == 0 && !p.options.AllowEmpty {
		return nil, errors.New("openapi parser: no operations extracted")
	}
	return operations, nil
}

func (p *Parser) collectOperation(resolver *schema.Resolver, rawItem map[string]any, method, path string, operation *openapi3.Operation) (pkgopenapi.Operation, error) {
	opID := operation.OperationID
	if opID == "" {
		opID = strings.ToLower(method) + ":" + path
	}

	rawOperation, _ := rawItem[strings.ToLower(method)].(map[string]any)
	request, err := requestSchema(resolver, rawOperation)
	if err != nil {
		return pkgopenapi.Operation{}, fmt.Errorf("openapi parser: %s %s: %w", method, path, err)
	}

	op, err := pkgopenapi.NewOperation(opID, method, path, request)
	if err != nil {
		return pkgopenapi.Operation{}, err
	}
	op.Summary = operation.Summary
	op.Description = operation.Description
	if len(operation.Tags) > 0 {
		op.Tags = append([]string(nil), operation.Tags...)
	}
	if operation.RequestBody != nil && operation.RequestBody.Value != nil {
		op.RequestRequired = operation.RequestBody.Value.Required
	}
	return op, nil
}

var preferredMediaTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
}

// requestSchema returns the raw schema node of the operation's request body.
// The body itself may be a reference into components/requestBodies.
func requestSchema(resolver *schema.Resolver, rawOperation map[string]any) (schema.Node, error) {
	rawBody, ok := rawOperation["requestBody"].(map[string]any)
	if !ok {
		return nil, nil
	}
	body, err := resolver.Resolve(rawBody)
	if err != nil {
		return nil, err
	}
	content, _ := body["content"].(map[string]any)
	if len(content) == 0 {
		return nil, nil
	}
	for _, mediaType := range preferredMediaTypes {
		if node := mediaSchema(content[mediaType]); node != nil {
			return node, nil
		}
	}
	for _, name := range sortedKeys(content) {
		if node := mediaSchema(content[name]); node != nil {
			return node, nil
		}
	}
	return nil, nil
}

func mediaSchema(value any) schema.Node {
	media, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	node, _ := media["schema"].(map[string]any)
	return node
}
