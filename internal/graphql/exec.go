package graphql

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

// executableSchema runs operations against the Resolver. Root fields call a
// fieldResolver; nested values are projected from their JSON form by the
// selection set, so every view type must carry the schema's field names as
// JSON tags.
type executableSchema struct {
	resolver *Resolver
}

// NewExecutableSchema binds the resolver to the embedded schema.
func NewExecutableSchema(resolver *Resolver) graphql.ExecutableSchema {
	return &executableSchema{resolver: resolver}
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Complexity(ctx context.Context, typeName, field string, childComplexity int, args map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)

	var (
		root   string
		fields map[string]fieldResolver
	)
	switch opCtx.Operation.Operation {
	case ast.Query:
		root, fields = "Query", e.resolver.queryFields()
	case ast.Mutation:
		root, fields = "Mutation", e.resolver.mutationFields()
	default:
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}

	first := true
	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false

		data := e.execRoot(ctx, opCtx, root, fields)
		raw, err := json.Marshal(data)
		if err != nil {
			graphql.AddError(ctx, err)
			return &graphql.Response{Data: json.RawMessage("null")}
		}
		return &graphql.Response{Data: raw}
	}
}

// execRoot resolves root fields in document order. Mutations must run
// serially, and queries share the path.
func (e *executableSchema) execRoot(ctx context.Context, opCtx *graphql.OperationContext, root string, fields map[string]fieldResolver) object {
	out := object{}
	for _, field := range graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{root}) {
		switch field.Name {
		case "__typename":
			out.set(responseKey(field), root)
			continue
		case "__schema", "__type":
			fieldCtx := graphql.WithFieldContext(ctx, &graphql.FieldContext{Object: root, Field: field})
			graphql.AddError(fieldCtx, gqlerror.Errorf("introspection disabled"))
			out.set(responseKey(field), nil)
			continue
		}
		resolve, ok := fields[field.Name]
		if !ok {
			fieldCtx := graphql.WithFieldContext(ctx, &graphql.FieldContext{Object: root, Field: field})
			graphql.AddError(fieldCtx, gqlerror.Errorf("field %s.%s has no resolver", root, field.Name))
			out.set(responseKey(field), nil)
			continue
		}
		out.set(responseKey(field), e.resolveField(ctx, opCtx, root, field, resolve))
	}
	return out
}

func (e *executableSchema) resolveField(ctx context.Context, opCtx *graphql.OperationContext, root string, field graphql.CollectedField, resolve fieldResolver) (ret any) {
	args := field.ArgumentMap(opCtx.Variables)
	fc := &graphql.FieldContext{
		Object:     root,
		Field:      field,
		Args:       args,
		IsMethod:   true,
		IsResolver: true,
	}
	ctx = graphql.WithFieldContext(ctx, fc)
	defer func() {
		if p := recover(); p != nil {
			graphql.AddError(ctx, opCtx.Recover(ctx, p))
			ret = nil
		}
	}()

	res, err := opCtx.ResolverMiddleware(ctx, func(ctx context.Context) (any, error) {
		return resolve(ctx, arguments(args))
	})
	if err != nil {
		graphql.AddError(ctx, err)
		return nil
	}
	fc.Result = res

	value, err := plain(res)
	if err != nil {
		graphql.AddError(ctx, fmt.Errorf("encode %s.%s: %w", root, field.Name, err))
		return nil
	}
	return project(opCtx, field.Definition.Type, field.Selections, value)
}

// plain converts a resolver result into decoded JSON values.
func plain(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// project keeps the selected fields of value, recursing through lists and
// objects. Scalars, including JSON, pass through whole.
func project(opCtx *graphql.OperationContext, typ *ast.Type, sel ast.SelectionSet, value any) any {
	if value == nil || len(sel) == 0 {
		return value
	}
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = project(opCtx, typ, sel, item)
		}
		return out
	case map[string]any:
		named := typ.Name()
		out := object{}
		for _, field := range graphql.CollectFields(opCtx, sel, []string{named}) {
			if field.Name == "__typename" {
				out.set(responseKey(field), named)
				continue
			}
			out.set(responseKey(field), project(opCtx, field.Definition.Type, field.Selections, v[field.Name]))
		}
		return out
	default:
		return value
	}
}

func responseKey(field graphql.CollectedField) string {
	if field.Alias != "" {
		return field.Alias
	}
	return field.Name
}

// object is a response map that keeps selection order.
type object struct {
	keys   []string
	values map[string]any
}

func (o *object) set(key string, value any) {
	if o.values == nil {
		o.values = map[string]any{}
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(o.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
