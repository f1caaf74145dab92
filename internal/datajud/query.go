package datajud

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Fields of the DataJud process document the bridge queries on.
const (
	FieldNumero       = "numeroProcesso"
	FieldClasseCodigo = "classe.codigo"
	FieldMovimentos   = "movimentos"
)

// Query is a single-page Elasticsearch-style search body.
type Query struct {
	clause   map[string]any
	size     int
	includes []string
}

// Match builds a match query on field.
func Match(field string, value any) Query {
	return Query{clause: map[string]any{"match": map[string]any{field: value}}}
}

// Term builds an exact term query on field.
func Term(field string, value any) Query {
	return Query{clause: map[string]any{"term": map[string]any{field: value}}}
}

// Size sets the requested page size.
func (q Query) Size(n int) Query {
	q.size = n
	return q
}

// Includes restricts the returned _source to the given fields.
func (q Query) Includes(fields ...string) Query {
	q.includes = append([]string(nil), fields...)
	return q
}

// MarshalJSON renders the search request body.
func (q Query) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"query": q.clause,
		"size":  q.size,
	}
	if len(q.includes) > 0 {
		body["_source"] = map[string]any{"includes": q.includes}
	}
	return json.Marshal(body)
}

// Result wraps a raw upstream search response.
type Result struct {
	Alias string
	Raw   json.RawMessage
}

// Hits returns the hits.hits array. Missing or malformed arrays yield nil.
func (r Result) Hits() []gjson.Result {
	hits := gjson.GetBytes(r.Raw, "hits.hits")
	if !hits.IsArray() {
		return nil
	}
	return hits.Array()
}

// FirstSource returns the raw _source of the first hit, or nil when there is
// no hit or the first hit carries an empty document.
func (r Result) FirstSource() json.RawMessage {
	hits := r.Hits()
	if len(hits) == 0 {
		return nil
	}
	src := sourceOf(hits[0])
	if src == nil || len(gjson.ParseBytes(src).Map()) == 0 {
		return nil
	}
	return src
}

// Sources returns the raw _source of every hit that has one.
func (r Result) Sources() []json.RawMessage {
	hits := r.Hits()
	sources := make([]json.RawMessage, 0, len(hits))
	for _, hit := range hits {
		if src := sourceOf(hit); src != nil {
			sources = append(sources, src)
		}
	}
	return sources
}

// SourceField returns field from the _source of every hit, in hit order.
// Hits where the field is absent are skipped.
func (r Result) SourceField(field string) []gjson.Result {
	hits := r.Hits()
	values := make([]gjson.Result, 0, len(hits))
	for _, hit := range hits {
		v := hit.Get("_source." + field)
		if v.Exists() {
			values = append(values, v)
		}
	}
	return values
}

func sourceOf(hit gjson.Result) json.RawMessage {
	src := hit.Get("_source")
	if !src.IsObject() {
		return nil
	}
	return json.RawMessage(src.Raw)
}
