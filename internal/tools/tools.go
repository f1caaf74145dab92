package tools

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/xscopehub/datajud-bridge/internal/datajud"
	"github.com/xscopehub/datajud-bridge/internal/types"
)

// Tool names.
const (
	NameSearch    = "search"
	NameFetch     = "fetch"
	NameByNumber  = "buscar_por_numero"
	NameByClass   = "buscar_por_classe"
	NameMovements = "movimentacoes"
)

const (
	defaultSearchSize = 10
	defaultClassSize  = 10
)

// movementFields is the _source projection used by movimentacoes.
var movementFields = []string{"numeroProcesso", "movimentos", "classe", "orgaoJulgador", "tribunal"}

// Searcher runs one upstream search. Blank aliases resolve to the default
// partition.
type Searcher interface {
	Search(ctx context.Context, alias string, q datajud.Query) (datajud.Result, error)
}

// Service implements the DataJud tools on top of a Searcher.
type Service struct {
	searcher Searcher
}

// NewService creates a tool service.
func NewService(s Searcher) *Service {
	return &Service{searcher: s}
}

// Search returns the case numbers matching query, for a later fetch. Only the
// case number field is requested from upstream.
func (s *Service) Search(ctx context.Context, args types.Arguments) (types.Envelope, error) {
	query, err := requiredString(args, "query")
	if err != nil {
		return nil, err
	}
	size, err := optionalSize(args, "size", defaultSearchSize)
	if err != nil {
		return nil, err
	}
	alias, err := aliasArg(args)
	if err != nil {
		return nil, err
	}

	q := datajud.Match(datajud.FieldNumero, query).Size(size).Includes(datajud.FieldNumero)
	res, err := s.searcher.Search(ctx, alias, q)
	if err != nil {
		return nil, err
	}

	return types.NewEnvelope(map[string]any{"ids": collectIDs(res, size)}), nil
}

// Fetch returns the full document for an id previously returned by Search.
func (s *Service) Fetch(ctx context.Context, args types.Arguments) (types.Envelope, error) {
	id, err := requiredString(args, "id")
	if err != nil {
		return nil, err
	}
	alias, err := aliasArg(args)
	if err != nil {
		return nil, err
	}
	return s.first(ctx, alias, id)
}

// ByNumber returns the document of a case number, or null.
func (s *Service) ByNumber(ctx context.Context, args types.Arguments) (types.Envelope, error) {
	numero, err := requiredString(args, "numero_cnj")
	if err != nil {
		return nil, err
	}
	alias, err := aliasArg(args)
	if err != nil {
		return nil, err
	}
	return s.first(ctx, alias, numero)
}

// ByClass lists documents whose classe.codigo equals classe_codigo.
func (s *Service) ByClass(ctx context.Context, args types.Arguments) (types.Envelope, error) {
	classe, err := requiredInt(args, "classe_codigo")
	if err != nil {
		return nil, err
	}
	size, err := optionalSize(args, "size", defaultClassSize)
	if err != nil {
		return nil, err
	}
	alias, err := aliasArg(args)
	if err != nil {
		return nil, err
	}

	res, err := s.searcher.Search(ctx, alias, datajud.Term(datajud.FieldClasseCodigo, classe).Size(size))
	if err != nil {
		return nil, err
	}

	results := res.Sources()
	return types.NewEnvelope(map[string]any{
		"count":   len(results),
		"results": results,
	}), nil
}

// Movements returns the movement history of a case number. A missing case
// yields an empty list.
func (s *Service) Movements(ctx context.Context, args types.Arguments) (types.Envelope, error) {
	numero, err := requiredString(args, "numero_cnj")
	if err != nil {
		return nil, err
	}
	alias, err := aliasArg(args)
	if err != nil {
		return nil, err
	}

	q := datajud.Match(datajud.FieldNumero, numero).Size(1).Includes(movementFields...)
	res, err := s.searcher.Search(ctx, alias, q)
	if err != nil {
		return nil, err
	}

	movimentos := json.RawMessage("[]")
	if src := res.FirstSource(); src != nil {
		if v := gjson.GetBytes(src, datajud.FieldMovimentos); v.IsArray() {
			movimentos = json.RawMessage(v.Raw)
		}
	}

	return types.NewEnvelope(map[string]any{
		"numeroProcesso": numero,
		"movimentos":     movimentos,
	}), nil
}

func (s *Service) first(ctx context.Context, alias, numero string) (types.Envelope, error) {
	res, err := s.searcher.Search(ctx, alias, datajud.Match(datajud.FieldNumero, numero).Size(1))
	if err != nil {
		return nil, err
	}
	return types.NewEnvelope(map[string]any{"result": res.FirstSource()}), nil
}

// collectIDs returns distinct, non-empty case numbers in hit order.
func collectIDs(res datajud.Result, limit int) []string {
	ids := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, v := range res.SourceField(datajud.FieldNumero) {
		if len(ids) == limit {
			break
		}
		if v.Type == gjson.Null {
			continue
		}
		id := v.String()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
