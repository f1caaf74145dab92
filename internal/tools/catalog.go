package tools

import (
	"fmt"

	"github.com/xscopehub/datajud-bridge/internal/registry"
	"github.com/xscopehub/datajud-bridge/internal/types"
)

// Catalog returns the static tool descriptors, advertising defaultAlias as
// the alias default.
func Catalog(defaultAlias string) []types.ToolDescriptor {
	alias := types.Property{
		Type:        "string",
		Description: fmt.Sprintf("Alias DataJud (padrão: %s).", defaultAlias),
		Default:     defaultAlias,
	}

	return []types.ToolDescriptor{
		{
			Name:        NameSearch,
			Description: "Busca processos pelo número CNJ e retorna apenas os identificadores (numeroProcesso) para uso em fetch.",
			InputSchema: types.InputSchema{
				Type: "object",
				Properties: map[string]types.Property{
					"query": {Type: "string", Description: "Número CNJ ou trecho a pesquisar."},
					"size":  {Type: "integer", Description: "Quantidade máxima de identificadores.", Default: defaultSearchSize},
					"alias": alias,
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        NameFetch,
			Description: "Retorna o documento completo de um processo a partir do identificador devolvido por search.",
			InputSchema: types.InputSchema{
				Type: "object",
				Properties: map[string]types.Property{
					"id":    {Type: "string", Description: "Identificador (numeroProcesso) retornado por search."},
					"alias": alias,
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        NameByNumber,
			Description: "Busca 1 processo pelo número CNJ (numeroProcesso) no TJ/RJ.",
			InputSchema: types.InputSchema{
				Type: "object",
				Properties: map[string]types.Property{
					"numero_cnj": {Type: "string", Description: "Número único CNJ sem máscara."},
					"alias":      alias,
				},
				Required: []string{"numero_cnj"},
			},
		},
		{
			Name:        NameByClass,
			Description: "Lista processos por código de classe (classe.codigo) no TJ/RJ.",
			InputSchema: types.InputSchema{
				Type: "object",
				Properties: map[string]types.Property{
					"classe_codigo": {Type: "integer"},
					"size":          {Type: "integer", Default: defaultClassSize},
					"alias":         {Type: "string", Default: defaultAlias},
				},
				Required: []string{"classe_codigo"},
			},
		},
		{
			Name:        NameMovements,
			Description: "Retorna a lista de movimentos (movimentos[]) de um processo pelo número CNJ.",
			InputSchema: types.InputSchema{
				Type: "object",
				Properties: map[string]types.Property{
					"numero_cnj": {Type: "string"},
					"alias":      {Type: "string", Default: defaultAlias},
				},
				Required: []string{"numero_cnj"},
			},
		},
	}
}

// Register adds every catalog tool, bound to svc, to reg.
func Register(reg *registry.Registry, svc *Service, defaultAlias string) {
	handlers := map[string]registry.ToolFunc{
		NameSearch:    svc.Search,
		NameFetch:     svc.Fetch,
		NameByNumber:  svc.ByNumber,
		NameByClass:   svc.ByClass,
		NameMovements: svc.Movements,
	}
	for _, desc := range Catalog(defaultAlias) {
		reg.RegisterTool(desc, handlers[desc.Name])
	}
}
