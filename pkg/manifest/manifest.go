package manifest

// Version is overridden at build time with -ldflags "-X".
var Version = "1.0.0"

const (
	// Name identifies the service to tool-calling clients.
	Name        = "datajud-bridge"
	description = "Ferramentas de consulta processual sobre a API pública do DataJud (CNJ)."
)

// Manifest represents the service contract exposed to clients.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	EntryPoint  string   `json:"entry_point"`
	Discovery   string   `json:"discovery"`
	MCP         string   `json:"mcp"`
	Tools       []string `json:"tools"`
}

// New builds the manifest for the given tool names.
func New(tools []string) Manifest {
	return Manifest{
		Name:        Name,
		Version:     Version,
		Description: description,
		EntryPoint:  "/invoke/{tool}",
		Discovery:   "/sse",
		MCP:         "/mcp",
		Tools:       append([]string(nil), tools...),
	}
}
