package protocol

// ServerIdentity describes the server to clients. It appears in the
// hello message on the push channel and in the HTTP info endpoint.
type ServerIdentity struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	HTTPPort      int    `json:"httpPort"`
	WSPort        int    `json:"wsPort"`
	RequiresToken bool   `json:"requiresToken"`
}
