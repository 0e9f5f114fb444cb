package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataDir string
	storage string
	source  string
	object  string
}

func NewInfoHandler(dataDir, storage, source, object string) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, storage: storage, source: source, object: object}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Storage  string   `json:"storage" doc:"State storage backend" example:"file"`
	Dataset  string   `json:"dataset" doc:"TopoJSON location"`
	Object   string   `json:"object" doc:"Topology object holding the communes" example:"Comunas_de_Chile"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-comunas",
		Version:  Version,
		DataDir:  h.dataDir,
		Storage:  h.storage,
		Dataset:  h.source,
		Object:   h.object,
		Features: []string{"topojson", "boundaries", "labels", "csv", "datastar", h.storage},
	}}, nil
}
