package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-comunas/internal/metrics"
	"github.com/joeblew999/plat-comunas/internal/service"
	"github.com/joeblew999/plat-comunas/internal/transfer"
)

type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

type ImportInput struct {
	RawBody []byte `contentType:"text/csv"`
}

type ImportBody struct {
	Rows        int    `json:"rows" doc:"Rows applied" example:"12"`
	Skipped     int    `json:"skipped" doc:"Rows ignored (short, empty code or color, unknown color)" example:"1"`
	Assignments int    `json:"assignments" doc:"Assignment table size after the import" example:"12"`
	Message     string `json:"message" doc:"Result message"`
}

// RegisterTransfer registers CSV export and import.
func (h *APIHandler) RegisterTransfer(api huma.API) {
	huma.Get(api, "/api/v1/export", h.Export, huma.OperationTags("transfer"))
	huma.Post(api, "/api/v1/import", h.Import, huma.OperationTags("transfer"))
}

func (h *APIHandler) Export(ctx context.Context, input *struct{}) (*ExportOutput, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	snap := h.svc.Controller.Snapshot()

	var buf bytes.Buffer
	if _, err := transfer.Export(&buf, snap.Assignments, ds.Index, snap.Labels, h.svc.Palette); err != nil {
		return nil, huma.Error500InternalServerError("writing csv", err)
	}
	metrics.CSVExportsTotal.Inc()

	name := h.svc.ExportName
	if name == "" {
		name = transfer.DefaultFilename
	}
	return &ExportOutput{
		ContentType:        "text/csv; charset=utf-8",
		ContentDisposition: fmt.Sprintf(`attachment; filename="%s"`, name),
		Body:               buf.Bytes(),
	}, nil
}

func (h *APIHandler) Import(ctx context.Context, input *ImportInput) (*struct{ Body ImportBody }, error) {
	res, err := transfer.Import(bytes.NewReader(input.RawBody), h.svc.Palette)
	if err != nil {
		var fe *transfer.FormatError
		if errors.As(err, &fe) {
			metrics.CSVImportsTotal.WithLabelValues("format_error").Inc()
			return nil, huma.Error422UnprocessableEntity("could not import the CSV: " + fe.Error())
		}
		metrics.CSVImportsTotal.WithLabelValues("error").Inc()
		return nil, huma.Error400BadRequest("reading body", err)
	}

	h.svc.Controller.Replace(ctx, service.Assignments(res.Assignments), service.Labels(res.Labels))
	metrics.CSVImportsTotal.WithLabelValues("ok").Inc()

	return &struct{ Body ImportBody }{Body: ImportBody{
		Rows:        res.Rows,
		Skipped:     res.Skipped,
		Assignments: len(h.svc.Controller.Assignments()),
		Message:     fmt.Sprintf("imported %d rows", res.Rows),
	}}, nil
}
