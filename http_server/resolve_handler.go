package http_server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danthegoodman1/icefields/part"
	"github.com/danthegoodman1/icefields/resolver"
	"github.com/danthegoodman1/icefields/source"
	"github.com/danthegoodman1/icefields/table"
	"github.com/danthegoodman1/icefields/virtual"
)

type (
	ResolveReqBody struct {
		// Line-delimited JSON (NDJSON)
		RowsString *string
		// Array of JSON
		Rows []map[string]any
		// Defaults to every virtual field of the table
		Fields []string `validate:"dive,required"`
		// The physical columns of the rows, in position order. Defaults to the
		// table config columns, then to the sorted keys of the rows.
		Columns []string `validate:"omitempty,unique,dive,required"`
		// Write the resolved rows to the output datastore as parquet parts
		WriteParts bool
	}

	ResolveResponse struct {
		Batch *resolver.Batch
		Parts []part.Part `json:",omitempty"`
	}
)

func (s *HTTPServer) ResolveRows(c *CustomContext) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second*60)
	defer cancel()

	var reqBody ResolveReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	rows, err := reqBody.flatRows()
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	if len(rows) == 0 {
		return c.String(http.StatusBadRequest, "no rows found")
	}
	if reqBody.WriteParts && s.Resolver.DataStore == nil {
		return c.String(http.StatusBadRequest, resolver.ErrNoDataStore.Error())
	}

	cfg, err := s.Resolver.MetaStore.GetTableConfig(ctx, c.Param("table"))
	if err != nil {
		return c.TableError(err, "error getting table config")
	}
	schema, err := requestSchema(cfg, reqBody.Columns, rows)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	reg, err := resolver.NewRegistry(cfg, schema)
	if err != nil {
		return c.TableError(err, "error building registry")
	}

	b, err := resolver.ResolveRows(ctx, reg, rows, reqBody.Fields)
	if err != nil {
		return c.InternalError(err, "error resolving rows")
	}

	resp := ResolveResponse{Batch: b}
	if reqBody.WriteParts {
		resp.Parts, err = s.Resolver.WriteParts(ctx, b)
		if err != nil {
			return c.InternalError(err, "error writing parts")
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (body ResolveReqBody) flatRows() ([]map[string]any, error) {
	if body.RowsString != nil {
		return source.ReadNDJSON(strings.NewReader(*body.RowsString))
	}
	rows := make([]map[string]any, 0, len(body.Rows))
	for i, row := range body.Rows {
		flat, err := source.FlattenRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, flat)
	}
	return rows, nil
}

func requestSchema(cfg virtual.TableConfig, columns []string, rows []map[string]any) (*table.Schema, error) {
	if len(columns) > 0 {
		return table.NewSchema(columns...)
	}
	schema, err := cfg.Schema()
	if err != nil || schema != nil {
		return schema, err
	}
	return source.InferSchema(rows)
}
