package http_server

import (
	"fmt"
	"net/http"

	"github.com/danthegoodman1/icefields/resolver"
	"github.com/danthegoodman1/icefields/utils"
	"github.com/danthegoodman1/icefields/virtual"
)

func (s *HTTPServer) ListTables(c *CustomContext) error {
	tables, err := s.Resolver.MetaStore.ListTables(c.Request().Context())
	if err != nil {
		return c.InternalError(err, "error listing tables")
	}
	return c.JSON(http.StatusOK, utils.ArrayOrEmpty(tables))
}

func (s *HTTPServer) GetTableConfig(c *CustomContext) error {
	cfg, err := s.Resolver.MetaStore.GetTableConfig(c.Request().Context(), c.Param("table"))
	if err != nil {
		return c.TableError(err, "error getting table config")
	}
	return c.JSON(http.StatusOK, cfg)
}

// PutTableConfig stores the config of a table. Configs that list their
// columns are checked by building a registry before being stored.
func (s *HTTPServer) PutTableConfig(c *CustomContext) error {
	var cfg virtual.TableConfig
	// validated after the name defaults to the table
	if err := c.Bind(&cfg); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	tableName := c.Param("table")
	if cfg.Name == "" {
		cfg.Name = tableName
	}
	if cfg.Name != tableName {
		return c.String(http.StatusBadRequest, fmt.Sprintf("config name %q does not match table %q", cfg.Name, tableName))
	}

	if err := cfg.Validate(); err != nil {
		return c.TableError(err, "error validating table config")
	}
	if len(cfg.Columns) > 0 {
		if _, err := resolver.NewRegistry(cfg, nil); err != nil {
			return c.TableError(err, "error building registry")
		}
	}

	if err := s.Resolver.MetaStore.PutTableConfig(c.Request().Context(), cfg); err != nil {
		return c.TableError(err, "error putting table config")
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *HTTPServer) ListGenerators(c *CustomContext) error {
	return c.JSON(http.StatusOK, virtual.RegisteredGenerators())
}
