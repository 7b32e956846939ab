package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/danthegoodman1/icefields/datastore"
	"github.com/danthegoodman1/icefields/gologger"
	"github.com/danthegoodman1/icefields/metastore"
	"github.com/danthegoodman1/icefields/source"
	"github.com/danthegoodman1/icefields/table"
	"github.com/danthegoodman1/icefields/utils"
	"github.com/danthegoodman1/icefields/virtual"
)

var (
	logger = gologger.NewLogger()

	ErrNoSchema       = errors.New("table has no columns configured and no schema was given")
	ErrSchemaMismatch = errors.New("source schema does not match the registry schema")
	ErrNoDataStore    = errors.New("no datastore to write parts to")
)

type (
	// Resolver resolves the fields of table rows using the table configs held
	// by MetaStore. DataStore is only needed to write parts.
	Resolver struct {
		MetaStore metastore.MetaStore
		DataStore datastore.DataStore
	}

	RowResult struct {
		// Num is the row number within the source
		Num           int64
		RecordKey     string
		PartitionPath string
		Fields        map[string]string
		// Error is the first error resolving the row, the other values are
		// empty when set
		Error string            `json:",omitempty"`
		Code  virtual.ErrorCode `json:",omitempty"`
	}

	Stats struct {
		NumRows       int64
		NumErrors     int64
		NumPartitions int64
		TimeMS        int64
	}

	Batch struct {
		ID        string
		Table     string
		SessionID string
		// Fields are the resolved field names, in request order
		Fields []string
		// ProjectionColumns are the physical columns the fields were read from
		ProjectionColumns []string
		// KeyFields lists the identity fields the rows carry
		KeyFields []string
		Rows      []RowResult
		Stats     Stats
	}
)

func New(ms metastore.MetaStore, ds datastore.DataStore) (*Resolver, error) {
	if ms == nil {
		return nil, fmt.Errorf("resolver needs a metastore")
	}
	return &Resolver{
		MetaStore: ms,
		DataStore: ds,
	}, nil
}

// Registry builds the registry of tableName against schema. A nil schema
// falls back to the columns listed in the table config.
func (r *Resolver) Registry(ctx context.Context, tableName string, schema *table.Schema) (*virtual.Registry, error) {
	cfg, err := r.MetaStore.GetTableConfig(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("error in GetTableConfig: %w", err)
	}
	return NewRegistry(cfg, schema)
}

// NewRegistry builds a registry for cfg, using the config columns when schema
// is nil.
func NewRegistry(cfg virtual.TableConfig, schema *table.Schema) (*virtual.Registry, error) {
	if schema == nil {
		var err error
		schema, err = cfg.Schema()
		if err != nil {
			return nil, err
		}
		if schema == nil {
			return nil, fmt.Errorf("table %s: %w", cfg.Name, ErrNoSchema)
		}
	}
	reg, err := virtual.NewRegistry(cfg, schema)
	if err != nil {
		return nil, fmt.Errorf("error in virtual.NewRegistry: %w", err)
	}
	return reg, nil
}

// ResolveSource builds the registry of tableName against the schema of src
// and resolves every row of it.
func (r *Resolver) ResolveSource(ctx context.Context, tableName string, src source.Source, fields []string) (*Batch, error) {
	reg, err := r.Registry(ctx, tableName, src.Schema())
	if err != nil {
		return nil, err
	}
	return Resolve(ctx, reg, src, fields)
}

// Resolve drains src, resolving fields for every row. Rows that fail to
// resolve carry their error, only source errors abort the batch. No fields
// means every non identity virtual field.
func Resolve(ctx context.Context, reg *virtual.Registry, src source.Source, fields []string) (*Batch, error) {
	if !sameSchema(reg.Schema(), src.Schema()) {
		return nil, ErrSchemaMismatch
	}
	ctx = gologger.WithTable(ctx, reg.Table())
	logger := zerolog.Ctx(ctx)

	start := time.Now()
	b := newBatch(reg, fields)
	for {
		row, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading row %d: %w", b.Stats.NumRows, err)
		}
		b.add(ResolveRow(reg, row, b.Fields))
	}
	b.finish(start)

	logger.Debug().Str("batchID", b.ID).Int64("rows", b.Stats.NumRows).Int64("errors", b.Stats.NumErrors).Int64("partitions", b.Stats.NumPartitions).Int64("timeMS", b.Stats.TimeMS).Msg("resolved batch")
	return b, nil
}

// ResolveRows resolves rows already laid out against the registry schema.
func ResolveRows(ctx context.Context, reg *virtual.Registry, rows []map[string]any, fields []string) (*Batch, error) {
	return Resolve(ctx, reg, source.NewMapSource(reg.Schema(), rows), fields)
}

// ResolveRow resolves the identity fields and fields of one row. Identity
// fields that are neither virtual nor stored are skipped.
func ResolveRow(reg *virtual.Registry, row table.Record, fields []string) RowResult {
	res := RowResult{}
	if r, ok := row.(*table.Row); ok {
		res.Num = r.Num
	}

	key, err := resolveKey(reg, row)
	if err != nil {
		return res.fail(err)
	}
	values, err := reg.Accessor().GetFields(fields, row)
	if err != nil {
		return res.fail(err)
	}

	res.RecordKey = key.RecordKey
	res.PartitionPath = key.PartitionPath
	res.Fields = make(map[string]string, len(fields))
	for i, name := range fields {
		res.Fields[name] = values[i]
	}
	return res
}

func resolveKey(reg *virtual.Registry, row table.Record) (virtual.Key, error) {
	keys := reg.Keys()
	wantRK, wantPP := keyFields(reg)
	switch {
	case wantRK && wantPP:
		return keys.Key(row)
	case wantRK:
		rk, err := keys.RecordKey(row)
		return virtual.Key{RecordKey: rk}, err
	case wantPP:
		pp, err := keys.PartitionPath(row)
		return virtual.Key{PartitionPath: pp}, err
	default:
		return virtual.Key{}, nil
	}
}

func keyFields(reg *virtual.Registry) (recordKey, partitionPath bool) {
	_, rkStored := reg.Schema().Pos(virtual.RecordKeyField)
	_, ppStored := reg.Schema().Pos(virtual.PartitionPathField)
	return reg.IsRecordKeyVirtual() || rkStored, reg.IsPartitionPathVirtual() || ppStored
}

func (res RowResult) fail(err error) RowResult {
	res.Error = err.Error()
	res.Code = virtual.CodeOf(err)
	return res
}

// Failed reports whether the row could not be resolved.
func (res RowResult) Failed() bool {
	return res.Error != ""
}

func newBatch(reg *virtual.Registry, fields []string) *Batch {
	if len(fields) == 0 {
		for _, name := range reg.VirtualFields() {
			if name != virtual.RecordKeyField && name != virtual.PartitionPathField {
				fields = append(fields, name)
			}
		}
	}

	b := &Batch{
		ID:        utils.GenKSortedID("b_"),
		Table:     reg.Table(),
		SessionID: reg.SessionID(),
		Fields:    fields,
		Rows:      []RowResult{},
	}
	wantRK, wantPP := keyFields(reg)
	if wantRK {
		b.KeyFields = append(b.KeyFields, virtual.RecordKeyField)
	}
	if wantPP {
		b.KeyFields = append(b.KeyFields, virtual.PartitionPathField)
	}

	cols := reg.ProjectionColumns(append(append([]string{}, b.KeyFields...), fields...)...)
	b.ProjectionColumns = make([]string, 0, len(cols))
	for _, pos := range cols {
		if name, ok := reg.Schema().Name(pos); ok {
			b.ProjectionColumns = append(b.ProjectionColumns, name)
		}
	}
	return b
}

func (b *Batch) add(res RowResult) {
	b.Rows = append(b.Rows, res)
	b.Stats.NumRows++
	if res.Failed() {
		b.Stats.NumErrors++
	}
}

func (b *Batch) finish(start time.Time) {
	b.Stats.NumPartitions = int64(len(b.Partitions()))
	b.Stats.TimeMS = time.Since(start).Milliseconds()
}

// Partitions returns the distinct partition paths of the resolved rows, in
// order of first appearance.
func (b *Batch) Partitions() []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, res := range b.Rows {
		if res.Failed() {
			continue
		}
		if _, ok := seen[res.PartitionPath]; ok {
			continue
		}
		seen[res.PartitionPath] = struct{}{}
		paths = append(paths, res.PartitionPath)
	}
	return paths
}

// Record flattens a resolved row into an output row: the identity fields the
// batch carries followed by the resolved fields.
func (b *Batch) Record(res RowResult) map[string]any {
	m := make(map[string]any, len(b.KeyFields)+len(res.Fields))
	for _, name := range b.KeyFields {
		switch name {
		case virtual.RecordKeyField:
			m[name] = res.RecordKey
		case virtual.PartitionPathField:
			m[name] = res.PartitionPath
		}
	}
	for name, v := range res.Fields {
		m[name] = v
	}
	return m
}

func sameSchema(a, b *table.Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	an, bn := a.ColumnNames(), b.ColumnNames()
	if len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i] != bn[i] {
			return false
		}
	}
	return true
}
