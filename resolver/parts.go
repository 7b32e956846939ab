package resolver

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/danthegoodman1/icefields/gologger"
	"github.com/danthegoodman1/icefields/parquet_accumulator"
	"github.com/danthegoodman1/icefields/part"
	"github.com/danthegoodman1/icefields/utils"
)

// WriteParts writes the resolved rows of b to the datastore, one parquet
// file per partition path. Failed rows are not written.
func (r *Resolver) WriteParts(ctx context.Context, b *Batch) ([]part.Part, error) {
	if r.DataStore == nil {
		return nil, ErrNoDataStore
	}
	ctx = gologger.WithTable(ctx, b.Table)
	logger := zerolog.Ctx(ctx)

	byPartition := make(map[string][]map[string]any)
	for _, res := range b.Rows {
		if res.Failed() {
			continue
		}
		byPartition[res.PartitionPath] = append(byPartition[res.PartitionPath], b.Record(res))
	}

	var parts []part.Part
	for _, partitionPath := range b.Partitions() {
		rows := byPartition[partitionPath]

		var buf bytes.Buffer
		cols, err := parquet_accumulator.WriteParquet(&buf, rows)
		if err != nil {
			return nil, fmt.Errorf("error writing parquet for partition %q: %w", partitionPath, err)
		}

		id := utils.GenKSortedID("")
		p := part.Part{
			ID:            id,
			Table:         b.Table,
			PartitionPath: partitionPath,
			FileName:      part.FileName(b.Table, partitionPath, id),
			Rows:          int64(len(rows)),
			Bytes:         int64(buf.Len()),
			Columns:       cols,
			CreatedAt:     time.Now(),
		}
		if err := r.DataStore.WriteFile(ctx, p.FileName, &buf); err != nil {
			return nil, fmt.Errorf("error in WriteFile for %s: %w", p.FileName, err)
		}
		logger.Debug().Str("batchID", b.ID).Str("fileName", p.FileName).Int64("rows", p.Rows).Int64("bytes", p.Bytes).Msg("wrote part")
		parts = append(parts, p)
	}
	return parts, nil
}
