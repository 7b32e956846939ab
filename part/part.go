package part

import (
	"path"
	"time"
)

type (
	// Part is one resolved output file. Rows of a batch are split into parts
	// by their partition path.
	Part struct {
		ID            string
		Table         string
		PartitionPath string
		// FileName is the path of the file within the datastore
		FileName  string
		Rows      int64
		Bytes     int64
		Columns   []string
		CreatedAt time.Time
	}
)

// FileName lays out parts as table/partition/path/id.parquet, unpartitioned
// parts sit directly under the table.
func FileName(table, partitionPath, id string) string {
	if partitionPath == "" {
		return path.Join(table, id+".parquet")
	}
	return path.Join(table, partitionPath, id+".parquet")
}
