package partitioner

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danthegoodman1/icefields/table"
)

func row(m map[string]any) table.Record {
	cols := make([]string, 0, len(m))
	for k := range m {
		cols = append(cols, k)
	}
	return table.RowFromMap(table.MustSchema(cols...), 0, m)
}

func TestToDay(t *testing.T) {
	RegisterFunctions()

	f := Functions["toDay"]

	day, err := f(row(map[string]any{"t": "2022-01-24T00:00:00.000Z"}), []string{"t"})
	if err != nil {
		t.Fatal(err)
	}

	if day != "24" {
		t.Fatal("mismatched date for t string")
	}

	day, err = f(row(map[string]any{"t": 1672406408279.0}), []string{"t"})
	if err != nil {
		t.Fatal(err)
	}

	if day != "30" {
		t.Fatal("mismatched date for t float")
	}

	day, err = f(row(map[string]any{"t": int64(1672406408279)}), []string{"t"})
	if err != nil {
		t.Fatal(err)
	}

	if day != "30" {
		t.Fatal("mismatched date for t int64")
	}

	day, err = f(row(map[string]any{"t": json.Number("1672406408279")}), []string{"t"})
	if err != nil {
		t.Fatal(err)
	}

	if day != "30" {
		t.Fatal("mismatched date for t json.Number")
	}

	_, err = f(row(map[string]any{"t": true}), []string{"t"})
	if !errors.Is(err, ErrInvalidColumnType) {
		t.Fatal("did not get invalid col type")
	}

	_, err = f(row(map[string]any{"t": nil}), []string{"t"})
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatal("did not get missing columns for null")
	}
}

func TestGetRowPartition(t *testing.T) {
	plans, err := ParsePlans("year=toYear(ts), month=toMonth(ts),day=toDay(ts),region=value(region)")
	if err != nil {
		t.Fatal(err)
	}

	if len(plans) != 4 || plans[3].Func != "value" || plans[3].As != "region" {
		t.Fatalf("bad plans %+v", plans)
	}

	cols := Columns(plans)
	if len(cols) != 2 || cols[0] != "ts" || cols[1] != "region" {
		t.Fatalf("bad columns %+v", cols)
	}

	part, err := GetRowPartition(row(map[string]any{"ts": "2022-01-24T00:00:00.000Z", "region": "eu"}), plans)
	if err != nil {
		t.Fatal(err)
	}

	if part != "year=2022/month=01/day=24/region=eu" {
		t.Fatalf("got partition %s", part)
	}
}

func TestParsePlansErrors(t *testing.T) {
	if _, err := ParsePlans("year=toCentury(ts)"); !errors.Is(err, ErrFuncNotFound) {
		t.Fatalf("expected func not found, got %v", err)
	}
	if _, err := ParsePlans("toYear(ts)"); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected invalid plan, got %v", err)
	}
	if _, err := ParsePlans("year=toYear()"); !errors.Is(err, ErrMissingArgs) {
		t.Fatalf("expected missing args, got %v", err)
	}
}
