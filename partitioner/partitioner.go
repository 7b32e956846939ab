package partitioner

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/danthegoodman1/icefields/table"
	"github.com/danthegoodman1/icefields/utils"
)

type (
	PartitionPlan struct {
		Func string
		Args []string
		As   string
	}

	PartitionFunc func(row table.Record, args []string) (string, error)
)

var (
	Functions = make(map[string]PartitionFunc)

	registerOnce sync.Once

	ErrFuncNotFound = errors.New("partition function not found")

	ErrMissingArgs       = errors.New("missing args")
	ErrMissingColumns    = errors.New("missing one or more columns specified in args")
	ErrInvalidColumnType = errors.New("invalid column type")
	ErrInvalidPlan       = errors.New("invalid partition plan")

	planRegexp = regexp.MustCompile(`^([A-Za-z0-9_\-]+)=([A-Za-z]+)\(([^()]*)\)$`)
)

func init() {
	RegisterFunctions()
}

func RegisterFunctions() {
	registerOnce.Do(func() {
		Functions["value"] = func(row table.Record, args []string) (string, error) {
			if len(args) == 0 {
				return "", ErrMissingArgs
			}
			v, p := row.Get(args[0])
			if p != table.Present {
				return "", ErrMissingColumns
			}
			return table.ValueString(v), nil
		}
		Functions["toDate"] = timeFunc(func(t time.Time) string {
			return t.Format("2006-01-02")
		})
		Functions["toHour"] = timeFunc(func(t time.Time) string {
			return fmt.Sprintf("%02d", t.Hour())
		})
		Functions["toDay"] = timeFunc(func(t time.Time) string {
			return fmt.Sprintf("%02d", t.Day())
		})
		Functions["toMonth"] = timeFunc(func(t time.Time) string {
			return fmt.Sprintf("%02d", int(t.Month()))
		})
		Functions["toYear"] = timeFunc(func(t time.Time) string {
			return fmt.Sprint(t.Year())
		})
		Functions["toYearDay"] = timeFunc(func(t time.Time) string {
			return fmt.Sprintf("%03d", t.YearDay())
		})
		Functions["toYearWeek"] = timeFunc(func(t time.Time) string {
			year, week := t.ISOWeek()
			return fmt.Sprintf("%d-%02d", year, week)
		})
		Functions["toWeekDay"] = timeFunc(func(t time.Time) string {
			return fmt.Sprint(int(t.Weekday()))
		})
	})
}

func timeFunc(format func(t time.Time) string) PartitionFunc {
	return func(row table.Record, args []string) (string, error) {
		t, err := parseTimeFunc(row, args)
		if err != nil {
			return "", fmt.Errorf("error in parseTimeFunc: %w", err)
		}
		return format(t), nil
	}
}

// ParsePlans parses a comma separated plan list like
// `year=toYear(ts),month=toMonth(ts)`. Function names are checked against the
// registered functions.
func ParsePlans(s string) ([]PartitionPlan, error) {
	var plans []PartitionPlan
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		m := planRegexp.FindStringSubmatch(raw)
		if m == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, raw)
		}
		if _, ok := Functions[m[2]]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrFuncNotFound, m[2])
		}
		var args []string
		for _, arg := range strings.Split(m[3], " ") {
			if arg = strings.TrimSpace(arg); arg != "" {
				args = append(args, arg)
			}
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPlan, raw, ErrMissingArgs)
		}
		plans = append(plans, PartitionPlan{Func: m[2], Args: args, As: m[1]})
	}
	return plans, nil
}

// Columns returns the column names the plans read, in first use order.
func Columns(plans []PartitionPlan) []string {
	var cols []string
	for _, plan := range plans {
		if len(plan.Args) > 0 && !utils.ContainsString(cols, plan.Args[0]) {
			cols = append(cols, plan.Args[0])
		}
	}
	return cols
}

func GetRowPartition(row table.Record, partitioners []PartitionPlan) (string, error) {
	var finalParts []string
	for _, partFunc := range partitioners {
		f, ok := Functions[partFunc.Func]
		if !ok {
			return "", ErrFuncNotFound
		}

		s, err := f(row, partFunc.Args)
		if err != nil {
			return "", fmt.Errorf("error processing partition function %s: %w", partFunc.Func, err)
		}
		finalParts = append(finalParts, fmt.Sprintf("%s=%s", partFunc.As, s))
	}
	return strings.Join(finalParts, "/"), nil
}

func parseTimeFunc(row table.Record, args []string) (t time.Time, err error) {
	if len(args) == 0 {
		err = ErrMissingArgs
		return
	}

	value, p := row.Get(args[0])
	if p != table.Present {
		err = ErrMissingColumns
		return
	}

	switch val := value.(type) {
	case string:
		// We have a datetime like YYYY-MM-DDTHH:mm:ss.sssZ
		t, err = time.Parse("2006-01-02T15:04:05.000Z", val)
		if err != nil {
			t, err = time.Parse(time.RFC3339Nano, val)
		}
		if err != nil {
			err = fmt.Errorf("error in time.Parse for string: %w", err)
		}
	case float64:
		// JSON numbers are floats, treat as unix ms
		t = time.UnixMilli(int64(val))
	case int64:
		t = time.UnixMilli(val)
	case json.Number:
		if ms, convErr := val.Int64(); convErr == nil {
			t = time.UnixMilli(ms)
			break
		}
		f, convErr := val.Float64()
		if convErr != nil {
			err = fmt.Errorf("error in json.Number.Float64: %w", convErr)
			return
		}
		t = time.UnixMilli(int64(f))
	case time.Time:
		t = val
	default:
		err = ErrInvalidColumnType
	}
	t = t.UTC()
	return
}
