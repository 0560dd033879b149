package output

import (
	"encoding/json"

	"github.com/clauselens/clauselens/internal/ailink"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatReport renders a report as JSON.
func (f *JSONFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatPools renders pool status as JSON.
func (f *JSONFormatter) FormatPools(pools []ailink.PoolStatus) (string, error) {
	if pools == nil {
		pools = []ailink.PoolStatus{}
	}
	return f.marshal(map[string]any{"pools": pools})
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
