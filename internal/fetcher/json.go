package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
)

// ReadJSON reads a JSON array of flat objects, or an object whose "results"
// member is such an array (the UniProt REST search layout). Scalars are
// stringified and nested values keep their JSON encoding.
func ReadJSON(ctx context.Context, r io.Reader, opts LoadOptions) (*model.Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := openArray(dec); err != nil {
		return nil, err
	}

	ds := model.NewDataset(opts.Name, opts.IDField)
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "json: read cancelled")
		}
		var item map[string]any
		if err := dec.Decode(&item); err != nil {
			return nil, eris.Wrapf(err, "json: decode element %d", ds.Len())
		}
		rec := make(model.Record, len(item))
		for k, v := range item {
			rec[k] = stringify(v)
		}
		ds.Append(rec)
	}

	if ds.IDField == "" {
		if len(ds.Columns) == 0 {
			return nil, eris.New("fetcher: empty json dataset needs an explicit id field")
		}
		ds.IDField = ds.Columns[0]
	}
	return ds, nil
}

// openArray advances dec past the opening bracket of the record array.
func openArray(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "json: read opening token")
	}
	switch tok {
	case json.Delim('['):
		return nil
	case json.Delim('{'):
		for dec.More() {
			key, err := dec.Token()
			if err != nil {
				return eris.Wrap(err, "json: read key")
			}
			if key == "results" {
				tok, err := dec.Token()
				if err != nil || tok != json.Delim('[') {
					return eris.New("json: \"results\" is not an array")
				}
				return nil
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return eris.Wrapf(err, "json: skip %v", key)
			}
		}
		return eris.New("json: object has no \"results\" array")
	default:
		return eris.Errorf("json: expected '[' or '{', got %v", tok)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
