package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/crudkit/pkg/document"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// printer renders documents as JSON or as an aligned table.
type printer struct {
	w        io.Writer
	jsonMode bool
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) documents(docs []*document.Document) error {
	if docs == nil {
		docs = []*document.Document{}
	}
	if p.jsonMode {
		return p.json(docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(p.w, "no records")
		return nil
	}

	cols := map[string]bool{}
	for _, d := range docs {
		for k := range d.Fields {
			cols[k] = true
		}
	}
	keys := append([]string{"id"}, slices.Sorted(maps.Keys(cols))...)

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(keys, "\t")))
	for _, d := range docs {
		cells := make([]string, len(keys))
		for i, k := range keys {
			cells[i] = cell(d.Get(k))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func (p printer) page(pg *types.Page[*document.Document]) error {
	if p.jsonMode {
		return p.json(pg)
	}
	if err := p.documents(pg.Items); err != nil {
		return err
	}
	fmt.Fprintf(p.w, "page %d of %d (%d total)\n", pg.CurrentPage, pg.LastPage, pg.Total)
	return nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}
