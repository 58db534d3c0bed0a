// Package query is the FLQL dispatcher: it parses a statement via
// flql.Parse and executes it against a single flinchdb.Database,
// returning a QueryResult that never panics or propagates a raw error to
// the caller.
package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"flinch/collection"
	"flinch/document"
	"flinch/flinchdb"
	"flinch/query/expr"
	"flinch/query/flql"
)

// QueryResult is the uniform response shape every statement execution
// produces.
type QueryResult struct {
	Data      []interface{} `json:"data"`
	Error     string        `json:"error,omitempty"`
	TimeTaken string        `json:"time_taken"`
}

// Dispatcher executes FLQL statements against a single database.
type Dispatcher struct {
	db *flinchdb.Database
}

// New binds a dispatcher to db.
func New(db *flinchdb.Database) *Dispatcher {
	return &Dispatcher{db: db}
}

// Execute parses and runs a single FLQL statement.
func (d *Dispatcher) Execute(raw string) QueryResult {
	start := time.Now()

	stmt, err := flql.Parse(raw)
	if err != nil {
		return errResult(start, err)
	}

	data, err := d.dispatch(stmt)
	if err != nil {
		return errResult(start, err)
	}
	return QueryResult{Data: data, TimeTaken: time.Since(start).String()}
}

func errResult(start time.Time, err error) QueryResult {
	return QueryResult{Error: err.Error(), TimeTaken: time.Since(start).String()}
}

func (d *Dispatcher) dispatch(stmt *flql.Statement) ([]interface{}, error) {
	switch stmt.Kind {
	case flql.KindNew:
		var opts document.Options
		if err := json.Unmarshal([]byte(stmt.JSON), &opts); err != nil {
			return nil, err
		}
		_, err := d.db.Add(&opts)
		return nil, err
	case flql.KindDrop:
		return nil, d.db.Drop(stmt.Collection)
	case flql.KindFlush:
		c, err := d.db.Using(stmt.Collection)
		if err != nil {
			return nil, err
		}
		return nil, c.FlushBkp()
	case flql.KindExists:
		c, err := d.db.Using(stmt.Collection)
		if err != nil {
			return nil, err
		}
		_, ok := c.Get(stmt.Pointer)
		return []interface{}{ok}, nil
	case flql.KindLength:
		c, err := d.db.Using(stmt.Collection)
		if err != nil {
			return nil, err
		}
		return []interface{}{c.Len()}, nil
	case flql.KindTTL:
		return d.dispatchTTL(stmt)
	case flql.KindPut:
		return d.dispatchPut(stmt)
	case flql.KindSearch:
		c, err := d.db.Using(stmt.Collection)
		if err != nil {
			return nil, err
		}
		return itemsToData(c.Search(strings.Fields(stmt.Query))), nil
	case flql.KindLikeSearch:
		c, err := d.db.Using(stmt.Collection)
		if err != nil {
			return nil, err
		}
		return itemsToData(c.LikeSearch(strings.Fields(stmt.Query))), nil
	case flql.KindGet:
		return d.dispatchGet(stmt)
	case flql.KindDelete:
		return d.dispatchDelete(stmt)
	default:
		return nil, fmt.Errorf("query: statement %v is not a database-scoped operation", stmt.Kind)
	}
}

func (d *Dispatcher) dispatchTTL(stmt *flql.Statement) ([]interface{}, error) {
	c, err := d.db.Using(stmt.Collection)
	if err != nil {
		return nil, err
	}
	pred, err := expr.Compile(stmt.If)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	for _, item := range c.Iter() {
		if pred.Eval(item.Document) {
			if err := c.PutTTL(item.Pointer, now+stmt.Seconds); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (d *Dispatcher) dispatchPut(stmt *flql.Statement) ([]interface{}, error) {
	c, err := d.db.Using(stmt.Collection)
	if err != nil {
		return nil, err
	}

	if stmt.When != "" {
		pred, err := expr.Compile(stmt.When)
		if err != nil {
			return nil, err
		}
		var affected []interface{}
		for _, item := range c.Iter() {
			if pred.Eval(item.Document) {
				if _, err := c.Put(item.Pointer, []byte(stmt.JSON)); err != nil {
					return nil, err
				}
				affected = append(affected, item.Pointer)
			}
		}
		return affected, nil
	}

	pointer := stmt.Pointer
	if pointer == "" {
		pointer = uuid.NewString()
	}
	if _, err := c.Put(pointer, []byte(stmt.JSON)); err != nil {
		return nil, err
	}
	return []interface{}{pointer}, nil
}

func (d *Dispatcher) dispatchGet(stmt *flql.Statement) ([]interface{}, error) {
	c, err := d.db.Using(stmt.Collection)
	if err != nil {
		return nil, err
	}

	switch {
	case stmt.Pointer != "":
		obj, ok := c.Get(stmt.Pointer)
		if !ok {
			return nil, nil
		}
		return []interface{}{withPointer(obj, stmt.Pointer)}, nil
	case stmt.ViewName != "":
		return itemsToData(c.FetchView(stmt.ViewName)), nil
	case stmt.ClipName != "":
		return itemsToData(c.FetchClip(stmt.ClipName)), nil
	case stmt.IndexKey != "":
		item, ok := c.GetIndex(stmt.IndexKey)
		if !ok {
			return nil, nil
		}
		return []interface{}{itemToMap(item)}, nil
	case stmt.RangeOn != "":
		return itemsToData(c.FetchRange(stmt.RangeOn, stmt.RangeFrom, stmt.RangeTo)), nil
	default:
		items := c.Iter()
		if stmt.When != "" {
			pred, err := expr.Compile(stmt.When)
			if err != nil {
				return nil, err
			}
			filtered := items[:0:0]
			for _, it := range items {
				if pred.Eval(it.Document) {
					filtered = append(filtered, it)
				}
			}
			items = filtered
		}
		items = applySort(items, stmt.Sort)
		items = applyPage(items, stmt.Page)
		return itemsToData(items), nil
	}
}

func (d *Dispatcher) dispatchDelete(stmt *flql.Statement) ([]interface{}, error) {
	c, err := d.db.Using(stmt.Collection)
	if err != nil {
		return nil, err
	}

	switch {
	case stmt.Pointer != "":
		_, err := c.Delete(stmt.Pointer)
		return nil, err
	case stmt.ClipName != "":
		_, err := c.DeleteByClip(stmt.ClipName)
		return nil, err
	case stmt.When != "":
		pred, err := expr.Compile(stmt.When)
		if err != nil {
			return nil, err
		}
		for _, it := range c.Iter() {
			if pred.Eval(it.Document) {
				if _, err := c.Delete(it.Pointer); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	default:
		return nil, c.Empty()
	}
}

// applySort sorts items by the string form of the named field, per the
// dispatcher's UTF-8 byte-comparison sort rule. Stability is not
// guaranteed.
func applySort(items []collection.Item, s *flql.SortSpec) []collection.Item {
	if s == nil {
		return items
	}
	sort.Slice(items, func(i, j int) bool {
		vi := fmt.Sprint(items[i].Document[s.Field])
		vj := fmt.Sprint(items[j].Document[s.Field])
		if s.Desc {
			return vi > vj
		}
		return vi < vj
	})
	return items
}

// applyPage clamps [offset, offset+count) to the slice bounds; an offset
// at or beyond the length yields an empty result.
func applyPage(items []collection.Item, p *flql.PageSpec) []collection.Item {
	if p == nil {
		return items
	}
	if p.Offset >= len(items) {
		return nil
	}
	end := p.Offset + p.Count
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}

func withPointer(doc map[string]interface{}, pointer string) map[string]interface{} {
	out := make(map[string]interface{}, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["_pointer"] = pointer
	return out
}

func itemToMap(it collection.Item) map[string]interface{} {
	return withPointer(it.Document, it.Pointer)
}

func itemsToData(items []collection.Item) []interface{} {
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[i] = itemToMap(it)
	}
	return out
}
