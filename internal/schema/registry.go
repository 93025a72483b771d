package schema

import (
	"fmt"
	"strings"
)

// Collection names a persisted document collection.
type Collection string

// The seven lifeplan collections.
const (
	Plans               Collection = "plans"
	PlanVersions        Collection = "planVersions"
	ScenarioAssumptions Collection = "scenarioAssumptions"
	MonthlyRecords      Collection = "monthlyRecords"
	MonthlyItems        Collection = "monthlyItems"
	LifeEvents          Collection = "lifeEvents"
	HousingAssumptions  Collection = "housingAssumptions"
)

// Index declares a secondary index over one or more document fields.
type Index struct {
	Name    string
	KeyPath []string
	Unique  bool
}

// Store declares one collection: its primary key path and secondary indexes.
type Store struct {
	Name    Collection
	KeyPath string
	Indexes []Index
}

// Registry is the full declared schema. Version is written to
// PRAGMA user_version once the registry has been applied.
type Registry struct {
	Version int
	Stores  []Store
}

// Default is the lifeplan schema.
var Default = Registry{
	Version: 1,
	Stores: []Store{
		{
			Name:    Plans,
			KeyPath: "id",
			Indexes: []Index{
				{Name: "userId", KeyPath: []string{"userId"}},
				{Name: "status", KeyPath: []string{"status"}},
				{Name: "userId_status", KeyPath: []string{"userId", "status"}},
				{Name: "userId_updatedAt", KeyPath: []string{"userId", "updatedAt"}},
			},
		},
		{
			Name:    PlanVersions,
			KeyPath: "id",
			Indexes: []Index{
				{Name: "planId", KeyPath: []string{"planId"}},
				{Name: "planId_versionNo", KeyPath: []string{"planId", "versionNo"}, Unique: true},
			},
		},
		{
			Name:    ScenarioAssumptions,
			KeyPath: "id",
			Indexes: []Index{
				{Name: "planVersionId", KeyPath: []string{"planVersionId"}},
				{Name: "planVersionId_scenarioKey", KeyPath: []string{"planVersionId", "scenarioKey"}, Unique: true},
			},
		},
		{
			Name:    MonthlyRecords,
			KeyPath: "id",
			Indexes: []Index{
				{Name: "planId", KeyPath: []string{"planId"}},
				{Name: "planId_ym", KeyPath: []string{"planId", "ym"}, Unique: true},
			},
		},
		{
			Name:    MonthlyItems,
			KeyPath: "id",
			Indexes: []Index{
				{Name: "monthlyRecordId", KeyPath: []string{"monthlyRecordId"}},
			},
		},
		{
			Name:    LifeEvents,
			KeyPath: "id",
			Indexes: []Index{
				{Name: "planVersionId", KeyPath: []string{"planVersionId"}},
				{Name: "planVersionId_startYm", KeyPath: []string{"planVersionId", "startYm"}},
			},
		},
		{
			Name:    HousingAssumptions,
			KeyPath: "id",
			Indexes: []Index{
				{Name: "planVersionId", KeyPath: []string{"planVersionId"}},
				{Name: "planVersionId_housingType", KeyPath: []string{"planVersionId", "housingType"}, Unique: true},
			},
		},
	},
}

// All lists every collection in declaration order.
func All() []Collection {
	return Default.Collections()
}

// Collections lists the registry's collections in declaration order.
func (r Registry) Collections() []Collection {
	out := make([]Collection, 0, len(r.Stores))
	for _, st := range r.Stores {
		out = append(out, st.Name)
	}
	return out
}

// Lookup returns the declaration for a collection.
func (r Registry) Lookup(c Collection) (Store, bool) {
	for _, st := range r.Stores {
		if st.Name == c {
			return st, true
		}
	}
	return Store{}, false
}

// Index returns the named secondary index of the collection.
func (s Store) Index(name string) (Index, bool) {
	for _, ix := range s.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return Index{}, false
}

// Table returns the quoted table name of the collection.
func (s Store) Table() string {
	return quoteIdent(string(s.Name))
}

// CreateTableSQL renders the idempotent table definition.
func (s Store) CreateTableSQL() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY NOT NULL, doc TEXT NOT NULL);", s.Table())
}

// CreateIndexSQL renders the idempotent definition of one secondary index.
func (s Store) CreateIndexSQL(ix Index) string {
	kind := "INDEX"
	if ix.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s);",
		kind, quoteIdent(IndexSQLName(s.Name, ix)), s.Table(), strings.Join(ix.Exprs(), ", "))
}

// IndexSQLName is the SQLite name of a declared index.
func IndexSQLName(c Collection, ix Index) string {
	return string(c) + "__" + ix.Name
}

// Exprs returns the SQL expressions of the index key, one per key-path field.
func (ix Index) Exprs() []string {
	out := make([]string, len(ix.KeyPath))
	for i, field := range ix.KeyPath {
		out[i] = FieldExpr(field)
	}
	return out
}

// FieldExpr is the SQL expression extracting a document field.
func FieldExpr(field string) string {
	return fmt.Sprintf("json_extract(doc, '$.%s')", field)
}

// DDL renders every statement of the registry, one per line.
func (r Registry) DDL() string {
	var b strings.Builder
	for _, st := range r.Stores {
		b.WriteString(st.CreateTableSQL())
		b.WriteByte('\n')
		for _, ix := range st.Indexes {
			b.WriteString(st.CreateIndexSQL(ix))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
