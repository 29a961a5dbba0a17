package relational

import (
	"fmt"
	"strings"
)

// Column describes one column of a registered table.
type Column struct {
	Name        string
	Type        string // SQLite type affinity: TEXT, INTEGER, REAL
	Description string // shown to the planner; empty is fine
}

// Table describes one registered table. Schemas are declared here and fixed
// at data-load time; they are never inferred from data.
type Table struct {
	Name        string
	Description string
	Columns     []Column
}

// DDL renders the CREATE TABLE statement for the table.
func (t Table) DDL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", t.Name)
	for i, col := range t.Columns {
		fmt.Fprintf(&b, "    %s %s", col.Name, col.Type)
		if i < len(t.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Registry is the enumerable set of tables a query may reference.
// It also renders the schema summary given to the planner prompt.
type Registry struct {
	tables []Table
	byName map[string]Table
}

// NewRegistry builds a registry from the given tables. Table order is
// preserved for schema rendering.
func NewRegistry(tables ...Table) *Registry {
	byName := make(map[string]Table, len(tables))
	for _, t := range tables {
		byName[strings.ToLower(t.Name)] = t
	}
	return &Registry{tables: tables, byName: byName}
}

// Default returns the registry for the showroom dataset: monthly sales
// figures and per-model technical specifications.
func Default() *Registry {
	return NewRegistry(
		Table{
			Name:        "sales",
			Description: "Monthly new-vehicle registrations. One row per brand, model, powertrain, country and month.",
			Columns: []Column{
				{Name: "brand", Type: "TEXT", Description: "manufacturer brand, e.g. Toyota, Lexus"},
				{Name: "model", Type: "TEXT", Description: "model name, e.g. RAV4, Yaris Hybrid, Hilux"},
				{Name: "powertrain", Type: "TEXT", Description: "powertrain variant, e.g. HEV, PHEV, BEV, petrol, diesel, 48V"},
				{Name: "country", Type: "TEXT", Description: "market country, e.g. Germany, France, United Kingdom"},
				{Name: "region", Type: "TEXT", Description: "sales region, e.g. Western Europe"},
				{Name: "year", Type: "INTEGER", Description: "calendar year"},
				{Name: "month", Type: "INTEGER", Description: "calendar month, 1-12"},
				{Name: "units", Type: "INTEGER", Description: "vehicles registered"},
			},
		},
		Table{
			Name:        "specs",
			Description: "Technical specifications per brand, model and model year.",
			Columns: []Column{
				{Name: "brand", Type: "TEXT", Description: "manufacturer brand"},
				{Name: "model", Type: "TEXT", Description: "model name"},
				{Name: "year", Type: "INTEGER", Description: "model year"},
				{Name: "powertrain", Type: "TEXT", Description: "powertrain variant"},
				{Name: "body_type", Type: "TEXT", Description: "e.g. SUV, hatchback, pickup, coupe"},
				{Name: "fuel_type", Type: "TEXT", Description: "e.g. petrol, diesel, hybrid, electric"},
				{Name: "seats", Type: "INTEGER", Description: "seat count"},
				{Name: "towing_capacity_kg", Type: "INTEGER", Description: "braked towing capacity in kilograms"},
			},
		},
	)
}

// Tables returns the registered tables in declaration order.
func (r *Registry) Tables() []Table {
	return r.tables
}

// Lookup returns the table with the given name (case-insensitive).
func (r *Registry) Lookup(name string) (Table, bool) {
	t, ok := r.byName[strings.ToLower(name)]
	return t, ok
}

// Names returns the registered table names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tables))
	for i, t := range r.tables {
		names[i] = t.Name
	}
	return names
}

// SchemaSummary renders the schema description given to the planner.
// One block per table: the table purpose, then each column with its type
// and meaning.
func (r *Registry) SchemaSummary() string {
	var b strings.Builder
	for i, t := range r.tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "table %s: %s\n", t.Name, t.Description)
		for _, col := range t.Columns {
			if col.Description != "" {
				fmt.Fprintf(&b, "  %s %s - %s\n", col.Name, col.Type, col.Description)
			} else {
				fmt.Fprintf(&b, "  %s %s\n", col.Name, col.Type)
			}
		}
	}
	return b.String()
}
