package store

import (
	"strconv"
	"strings"

	"ledger/internal/ledger/models"
)

// table maps one record kind to its SQL table. Meta columns are shared;
// columns lists the kind's own columns, parent foreign key first.
type table struct {
	name    string
	parent  string
	columns []string
	values  func(e models.Entity) []any
	dest    func(e models.Entity) []any
}

var metaColumns = []string{"id", "version", "is_deleted", "created_at", "created_by", "updated_at", "updated_by"}

func metaDest(m *models.Meta) []any {
	return []any{&m.ID, &m.Version, &m.IsDeleted, &m.CreatedAt, &m.CreatedBy, &m.UpdatedAt, &m.UpdatedBy}
}

var tables = map[models.Kind]table{
	models.KindDocument: {
		name:    "documents",
		columns: []string{"document_number", "document_type", "partner_id", "document_date", "due_date", "currency", "description"},
		values: func(e models.Entity) []any {
			d := e.(*models.Document)
			return []any{d.DocumentNumber, d.DocumentType, d.PartnerID, d.DocumentDate, d.DueDate, d.Currency, d.Description}
		},
		dest: func(e models.Entity) []any {
			d := e.(*models.Document)
			return []any{&d.DocumentNumber, &d.DocumentType, &d.PartnerID, &d.DocumentDate, &d.DueDate, &d.Currency, &d.Description}
		},
	},
	models.KindLineItem: {
		name:    "document_line_items",
		parent:  "document_id",
		columns: []string{"document_id", "article_id", "quantity", "invoice_price", "discount_amount", "margin_amount", "tax_rate_id", "calculate_excise", "calculate_tax", "description"},
		values: func(e models.Entity) []any {
			l := e.(*models.LineItem)
			return []any{l.DocumentID, l.ArticleID, l.Quantity, l.InvoicePrice, l.DiscountAmount, l.MarginAmount, l.TaxRateID, l.CalculateExcise, l.CalculateTax, l.Description}
		},
		dest: func(e models.Entity) []any {
			l := e.(*models.LineItem)
			return []any{&l.DocumentID, &l.ArticleID, &l.Quantity, &l.InvoicePrice, &l.DiscountAmount, &l.MarginAmount, &l.TaxRateID, &l.CalculateExcise, &l.CalculateTax, &l.Description}
		},
	},
	models.KindCost: {
		name:    "document_costs",
		parent:  "document_id",
		columns: []string{"document_id", "partner_id", "cost_type", "currency", "exchange_rate", "due_date", "description"},
		values: func(e models.Entity) []any {
			c := e.(*models.Cost)
			return []any{c.DocumentID, c.PartnerID, c.CostType, c.Currency, c.ExchangeRate, c.DueDate, c.Description}
		},
		dest: func(e models.Entity) []any {
			c := e.(*models.Cost)
			return []any{&c.DocumentID, &c.PartnerID, &c.CostType, &c.Currency, &c.ExchangeRate, &c.DueDate, &c.Description}
		},
	},
	models.KindCostLineItem: {
		name:    "document_cost_line_items",
		parent:  "cost_id",
		columns: []string{"cost_id", "cost_kind_id", "quantity", "amount", "tax_rate_id", "description"},
		values: func(e models.Entity) []any {
			c := e.(*models.CostLineItem)
			return []any{c.CostID, c.CostKindID, c.Quantity, c.Amount, c.TaxRateID, c.Description}
		},
		dest: func(e models.Entity) []any {
			c := e.(*models.CostLineItem)
			return []any{&c.CostID, &c.CostKindID, &c.Quantity, &c.Amount, &c.TaxRateID, &c.Description}
		},
	},
}

func (t table) selectList() string {
	return strings.Join(append(append([]string{}, metaColumns...), t.columns...), ", ")
}

func (t table) scanDest(e models.Entity) []any {
	return append(metaDest(e.Metadata()), t.dest(e)...)
}

func (t table) getSQL() string {
	return "SELECT " + t.selectList() + " FROM " + t.name + " WHERE id = $1 AND NOT is_deleted"
}

func (t table) listSQL() string {
	q := "SELECT " + t.selectList() + " FROM " + t.name + " WHERE NOT is_deleted"
	if t.parent != "" {
		q += " AND " + t.parent + " = ANY($1)"
	}
	return q + " ORDER BY id"
}

func (t table) insertSQL() string {
	cols := append([]string{"version", "is_deleted", "created_at", "created_by", "updated_at", "updated_by"}, t.columns...)
	return "INSERT INTO " + t.name + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(1, len(cols)) + ") RETURNING id"
}

// updateSQL binds $1 id, $2 expected version, $3 new version, $4 updated_at,
// $5 updated_by, then the kind's columns.
func (t table) updateSQL() string {
	sets := []string{"version = $3", "updated_at = $4", "updated_by = $5"}
	for i, c := range t.columns {
		sets = append(sets, c+" = $"+strconv.Itoa(i+6))
	}
	return "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") +
		" WHERE id = $1 AND version = $2 AND NOT is_deleted RETURNING created_at, created_by"
}

func (t table) probeSQL() string {
	return "SELECT version FROM " + t.name + " WHERE id = $1 AND NOT is_deleted"
}

// softDeleteSQL binds $1 id, $2 new version, $3 updated_at, $4 updated_by and,
// when checked, $5 expected version.
func (t table) softDeleteSQL(checked bool) string {
	q := "UPDATE " + t.name + " SET is_deleted = TRUE, version = $2, updated_at = $3, updated_by = $4 WHERE id = $1 AND NOT is_deleted"
	if checked {
		q += " AND version = $5"
	}
	return q
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(ps, ", ")
}
