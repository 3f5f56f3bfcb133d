// Package models defines the versioned ledger records: documents, their line
// items, their costs and the line items of each cost.
package models

import (
	"strconv"
	"time"

	"ledger/internal/changecapture"
	"ledger/pkg/platform/etag"
)

// Kind identifies a record type. The value doubles as the audit entity type.
type Kind string

const (
	KindDocument     Kind = "Document"
	KindLineItem     Kind = "DocumentLineItem"
	KindCost         Kind = "DocumentCost"
	KindCostLineItem Kind = "DocumentCostLineItem"
)

// Kinds lists every record kind in parent-before-child order.
var Kinds = []Kind{KindDocument, KindLineItem, KindCost, KindCostLineItem}

// Parent returns the owning kind, or "" for documents.
func (k Kind) Parent() Kind {
	switch k {
	case KindLineItem, KindCost:
		return KindDocument
	case KindCostLineItem:
		return KindCost
	default:
		return ""
	}
}

// Children returns the kinds owned by k. Soft-deleting a record cascades to them.
func (k Kind) Children() []Kind {
	switch k {
	case KindDocument:
		return []Kind{KindLineItem, KindCost}
	case KindCost:
		return []Kind{KindCostLineItem}
	default:
		return nil
	}
}

// Meta holds the bookkeeping columns shared by every record.
type Meta struct {
	ID        int64      `json:"id"`
	Version   etag.Stamp `json:"etag"`
	IsDeleted bool       `json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy"`
	UpdatedAt time.Time  `json:"updatedAt"`
	UpdatedBy string     `json:"updatedBy"`
}

// Metadata exposes the bookkeeping columns.
func (m *Meta) Metadata() *Meta { return m }

// EntityKey renders the id for the audit log.
func (m *Meta) EntityKey() string {
	if m.ID == 0 {
		return ""
	}
	return strconv.FormatInt(m.ID, 10)
}

func (m *Meta) fields() []changecapture.Field {
	return []changecapture.Field{
		{Name: "ID", Value: m.ID},
		{Name: "Version", Value: []byte(m.Version)},
		{Name: "IsDeleted", Value: m.IsDeleted},
		{Name: "CreatedAt", Value: m.CreatedAt},
		{Name: "CreatedBy", Value: m.CreatedBy},
		{Name: "UpdatedAt", Value: m.UpdatedAt},
		{Name: "UpdatedBy", Value: m.UpdatedBy},
	}
}

// Entity is a versioned record.
type Entity interface {
	changecapture.Record
	Kind() Kind
	Metadata() *Meta
	// ParentID is the owning record's id, 0 for documents.
	ParentID() int64
	// Clone returns a deep copy.
	Clone() Entity
}

// New returns an empty record of kind k.
func New(k Kind) Entity {
	switch k {
	case KindDocument:
		return &Document{}
	case KindLineItem:
		return &LineItem{}
	case KindCost:
		return &Cost{}
	case KindCostLineItem:
		return &CostLineItem{}
	default:
		return nil
	}
}

// Document is the root record.
type Document struct {
	Meta
	DocumentNumber string     `json:"documentNumber"`
	DocumentType   string     `json:"documentType"`
	PartnerID      *int64     `json:"partnerId,omitempty"`
	DocumentDate   time.Time  `json:"documentDate"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	Currency       string     `json:"currency"`
	Description    *string    `json:"description,omitempty"`
}

func (d *Document) Kind() Kind         { return KindDocument }
func (d *Document) EntityType() string { return string(KindDocument) }
func (d *Document) ParentID() int64    { return 0 }

func (d *Document) Fields() []changecapture.Field {
	return append(d.Meta.fields(),
		changecapture.Field{Name: "DocumentNumber", Value: d.DocumentNumber},
		changecapture.Field{Name: "DocumentType", Value: d.DocumentType},
		changecapture.Field{Name: "PartnerID", Value: d.PartnerID},
		changecapture.Field{Name: "DocumentDate", Value: d.DocumentDate},
		changecapture.Field{Name: "DueDate", Value: d.DueDate},
		changecapture.Field{Name: "Currency", Value: d.Currency},
		changecapture.Field{Name: "Description", Value: d.Description},
	)
}

func (d *Document) Clone() Entity {
	c := *d
	c.Version = cloneStamp(d.Version)
	c.PartnerID = cloneInt(d.PartnerID)
	c.DueDate = cloneTime(d.DueDate)
	c.Description = cloneString(d.Description)
	return &c
}

// LineItem is an article line on a document.
type LineItem struct {
	Meta
	DocumentID      int64   `json:"documentId"`
	ArticleID       int64   `json:"articleId"`
	Quantity        float64 `json:"quantity"`
	InvoicePrice    float64 `json:"invoicePrice"`
	DiscountAmount  float64 `json:"discountAmount"`
	MarginAmount    float64 `json:"marginAmount"`
	TaxRateID       *string `json:"taxRateId,omitempty"`
	CalculateExcise bool    `json:"calculateExcise"`
	CalculateTax    bool    `json:"calculateTax"`
	Description     *string `json:"description,omitempty"`
}

func (l *LineItem) Kind() Kind         { return KindLineItem }
func (l *LineItem) EntityType() string { return string(KindLineItem) }
func (l *LineItem) ParentID() int64    { return l.DocumentID }

func (l *LineItem) Fields() []changecapture.Field {
	return append(l.Meta.fields(),
		changecapture.Field{Name: "DocumentID", Value: l.DocumentID},
		changecapture.Field{Name: "ArticleID", Value: l.ArticleID},
		changecapture.Field{Name: "Quantity", Value: l.Quantity},
		changecapture.Field{Name: "InvoicePrice", Value: l.InvoicePrice},
		changecapture.Field{Name: "DiscountAmount", Value: l.DiscountAmount},
		changecapture.Field{Name: "MarginAmount", Value: l.MarginAmount},
		changecapture.Field{Name: "TaxRateID", Value: l.TaxRateID},
		changecapture.Field{Name: "CalculateExcise", Value: l.CalculateExcise},
		changecapture.Field{Name: "CalculateTax", Value: l.CalculateTax},
		changecapture.Field{Name: "Description", Value: l.Description},
	)
}

func (l *LineItem) Clone() Entity {
	c := *l
	c.Version = cloneStamp(l.Version)
	c.TaxRateID = cloneString(l.TaxRateID)
	c.Description = cloneString(l.Description)
	return &c
}

// Cost is an additional cost booked against a document, e.g. freight.
type Cost struct {
	Meta
	DocumentID   int64      `json:"documentId"`
	PartnerID    *int64     `json:"partnerId,omitempty"`
	CostType     string     `json:"costType"`
	Currency     string     `json:"currency"`
	ExchangeRate float64    `json:"exchangeRate"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	Description  *string    `json:"description,omitempty"`
}

func (c *Cost) Kind() Kind         { return KindCost }
func (c *Cost) EntityType() string { return string(KindCost) }
func (c *Cost) ParentID() int64    { return c.DocumentID }

func (c *Cost) Fields() []changecapture.Field {
	return append(c.Meta.fields(),
		changecapture.Field{Name: "DocumentID", Value: c.DocumentID},
		changecapture.Field{Name: "PartnerID", Value: c.PartnerID},
		changecapture.Field{Name: "CostType", Value: c.CostType},
		changecapture.Field{Name: "Currency", Value: c.Currency},
		changecapture.Field{Name: "ExchangeRate", Value: c.ExchangeRate},
		changecapture.Field{Name: "DueDate", Value: c.DueDate},
		changecapture.Field{Name: "Description", Value: c.Description},
	)
}

func (c *Cost) Clone() Entity {
	out := *c
	out.Version = cloneStamp(c.Version)
	out.PartnerID = cloneInt(c.PartnerID)
	out.DueDate = cloneTime(c.DueDate)
	out.Description = cloneString(c.Description)
	return &out
}

// CostLineItem is one amount within a cost.
type CostLineItem struct {
	Meta
	CostID      int64   `json:"costId"`
	CostKindID  int64   `json:"costKindId"`
	Quantity    float64 `json:"quantity"`
	Amount      float64 `json:"amount"`
	TaxRateID   *string `json:"taxRateId,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (c *CostLineItem) Kind() Kind         { return KindCostLineItem }
func (c *CostLineItem) EntityType() string { return string(KindCostLineItem) }
func (c *CostLineItem) ParentID() int64    { return c.CostID }

func (c *CostLineItem) Fields() []changecapture.Field {
	return append(c.Meta.fields(),
		changecapture.Field{Name: "CostID", Value: c.CostID},
		changecapture.Field{Name: "CostKindID", Value: c.CostKindID},
		changecapture.Field{Name: "Quantity", Value: c.Quantity},
		changecapture.Field{Name: "Amount", Value: c.Amount},
		changecapture.Field{Name: "TaxRateID", Value: c.TaxRateID},
		changecapture.Field{Name: "Description", Value: c.Description},
	)
}

func (c *CostLineItem) Clone() Entity {
	out := *c
	out.Version = cloneStamp(c.Version)
	out.TaxRateID = cloneString(c.TaxRateID)
	out.Description = cloneString(c.Description)
	return &out
}

func cloneStamp(s etag.Stamp) etag.Stamp {
	if s == nil {
		return nil
	}
	return append(etag.Stamp(nil), s...)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int64) *int64 {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
