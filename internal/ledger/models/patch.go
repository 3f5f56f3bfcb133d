package models

import (
	"fmt"
	"time"

	dErrors "ledger/pkg/domain-errors"
)

// Patch is a merge patch: nil fields leave the stored value unchanged.
// JSON null is indistinguishable from an absent field, so a patch cannot
// clear an optional column.
type Patch interface {
	Kind() Kind
	Apply(e Entity) error
}

func wrongKind(p Patch, e Entity) error {
	return fmt.Errorf("patch for %s applied to %s", p.Kind(), e.Kind())
}

func nonNegative(name string, v *float64) error {
	if v != nil && *v < 0 {
		return dErrors.New(dErrors.CodeValidation, name+" must not be negative")
	}
	return nil
}

// DocumentPatch updates a document.
type DocumentPatch struct {
	DocumentNumber *string    `json:"documentNumber" validate:"omitempty,max=50"`
	DocumentType   *string    `json:"documentType" validate:"omitempty,max=20"`
	PartnerID      *int64     `json:"partnerId" validate:"omitempty,gt=0"`
	DocumentDate   *time.Time `json:"documentDate"`
	DueDate        *time.Time `json:"dueDate"`
	Currency       *string    `json:"currency" validate:"omitempty,len=3"`
	Description    *string    `json:"description" validate:"omitempty,max=500"`
}

func (p *DocumentPatch) Kind() Kind { return KindDocument }

func (p *DocumentPatch) Apply(e Entity) error {
	d, ok := e.(*Document)
	if !ok {
		return wrongKind(p, e)
	}
	if p.DocumentNumber != nil {
		d.DocumentNumber = *p.DocumentNumber
	}
	if p.DocumentType != nil {
		d.DocumentType = *p.DocumentType
	}
	if p.PartnerID != nil {
		d.PartnerID = cloneInt(p.PartnerID)
	}
	if p.DocumentDate != nil {
		d.DocumentDate = *p.DocumentDate
	}
	if p.DueDate != nil {
		d.DueDate = cloneTime(p.DueDate)
	}
	if p.Currency != nil {
		d.Currency = *p.Currency
	}
	if p.Description != nil {
		d.Description = cloneString(p.Description)
	}
	return nil
}

// LineItemPatch updates a document line item.
type LineItemPatch struct {
	ArticleID       *int64   `json:"articleId" validate:"omitempty,gt=0"`
	Quantity        *float64 `json:"quantity"`
	InvoicePrice    *float64 `json:"invoicePrice"`
	DiscountAmount  *float64 `json:"discountAmount"`
	MarginAmount    *float64 `json:"marginAmount"`
	TaxRateID       *string  `json:"taxRateId" validate:"omitempty,max=10"`
	CalculateExcise *bool    `json:"calculateExcise"`
	CalculateTax    *bool    `json:"calculateTax"`
	Description     *string  `json:"description" validate:"omitempty,max=500"`
}

func (p *LineItemPatch) Kind() Kind { return KindLineItem }

// Validate rejects negative amounts.
func (p *LineItemPatch) Validate() error {
	if err := nonNegative("quantity", p.Quantity); err != nil {
		return err
	}
	if err := nonNegative("invoicePrice", p.InvoicePrice); err != nil {
		return err
	}
	return nonNegative("discountAmount", p.DiscountAmount)
}

func (p *LineItemPatch) Apply(e Entity) error {
	l, ok := e.(*LineItem)
	if !ok {
		return wrongKind(p, e)
	}
	if p.ArticleID != nil {
		l.ArticleID = *p.ArticleID
	}
	if p.Quantity != nil {
		l.Quantity = *p.Quantity
	}
	if p.InvoicePrice != nil {
		l.InvoicePrice = *p.InvoicePrice
	}
	if p.DiscountAmount != nil {
		l.DiscountAmount = *p.DiscountAmount
	}
	if p.MarginAmount != nil {
		l.MarginAmount = *p.MarginAmount
	}
	if p.TaxRateID != nil {
		l.TaxRateID = cloneString(p.TaxRateID)
	}
	if p.CalculateExcise != nil {
		l.CalculateExcise = *p.CalculateExcise
	}
	if p.CalculateTax != nil {
		l.CalculateTax = *p.CalculateTax
	}
	if p.Description != nil {
		l.Description = cloneString(p.Description)
	}
	return nil
}

// CostPatch updates a document cost.
type CostPatch struct {
	PartnerID    *int64     `json:"partnerId" validate:"omitempty,gt=0"`
	CostType     *string    `json:"costType" validate:"omitempty,max=50"`
	Currency     *string    `json:"currency" validate:"omitempty,len=3"`
	ExchangeRate *float64   `json:"exchangeRate" validate:"omitempty,gt=0"`
	DueDate      *time.Time `json:"dueDate"`
	Description  *string    `json:"description" validate:"omitempty,max=500"`
}

func (p *CostPatch) Kind() Kind { return KindCost }

func (p *CostPatch) Apply(e Entity) error {
	c, ok := e.(*Cost)
	if !ok {
		return wrongKind(p, e)
	}
	if p.PartnerID != nil {
		c.PartnerID = cloneInt(p.PartnerID)
	}
	if p.CostType != nil {
		c.CostType = *p.CostType
	}
	if p.Currency != nil {
		c.Currency = *p.Currency
	}
	if p.ExchangeRate != nil {
		c.ExchangeRate = *p.ExchangeRate
	}
	if p.DueDate != nil {
		c.DueDate = cloneTime(p.DueDate)
	}
	if p.Description != nil {
		c.Description = cloneString(p.Description)
	}
	return nil
}

// CostLineItemPatch updates a line of a cost.
type CostLineItemPatch struct {
	CostKindID  *int64   `json:"costKindId" validate:"omitempty,gt=0"`
	Quantity    *float64 `json:"quantity"`
	Amount      *float64 `json:"amount"`
	TaxRateID   *string  `json:"taxRateId" validate:"omitempty,max=10"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
}

func (p *CostLineItemPatch) Kind() Kind { return KindCostLineItem }

// Validate rejects negative quantities.
func (p *CostLineItemPatch) Validate() error {
	return nonNegative("quantity", p.Quantity)
}

func (p *CostLineItemPatch) Apply(e Entity) error {
	c, ok := e.(*CostLineItem)
	if !ok {
		return wrongKind(p, e)
	}
	if p.CostKindID != nil {
		c.CostKindID = *p.CostKindID
	}
	if p.Quantity != nil {
		c.Quantity = *p.Quantity
	}
	if p.Amount != nil {
		c.Amount = *p.Amount
	}
	if p.TaxRateID != nil {
		c.TaxRateID = cloneString(p.TaxRateID)
	}
	if p.Description != nil {
		c.Description = cloneString(p.Description)
	}
	return nil
}
