package handler

import (
	"time"

	"ledger/internal/ledger/models"
)

// Create payloads. Owner ids come from the URL path, never from the body.

type createDocumentRequest struct {
	DocumentNumber string     `json:"documentNumber" validate:"required,max=50"`
	DocumentType   string     `json:"documentType" validate:"required,max=20"`
	PartnerID      *int64     `json:"partnerId" validate:"omitempty,gt=0"`
	DocumentDate   time.Time  `json:"documentDate" validate:"required"`
	DueDate        *time.Time `json:"dueDate"`
	Currency       string     `json:"currency" validate:"required,len=3"`
	Description    *string    `json:"description" validate:"omitempty,max=500"`
}

func (r *createDocumentRequest) toEntity([]int64) models.Entity {
	return &models.Document{
		DocumentNumber: r.DocumentNumber,
		DocumentType:   r.DocumentType,
		PartnerID:      r.PartnerID,
		DocumentDate:   r.DocumentDate,
		DueDate:        r.DueDate,
		Currency:       r.Currency,
		Description:    r.Description,
	}
}

type createLineItemRequest struct {
	ArticleID       int64   `json:"articleId" validate:"required,gt=0"`
	Quantity        float64 `json:"quantity" validate:"gte=0"`
	InvoicePrice    float64 `json:"invoicePrice" validate:"gte=0"`
	DiscountAmount  float64 `json:"discountAmount" validate:"gte=0"`
	MarginAmount    float64 `json:"marginAmount"`
	TaxRateID       *string `json:"taxRateId" validate:"omitempty,max=10"`
	CalculateExcise bool    `json:"calculateExcise"`
	CalculateTax    bool    `json:"calculateTax"`
	Description     *string `json:"description" validate:"omitempty,max=500"`
}

func (r *createLineItemRequest) toEntity(owners []int64) models.Entity {
	return &models.LineItem{
		DocumentID:      owners[0],
		ArticleID:       r.ArticleID,
		Quantity:        r.Quantity,
		InvoicePrice:    r.InvoicePrice,
		DiscountAmount:  r.DiscountAmount,
		MarginAmount:    r.MarginAmount,
		TaxRateID:       r.TaxRateID,
		CalculateExcise: r.CalculateExcise,
		CalculateTax:    r.CalculateTax,
		Description:     r.Description,
	}
}

type createCostRequest struct {
	PartnerID    *int64     `json:"partnerId" validate:"omitempty,gt=0"`
	CostType     string     `json:"costType" validate:"required,max=30"`
	Currency     string     `json:"currency" validate:"required,len=3"`
	ExchangeRate float64    `json:"exchangeRate" validate:"gt=0"`
	DueDate      *time.Time `json:"dueDate"`
	Description  *string    `json:"description" validate:"omitempty,max=500"`
}

func (r *createCostRequest) toEntity(owners []int64) models.Entity {
	return &models.Cost{
		DocumentID:   owners[0],
		PartnerID:    r.PartnerID,
		CostType:     r.CostType,
		Currency:     r.Currency,
		ExchangeRate: r.ExchangeRate,
		DueDate:      r.DueDate,
		Description:  r.Description,
	}
}

type createCostLineItemRequest struct {
	CostKindID  int64   `json:"costKindId" validate:"required,gt=0"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Amount      float64 `json:"amount"`
	TaxRateID   *string `json:"taxRateId" validate:"omitempty,max=10"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (r *createCostLineItemRequest) toEntity(owners []int64) models.Entity {
	return &models.CostLineItem{
		CostID:      owners[len(owners)-1],
		CostKindID:  r.CostKindID,
		Quantity:    r.Quantity,
		Amount:      r.Amount,
		TaxRateID:   r.TaxRateID,
		Description: r.Description,
	}
}
