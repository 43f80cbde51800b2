/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Catalog:
    ProductDTO, ProductRequest

  Ledger:
    MovementDTO, MovementRequest, BalanceDTO

  Sales:
    SaleDTO, SaleRequest

  Cash:
    CashMovementDTO, CashMovementRequest

  Reports:
    ArtifactDTO, ExportAllResponse

VALIDATION:
  Request types carry validator/v10 struct tags for shape validation at the
  edge. Domain invariants (stock sufficiency, SKU uniqueness, discount
  clamping) are enforced again in the engine; the tags only reject requests
  that could never be valid.

MONEY:
  Prices travel as JSON strings ("12.50") and are parsed into
  decimal.Decimal, never float64.

SEE ALSO:
  - handlers.go: Uses these types
  - inventory/types.go: Domain counterparts
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitasport/inventory-engine/inventory"
	"github.com/vitasport/inventory-engine/report"
)

// =============================================================================
// CATALOG TYPES
// =============================================================================

// ProductDTO represents a product in API responses, enriched with the
// derived current stock and the computed margin.
type ProductDTO struct {
	ID            int64  `json:"id"`
	SKU           string `json:"sku,omitempty"`
	Name          string `json:"name"`
	SalePrice     string `json:"sale_price"`
	CostPrice     string `json:"cost_price"`
	Brand         string `json:"brand,omitempty"`
	Category      string `json:"category,omitempty"`
	Presentation  string `json:"presentation,omitempty"`
	Flavor        string `json:"flavor,omitempty"`
	Weight        string `json:"weight,omitempty"`
	ImagePath     string `json:"image_path,omitempty"`
	ExpiryDate    string `json:"expiry_date,omitempty"`
	LotNumber     string `json:"lot_number,omitempty"`
	MinStock      int64  `json:"min_stock"`
	MaxStock      int64  `json:"max_stock"`
	Location      string `json:"location,omitempty"`
	Status        string `json:"status,omitempty"`
	CurrentStock  int64  `json:"current_stock"`
	MarginPercent string `json:"margin_percent,omitempty"`
	LowStock      bool   `json:"low_stock"`
}

// ProductRequest is the request to create or update a product.
type ProductRequest struct {
	SKU          string `json:"sku"`
	Name         string `json:"name" validate:"required"`
	SalePrice    string `json:"sale_price" validate:"required"`
	CostPrice    string `json:"cost_price" validate:"required"`
	Brand        string `json:"brand"`
	Category     string `json:"category"`
	Presentation string `json:"presentation"`
	Flavor       string `json:"flavor"`
	Weight       string `json:"weight"`
	ImagePath    string `json:"image_path"`
	ExpiryDate   string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	LotNumber    string `json:"lot_number"`
	MinStock     int64  `json:"min_stock" validate:"gte=0"`
	MaxStock     int64  `json:"max_stock" validate:"gte=0"`
	Location     string `json:"location"`
	Status       string `json:"status" validate:"omitempty,oneof=Activo Inactivo Descontinuado"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// MovementDTO represents one stock ledger entry.
type MovementDTO struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Type      string `json:"movement_type"`
	Quantity  int64  `json:"quantity"`
	Note      string `json:"note,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	Reference string `json:"reference,omitempty"`
	CreatedAt string `json:"created_at"`
}

// MovementRequest is the request to append a stock movement.
type MovementRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Type      string `json:"movement_type" validate:"required,oneof=ingreso egreso"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Note      string `json:"note"`
	CreatedBy string `json:"created_by"`
}

// BalanceDTO is one row of the stock balances listing.
type BalanceDTO struct {
	ProductID    int64 `json:"product_id"`
	CurrentStock int64 `json:"current_stock"`
}

// =============================================================================
// SALES TYPES
// =============================================================================

// SaleDTO represents a committed sale.
type SaleDTO struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	SalePrice string `json:"sale_price"`
	Discount  string `json:"discount,omitempty"`
	Channel   string `json:"channel,omitempty"`
	SaleDate  string `json:"sale_date"`
	CreatedBy string `json:"created_by,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// SaleRequest is the request to record a sale. UnitPrice is gross per-unit;
// the engine computes the discounted total.
type SaleRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	UnitPrice   string `json:"unit_price" validate:"required"`
	DiscountPct string `json:"discount"`
	Channel     string `json:"channel"`
	SaleDate    string `json:"sale_date" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy   string `json:"created_by"`
}

// SaleCreatedDTO is the response after recording a sale.
type SaleCreatedDTO struct {
	ID int64 `json:"id"`
}

// =============================================================================
// ANALYTICS TYPES
// =============================================================================

// Analytics responses reuse the engine's types directly
// (analytics.ProductSales, analytics.TrendPoint, analytics.Totals); they
// are already shaped for JSON and carry no storage-only fields.

// CashMovementDTO represents one cash movement.
type CashMovementDTO struct {
	ID           int64  `json:"id"`
	Type         string `json:"movement_type"`
	Amount       string `json:"amount"`
	Category     string `json:"category,omitempty"`
	Description  string `json:"description,omitempty"`
	MovementDate string `json:"movement_date"`
	CreatedBy    string `json:"created_by,omitempty"`
}

// CashMovementRequest is the request to record a cash movement.
type CashMovementRequest struct {
	Type         string `json:"movement_type" validate:"required,oneof=ingreso egreso"`
	Amount       string `json:"amount" validate:"required"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	MovementDate string `json:"movement_date" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy    string `json:"created_by"`
}

// CashSummaryDTO aggregates cash flow including sales revenue.
type CashSummaryDTO struct {
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	Balance      string `json:"balance"`
}

// =============================================================================
// REPORT TYPES
// =============================================================================

// ArtifactDTO represents a generated report file.
type ArtifactDTO struct {
	Kind        string `json:"kind"`
	Path        string `json:"path"`
	GeneratedAt string `json:"generated_at"`
}

// ExportAllResponse carries every artifact plus per-kind failures, so a
// partial export still reports its successes.
type ExportAllResponse struct {
	Artifacts []ArtifactDTO     `json:"artifacts"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toProductDTO(p inventory.Product, currentStock int64) ProductDTO {
	dto := ProductDTO{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		SalePrice:    p.SalePrice.StringFixed(2),
		CostPrice:    p.CostPrice.StringFixed(2),
		Brand:        p.Brand,
		Category:     p.Category,
		Presentation: p.Presentation,
		Flavor:       p.Flavor,
		Weight:       p.Weight,
		ImagePath:    p.ImagePath,
		ExpiryDate:   p.ExpiryDate,
		LotNumber:    p.LotNumber,
		MinStock:     p.MinStock,
		MaxStock:     p.MaxStock,
		Location:     p.Location,
		Status:       string(p.Status),
		CurrentStock: currentStock,
		LowStock:     currentStock <= p.MinStock,
	}
	if p.SalePrice.IsPositive() && p.CostPrice.IsPositive() {
		dto.MarginPercent = p.SalePrice.Sub(p.CostPrice).Div(p.SalePrice).
			Mul(decimal.NewFromInt(100)).Round(0).String()
	}
	return dto
}

func toProduct(req ProductRequest) (inventory.Product, error) {
	salePrice, err := decimal.NewFromString(req.SalePrice)
	if err != nil {
		return inventory.Product{}, &inventory.ValidationError{Field: "sale_price", Reason: "must be a decimal number"}
	}
	costPrice, err := decimal.NewFromString(req.CostPrice)
	if err != nil {
		return inventory.Product{}, &inventory.ValidationError{Field: "cost_price", Reason: "must be a decimal number"}
	}
	return inventory.Product{
		SKU:          req.SKU,
		Name:         req.Name,
		SalePrice:    salePrice,
		CostPrice:    costPrice,
		Brand:        req.Brand,
		Category:     req.Category,
		Presentation: req.Presentation,
		Flavor:       req.Flavor,
		Weight:       req.Weight,
		ImagePath:    req.ImagePath,
		ExpiryDate:   req.ExpiryDate,
		LotNumber:    req.LotNumber,
		MinStock:     req.MinStock,
		MaxStock:     req.MaxStock,
		Location:     req.Location,
		Status:       inventory.Status(req.Status),
	}, nil
}

func toMovementDTO(m inventory.Movement) MovementDTO {
	return MovementDTO{
		ID:        m.ID,
		ProductID: m.ProductID,
		Type:      string(m.Type),
		Quantity:  m.Quantity,
		Note:      m.Note,
		CreatedBy: m.CreatedBy,
		Reference: m.Reference,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toSaleDTO(s inventory.Sale) SaleDTO {
	return SaleDTO{
		ID:        s.ID,
		ProductID: s.ProductID,
		Quantity:  s.Quantity,
		SalePrice: s.SalePrice.StringFixed(2),
		Discount:  s.DiscountPct.String(),
		Channel:   s.Channel,
		SaleDate:  s.SaleDate.UTC().Format("2006-01-02"),
		CreatedBy: s.CreatedBy,
		Reference: s.Reference,
	}
}

func toCashMovementDTO(m inventory.CashMovement) CashMovementDTO {
	return CashMovementDTO{
		ID:           m.ID,
		Type:         string(m.Type),
		Amount:       m.Amount.StringFixed(2),
		Category:     m.Category,
		Description:  m.Description,
		MovementDate: m.MovementDate.UTC().Format("2006-01-02"),
		CreatedBy:    m.CreatedBy,
	}
}

func toArtifactDTO(a report.Artifact) ArtifactDTO {
	return ArtifactDTO{
		Kind:        string(a.Kind),
		Path:        a.Path,
		GeneratedAt: a.GeneratedAt.UTC().Format(time.RFC3339),
	}
}
