package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"genmart/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultLowStockThreshold = 5

// ProductFilter narrows a storefront listing.
type ProductFilter struct {
	Query    string
	Category string
	Brand    string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	InStock  bool
	Sort     string
	Page     Page
}

var productSorts = map[string]string{
	"":           "created_at DESC, id DESC",
	"newest":     "created_at DESC, id DESC",
	"price_asc":  "price ASC, id ASC",
	"price_desc": "price DESC, id DESC",
	"name":       "name ASC, id ASC",
}

// ProductView is the API shape of a product of either family.
type ProductView struct {
	ID   uint              `json:"id"`
	Type model.ProductKind `json:"type"`
	model.ProductFields
	Category         *model.Category  `json:"category,omitempty"`
	PowerKVA         *decimal.Decimal `json:"power_kva,omitempty"`
	FuelType         string           `json:"fuel_type,omitempty"`
	CompatibleModels string           `json:"compatible_models,omitempty"`
	InStock          bool             `json:"in_stock"`
	CreatedAt        time.Time        `json:"created_at"`
}

func newProductView(p model.Product, categories map[uint]*model.Category) ProductView {
	f := p.Fields()
	v := ProductView{
		ID:            p.ProductID(),
		Type:          p.Kind(),
		ProductFields: *f,
		InStock:       f.Stock > 0,
	}
	if f.CategoryID != nil {
		v.Category = categories[*f.CategoryID]
	}
	switch x := p.(type) {
	case *model.Generator:
		kva := x.PowerKVA
		v.PowerKVA = &kva
		v.FuelType = x.FuelType
		v.CreatedAt = x.CreatedAt
	case *model.Part:
		v.CompatibleModels = x.CompatibleModels
		v.CreatedAt = x.CreatedAt
	}
	if v.Images == nil {
		v.Images = []model.Image{}
	}
	return v
}

// CatalogServiceDeps bundles collaborators for the catalog service.
type CatalogServiceDeps struct {
	DB     *gorm.DB
	Clock  func() time.Time
	Logger *zap.Logger
}

type CatalogService struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewCatalogService(deps CatalogServiceDeps) (*CatalogService, error) {
	if deps.DB == nil {
		return nil, errors.New("catalog service: db is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{db: deps.DB, clock: clock, logger: logger}, nil
}

// List returns one page of active products of kind.
func (s *CatalogService) List(ctx context.Context, kind model.ProductKind, f ProductFilter) (PageResult[ProductView], error) {
	order, ok := productSorts[f.Sort]
	if !ok {
		return PageResult[ProductView]{}, fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, f.Sort)
	}
	if f.MinPrice.Valid && f.MaxPrice.Valid && f.MinPrice.Decimal.GreaterThan(f.MaxPrice.Decimal) {
		return PageResult[ProductView]{}, fmt.Errorf("%w: min_price is greater than max_price", ErrInvalidInput)
	}

	db := s.db.WithContext(ctx)
	q := db.Model(model.NewProduct(kind)).Where("is_active = ?", true)
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(sku) LIKE ?)", like, like)
	}
	if slug := strings.TrimSpace(f.Category); slug != "" {
		sub := db.Model(&model.Category{}).Select("id").Where("slug = ? AND family = ?", slug, kind)
		q = q.Where("category_id IN (?)", sub)
	}
	if brand := strings.TrimSpace(f.Brand); brand != "" {
		q = q.Where("LOWER(brand) = ?", strings.ToLower(brand))
	}
	if f.MinPrice.Valid {
		q = q.Where("price >= ?", f.MinPrice.Decimal)
	}
	if f.MaxPrice.Valid {
		q = q.Where("price <= ?", f.MaxPrice.Decimal)
	}
	if f.InStock {
		q = q.Where("stock > 0")
	}

	var (
		page     PageResult[ProductView]
		products []model.Product
	)
	switch kind {
	case model.KindPart:
		res, err := findPage[model.Part](q, f.Page, order)
		if err != nil {
			return page, err
		}
		for i := range res.Items {
			products = append(products, &res.Items[i])
		}
		page = newPageResult[ProductView](nil, Page{Page: res.Page, Limit: res.Limit}, res.Total)
	default:
		res, err := findPage[model.Generator](q, f.Page, order)
		if err != nil {
			return page, err
		}
		for i := range res.Items {
			products = append(products, &res.Items[i])
		}
		page = newPageResult[ProductView](nil, Page{Page: res.Page, Limit: res.Limit}, res.Total)
	}

	views, err := s.views(ctx, products)
	if err != nil {
		return PageResult[ProductView]{}, err
	}
	page.Items = views
	return page, nil
}

// views attaches categories with a single batched lookup.
func (s *CatalogService) views(ctx context.Context, products []model.Product) ([]ProductView, error) {
	ids := make([]uint, 0, len(products))
	seen := make(map[uint]bool)
	for _, p := range products {
		if id := p.Fields().CategoryID; id != nil && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	categories := make(map[uint]*model.Category, len(ids))
	if len(ids) > 0 {
		var rows []model.Category
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load categories: %w", err)
		}
		for i := range rows {
			categories[rows[i].ID] = &rows[i]
		}
	}
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, newProductView(p, categories))
	}
	return out, nil
}

// GetBySlug returns an active product; inactive products are reported missing.
func (s *CatalogService) GetBySlug(ctx context.Context, kind model.ProductKind, slug string) (ProductView, error) {
	p := model.NewProduct(kind)
	err := s.db.WithContext(ctx).Where("slug = ? AND is_active = ?", strings.TrimSpace(slug), true).First(p).Error
	if err != nil {
		return ProductView{}, notFoundOr(err, "product")
	}
	views, err := s.views(ctx, []model.Product{p})
	if err != nil {
		return ProductView{}, err
	}
	return views[0], nil
}

// Categories lists categories, optionally of one family.
func (s *CatalogService) Categories(ctx context.Context, family string) ([]model.Category, error) {
	q := s.db.WithContext(ctx).Order("name ASC")
	if strings.TrimSpace(family) != "" {
		kind, ok := model.ParseProductKind(family)
		if !ok {
			return nil, fmt.Errorf("%w: unknown family %q", ErrInvalidInput, family)
		}
		q = q.Where("family = ?", kind)
	}
	out := make([]model.Category, 0)
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCategory adds a category; slug defaults to the slugified name.
func (s *CatalogService) CreateCategory(ctx context.Context, actor Actor, kind model.ProductKind, name, slug string) (*model.Category, error) {
	name = cleanText(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if slug = slugify(slug); slug == "" {
		slug = slugify(name)
	}
	c := &model.Category{Name: name, Slug: slug, Family: kind}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return writeAudit(tx, s.clock(), actor, "category.create", "category", fmt.Sprint(c.ID), map[string]any{"slug": slug, "family": kind})
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: category %q already exists", ErrConflict, slug)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ProductInput is the admin payload for a new product.
type ProductInput struct {
	Name              string
	Slug              string
	SKU               string
	Brand             string
	Price             decimal.Decimal
	CompareAtPrice    decimal.NullDecimal
	Stock             int64
	LowStockThreshold *int64
	IsActive          *bool
	CategorySlug      string
	Images            []model.Image
	Description       string

	PowerKVA         decimal.Decimal
	FuelType         string
	CompatibleModels string
}

// CreateProduct validates in and inserts a product of kind.
func (s *CatalogService) CreateProduct(ctx context.Context, actor Actor, kind model.ProductKind, in ProductInput) (ProductView, error) {
	fields := model.ProductFields{
		Name:              cleanText(in.Name),
		Brand:             cleanText(in.Brand),
		Price:             in.Price,
		CompareAtPrice:    in.CompareAtPrice,
		Stock:             in.Stock,
		LowStockThreshold: defaultLowStockThreshold,
		IsActive:          true,
		Images:            in.Images,
		Description:       cleanHTML(in.Description),
	}
	if fields.Name == "" {
		return ProductView{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !fields.Price.IsPositive() {
		return ProductView{}, fmt.Errorf("%w: price must be greater than zero", ErrInvalidInput)
	}
	if fields.Stock < 0 {
		return ProductView{}, fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	if in.LowStockThreshold != nil {
		if *in.LowStockThreshold < 0 {
			return ProductView{}, fmt.Errorf("%w: low_stock_threshold must not be negative", ErrInvalidInput)
		}
		fields.LowStockThreshold = *in.LowStockThreshold
	}
	if in.IsActive != nil {
		fields.IsActive = *in.IsActive
	}
	if fields.Slug = slugify(in.Slug); fields.Slug == "" {
		fields.Slug = slugify(fields.Name)
	}
	if sku := strings.ToUpper(strings.TrimSpace(in.SKU)); sku != "" {
		fields.SKU = &sku
	}

	var p model.Product
	if kind == model.KindPart {
		p = &model.Part{ProductFields: fields, CompatibleModels: cleanText(in.CompatibleModels)}
	} else {
		p = &model.Generator{ProductFields: fields, PowerKVA: in.PowerKVA, FuelType: strings.ToUpper(strings.TrimSpace(in.FuelType))}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if slug := strings.TrimSpace(in.CategorySlug); slug != "" {
			var c model.Category
			if err := tx.Where("slug = ? AND family = ?", slug, kind).First(&c).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, slug)
				}
				return err
			}
			p.Fields().CategoryID = &c.ID
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return writeAudit(tx, s.clock(), actor, "product.create", strings.ToLower(string(kind)), fmt.Sprint(p.ProductID()), map[string]any{"slug": fields.Slug})
	})
	if isUniqueViolation(err) {
		return ProductView{}, fmt.Errorf("%w: slug or sku already in use", ErrConflict)
	}
	if err != nil {
		return ProductView{}, err
	}
	views, err := s.views(ctx, []model.Product{p})
	if err != nil {
		return ProductView{}, err
	}
	return views[0], nil
}

// AdjustStock applies delta as one conditional update so concurrent
// checkouts never observe a negative count.
func (s *CatalogService) AdjustStock(ctx context.Context, actor Actor, kind model.ProductKind, id uint, delta int64) (ProductView, error) {
	if delta == 0 {
		return ProductView{}, fmt.Errorf("%w: delta must not be zero", ErrInvalidInput)
	}
	p := model.NewProduct(kind)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(model.NewProduct(kind)).Where("id = ?", id)
		if delta < 0 {
			q = q.Where("stock >= ?", -delta)
		}
		res := q.Update("stock", gorm.Expr("stock + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.First(p, id).Error; err != nil {
				return notFoundOr(err, "product")
			}
			return reject("stock of %s cannot go below zero", p.Fields().Name)
		}
		if err := tx.First(p, id).Error; err != nil {
			return err
		}
		return writeAudit(tx, s.clock(), actor, "product.stock_adjust", strings.ToLower(string(kind)), fmt.Sprint(id), map[string]any{"delta": delta, "stock": p.Fields().Stock})
	})
	if err != nil {
		return ProductView{}, err
	}
	views, err := s.views(ctx, []model.Product{p})
	if err != nil {
		return ProductView{}, err
	}
	return views[0], nil
}

// LowStock lists active products of both families at or below their threshold.
func (s *CatalogService) LowStock(ctx context.Context) ([]ProductView, error) {
	db := s.db.WithContext(ctx)
	var gens []model.Generator
	if err := db.Where("is_active = ? AND stock <= low_stock_threshold", true).Order("stock ASC").Find(&gens).Error; err != nil {
		return nil, err
	}
	var parts []model.Part
	if err := db.Where("is_active = ? AND stock <= low_stock_threshold", true).Order("stock ASC").Find(&parts).Error; err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(gens)+len(parts))
	for i := range gens {
		products = append(products, &gens[i])
	}
	for i := range parts {
		products = append(products, &parts[i])
	}
	return s.views(ctx, products)
}

// countLowStock feeds the admin stats view.
func countLowStock(tx *gorm.DB) (int64, error) {
	var gens, parts int64
	if err := tx.Model(&model.Generator{}).Where("is_active = ? AND stock <= low_stock_threshold", true).Count(&gens).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&model.Part{}).Where("is_active = ? AND stock <= low_stock_threshold", true).Count(&parts).Error; err != nil {
		return 0, err
	}
	return gens + parts, nil
}
