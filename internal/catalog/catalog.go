// Package catalog は商品カタログ（参照データ）を提供する。
// カタログは起動時に一度だけ読み込まれ、以降は読み取り専用となる。
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/storefront/internal/model"
)

//go:embed products.yaml
var defaultProducts []byte

// file はカタログYAMLのトップレベル構造。
type file struct {
	Products []model.Product `yaml:"products"`
}

// Catalog は読み取り専用の商品一覧。
type Catalog struct {
	products []model.Product
	byID     map[string]int
}

// Load はpathのYAMLからカタログを読み込む。pathが空の場合は組み込みのカタログを使用する。
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultProducts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default は組み込みのカタログを返す。
func Default() (*Catalog, error) {
	return Parse(defaultProducts)
}

// Parse はYAMLをデコードしてカタログを生成する。
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Products)
}

// New は商品一覧を検証してカタログを生成する。
// 問題はまとめて1つのエラーとして返す。
func New(products []model.Product) (*Catalog, error) {
	var problems []string
	byID := make(map[string]int, len(products))

	for i, p := range products {
		if p.ID == "" {
			problems = append(problems, fmt.Sprintf("product #%d: id is required", i+1))
			continue
		}
		if _, dup := byID[p.ID]; dup {
			problems = append(problems, fmt.Sprintf("product %s: duplicate id", p.ID))
			continue
		}
		if p.Price <= 0 {
			problems = append(problems, fmt.Sprintf("product %s: price must be positive", p.ID))
		}
		if p.Stock < 0 {
			problems = append(problems, fmt.Sprintf("product %s: stock must not be negative", p.ID))
		}
		byID[p.ID] = i
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid catalog: %s", strings.Join(problems, "; "))
	}

	return &Catalog{
		products: append([]model.Product(nil), products...),
		byID:     byID,
	}, nil
}

// ProductByID は指定IDの商品のコピーを返す。存在しない場合はnilを返す。
func (c *Catalog) ProductByID(id string) *model.Product {
	i, ok := c.byID[id]
	if !ok {
		return nil
	}
	p := c.products[i]
	return &p
}

// List は全商品を定義順で返す。
func (c *Catalog) List() []model.Product {
	return append([]model.Product(nil), c.products...)
}

// Categories はカテゴリを初出順で重複なく返す。
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var categories []string
	for _, p := range c.products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories
}

// ByCategory は指定カテゴリの商品を返す。categoryが空の場合は全商品を返す。
func (c *Catalog) ByCategory(category string) []model.Product {
	if category == "" {
		return c.List()
	}
	result := make([]model.Product, 0)
	for _, p := range c.products {
		if p.Category == category {
			result = append(result, p)
		}
	}
	return result
}

// Len は商品数を返す。
func (c *Catalog) Len() int {
	return len(c.products)
}
