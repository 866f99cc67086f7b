package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rl1809/pos-register/internal/core/domain"
)

type productEntry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int    `yaml:"stock"`
}

// LoadProducts reads a product catalog file:
//
//	products:
//	  - id: "7501055300075"
//	    name: Milk 1L
//	    price: "2.00"
//	    stock: 40
func LoadProducts(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}

	var file struct {
		Products []productEntry `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse products: %w", err)
	}

	seen := make(map[string]bool, len(file.Products))
	products := make([]domain.Product, 0, len(file.Products))
	for i, e := range file.Products {
		if e.ID == "" {
			return nil, fmt.Errorf("product %d: id is required", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("product %s: duplicate id", e.ID)
		}
		seen[e.ID] = true

		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("product %s: invalid price %q: %w", e.ID, e.Price, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("product %s: price must not be negative", e.ID)
		}
		// prices are stored as DECIMAL(12,2)
		if !price.Equal(price.Round(2)) {
			return nil, fmt.Errorf("product %s: price %s has more than 2 decimal places", e.ID, e.Price)
		}
		if e.Stock < 0 {
			return nil, fmt.Errorf("product %s: stock must not be negative", e.ID)
		}

		products = append(products, domain.Product{
			ID:        e.ID,
			Name:      e.Name,
			UnitPrice: price,
			Stock:     e.Stock,
		})
	}
	return products, nil
}
