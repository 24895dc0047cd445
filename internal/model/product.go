package model

// Product はカタログ上の商品を表す。
// 起動時に読み込まれ、以降は変更されない。
type Product struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Price       float64 `json:"price" yaml:"price"`
	Image       string  `json:"image" yaml:"image"`
	Category    string  `json:"category" yaml:"category"`
	Stock       int     `json:"stock" yaml:"stock"`
}
