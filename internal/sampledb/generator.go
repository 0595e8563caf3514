package sampledb

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

var (
	firstNames = []string{"Alice", "Carlos", "Dana", "Elif", "Farah", "Gustav", "Hiro", "Ines", "Jamal", "Kira", "Luca", "Mei"}
	lastNames  = []string{"Anders", "Brooks", "Costa", "Dubois", "Eriksen", "Fischer", "Garcia", "Huang", "Ivanova", "Kowalski"}
	categories = []string{"Electronics", "Books", "Home", "Garden", "Toys", "Sports"}
	nouns      = []string{"Lamp", "Chair", "Headphones", "Notebook", "Kettle", "Backpack", "Monitor", "Blender", "Racket", "Puzzle"}
	adjectives = []string{"Compact", "Deluxe", "Eco", "Classic", "Smart", "Pro"}
)

var orderEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Generator produces deterministic rows for a given seed.
type Generator struct {
	rnd *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Customers(firstID int64, count int) []Customer {
	out := make([]Customer, 0, max(count, 0))
	for i := 0; i < count; i++ {
		id := firstID + int64(i)
		first := pickOne(g.rnd, firstNames)
		last := pickOne(g.rnd, lastNames)
		out = append(out, Customer{
			ID:        id,
			FirstName: first,
			LastName:  last,
			Email:     fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), id),
			Phone:     fmt.Sprintf("555-%04d", 1000+g.rnd.Intn(9000)),
		})
	}
	return out
}

// Orders references customer ids in [1, customerCount].
func (g *Generator) Orders(firstID int64, count int, customerCount int64) []Order {
	out := make([]Order, 0, max(count, 0))
	if customerCount <= 0 {
		return out
	}
	for i := 0; i < count; i++ {
		out = append(out, Order{
			ID:          firstID + int64(i),
			CustomerID:  g.rnd.Int63n(customerCount) + 1,
			OrderDate:   orderEpoch.AddDate(0, 0, g.rnd.Intn(365)).Format("2006-01-02"),
			TotalAmount: round2(5 + g.rnd.Float64()*495),
			Status:      g.pickStatus(),
		})
	}
	return out
}

func (g *Generator) Products(firstID int64, count int) []Product {
	out := make([]Product, 0, max(count, 0))
	for i := 0; i < count; i++ {
		out = append(out, Product{
			ID:            firstID + int64(i),
			Name:          pickOne(g.rnd, adjectives) + " " + pickOne(g.rnd, nouns),
			Category:      pickOne(g.rnd, categories),
			Price:         round2(3 + g.rnd.Float64()*297),
			StockQuantity: g.rnd.Intn(200),
		})
	}
	return out
}

func (g *Generator) pickStatus() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 60:
		return "completed"
	case p < 80:
		return "shipped"
	case p < 95:
		return "pending"
	default:
		return "cancelled"
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
