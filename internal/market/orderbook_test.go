package market

import (
	"math/rand"
	"testing"
)

func TestBookGeneratorShape(t *testing.T) {
	g := NewBookGenerator(rand.New(rand.NewSource(1)), 12)
	book := g.Generate(100)

	if len(book.Bids) != 12 || len(book.Asks) != 12 {
		t.Fatalf("depth = %d bids / %d asks, want 12 / 12", len(book.Bids), len(book.Asks))
	}

	for i, lvl := range book.Bids {
		if lvl.Price >= 100 {
			t.Errorf("bid %d: price %v not below mid", i, lvl.Price)
		}
		if i > 0 && lvl.Price >= book.Bids[i-1].Price {
			t.Errorf("bid %d: prices not descending", i)
		}
		if lvl.Total < sizeMin || lvl.Total > sizeMin+sizeSpan {
			t.Errorf("bid %d: size %v out of range", i, lvl.Total)
		}
	}
	for i, lvl := range book.Asks {
		if lvl.Price <= 100 {
			t.Errorf("ask %d: price %v not above mid", i, lvl.Price)
		}
		if i > 0 && lvl.Price <= book.Asks[i-1].Price {
			t.Errorf("ask %d: prices not ascending", i)
		}
	}

	if best := book.BestBid(); best != book.Bids[0].Price {
		t.Errorf("BestBid = %v, want %v", best, book.Bids[0].Price)
	}
	if best := book.BestAsk(); best != book.Asks[0].Price {
		t.Errorf("BestAsk = %v, want %v", best, book.Asks[0].Price)
	}
}

func TestBookSpreadBracketsPrice(t *testing.T) {
	g := NewBookGenerator(rand.New(rand.NewSource(3)), 5)
	book := g.Generate(250)

	if book.BestBid() >= 250 || book.BestAsk() <= 250 {
		t.Errorf("mid 250 not inside spread [%v, %v]", book.BestBid(), book.BestAsk())
	}
}
