package parser

import (
	"testing"
)

const characteristicsFixture = `<html><body>
	<span data-go-back-catalog>Смартфоны</span>
	<h1 class="title">Характеристики Смартфон Widget 9000 8/256 ГБ</h1>
	<div class="product-buy__price">
		49 999 ₽ <span class="product-buy__prev">54 999 ₽</span>
	</div>
	<a class="header-product__link_rating">4.85</a>
	<div class="product-card-description-text">Флагманский смартфон.</div>
	<div class="product-characteristics__spec-title">Оперативная память</div>
	<div class="product-characteristics__spec-title">Встроенная память</div>
	<div class="product-characteristics__spec-value">8 ГБ</div>
	<div class="product-characteristics__spec-value">256 ГБ</div>
</body></html>`

func TestCharacteristicsParse(t *testing.T) {
	p := NewCharacteristicsParser(testLogger())
	doc, err := p.Parse(characteristicsFixture, "https://shop.example/product/widget-9000/characteristics/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.SourceURL != "https://shop.example/product/widget-9000" {
		t.Errorf("SourceURL = %q", doc.SourceURL)
	}
	if doc.Name != "Смартфон Widget 9000 8/256 ГБ" {
		t.Errorf("Name = %q", doc.Name)
	}
	if doc.Price != 49999 {
		t.Errorf("Price = %d, want 49999 (previous price must not leak in)", doc.Price)
	}
	if doc.Rating != "4.85" {
		t.Errorf("Rating = %q", doc.Rating)
	}
	if doc.Category != "Смартфоны" {
		t.Errorf("Category = %q", doc.Category)
	}
	if doc.Description != "Флагманский смартфон." {
		t.Errorf("Description = %q", doc.Description)
	}
	if len(doc.Characteristics) != 2 {
		t.Fatalf("Characteristics = %v", doc.Characteristics)
	}
	if doc.Characteristics["Оперативная память"] != "8 ГБ" {
		t.Errorf("spec value = %q", doc.Characteristics["Оперативная память"])
	}
}

func TestCharacteristicsParseFallbacks(t *testing.T) {
	p := NewCharacteristicsParser(testLogger())
	doc, err := p.Parse("<html><body><h1 class=\"title\">Характеристики Широкий Гаджет</h1></body></html>",
		"https://shop.example/product/gadget/characteristics/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.Price != 0 {
		t.Errorf("Price = %d, want 0", doc.Price)
	}
	if doc.Rating != "Нет рейтинга" {
		t.Errorf("Rating = %q", doc.Rating)
	}
	if doc.Category != "Не указана" {
		t.Errorf("Category = %q", doc.Category)
	}
	if doc.Description != "Описание отсутствует" {
		t.Errorf("Description = %q", doc.Description)
	}
	if len(doc.Characteristics) != 0 {
		t.Errorf("Characteristics = %v, want empty", doc.Characteristics)
	}
}

func TestCharacteristicsSpecTruncation(t *testing.T) {
	html := `<html><body>
		<div class="product-characteristics__spec-title">Вес</div>
		<div class="product-characteristics__spec-title">Цвет</div>
		<div class="product-characteristics__spec-title">Гарантия</div>
		<div class="product-characteristics__spec-value">190 г</div>
		<div class="product-characteristics__spec-value">чёрный</div>
	</body></html>`

	p := NewCharacteristicsParser(testLogger())
	doc, err := p.Parse(html, "https://shop.example/product/x/characteristics/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Characteristics) != 2 {
		t.Fatalf("got %d specs, want 2 (truncate to shorter side)", len(doc.Characteristics))
	}
	if _, ok := doc.Characteristics["Гарантия"]; ok {
		t.Error("unpaired title must be dropped")
	}
}
