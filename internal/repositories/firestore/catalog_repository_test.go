package firestore

import "testing"

func TestBuildDisplay(t *testing.T) {
	doc := &productDocument{
		Name:     " Amber pendant ",
		SKU:      "AMB-001",
		ImageURL: "https://cdn.example.com/p1.jpg",
		Variants: []productVariantDocument{
			{ID: "v1", Name: "Amber pendant, silver chain", SKU: "AMB-001-S"},
			{ID: "v2", ImageURL: "https://cdn.example.com/p1-gold.jpg"},
		},
	}

	t.Run("product only", func(t *testing.T) {
		entry := buildDisplay("p1", nil, doc)
		if entry.Name != "Amber pendant" || entry.SKU != "AMB-001" {
			t.Fatalf("unexpected display %+v", entry)
		}
		if entry.VariantID != nil {
			t.Fatalf("variant set without variant line: %v", entry.VariantID)
		}
	})

	t.Run("variant overlays fields it defines", func(t *testing.T) {
		variant := "v1"
		entry := buildDisplay("p1", &variant, doc)
		if entry.Name != "Amber pendant, silver chain" || entry.SKU != "AMB-001-S" {
			t.Fatalf("variant fields not applied: %+v", entry)
		}
		if entry.ImageURL != "https://cdn.example.com/p1.jpg" {
			t.Fatalf("missing variant image should keep product image: %q", entry.ImageURL)
		}
		if entry.VariantID == nil || *entry.VariantID != "v1" {
			t.Fatalf("variant id lost: %v", entry.VariantID)
		}
	})

	t.Run("variant keeps product fields it omits", func(t *testing.T) {
		variant := "v2"
		entry := buildDisplay("p1", &variant, doc)
		if entry.Name != "Amber pendant" || entry.SKU != "AMB-001" {
			t.Fatalf("product fields not kept: %+v", entry)
		}
		if entry.ImageURL != "https://cdn.example.com/p1-gold.jpg" {
			t.Fatalf("variant image not applied: %q", entry.ImageURL)
		}
	})

	t.Run("unknown variant falls back to product", func(t *testing.T) {
		variant := "v9"
		entry := buildDisplay("p1", &variant, doc)
		if entry.Name != "Amber pendant" {
			t.Fatalf("unexpected display %+v", entry)
		}
	})
}
