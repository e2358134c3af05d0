package lemonrest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/denismitr/lemonrest"
)

func fixturePath(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "items.json")
	if contents != "" {
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}

	return path
}

func openCollection(t *testing.T, path string, cfg *lemonrest.Config) *lemonrest.Collection {
	t.Helper()

	c, closer, err := lemonrest.Open(path, cfg)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := closer(); err != nil {
			t.Errorf("ERROR: %v", err)
		}
	})

	return c
}

func seedProducts(t *testing.T, c *lemonrest.Collection) []int64 {
	t.Helper()

	var ids []int64
	if err := c.Update(context.Background(), func(tx *lemonrest.Tx) error {
		for _, p := range []lemonrest.M{
			{"name": "Widget", "price": 10, "color": "red"},
			{"name": "Gadget", "price": 25.5, "color": "blue"},
			{"name": "Gizmo", "price": 7, "color": "red"},
			{"name": "Doohickey", "price": 99, "color": "green"},
		} {
			r, err := tx.Create(p)
			if err != nil {
				return err
			}
			ids = append(ids, r.ID())
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	return ids
}
