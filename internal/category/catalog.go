// Package category loads the expense/income category catalog from YAML.
package category

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ExpenseCategory is a named category with its subcategories, in file
// order.
type ExpenseCategory struct {
	Name          string
	Subcategories []string
}

// Catalog holds the category definitions. Reload swaps the contents
// atomically, so keyboards built mid-reload see a consistent set.
type Catalog struct {
	mu      sync.RWMutex
	path    string
	expense []ExpenseCategory
	income  []string
}

// Load reads the catalog from path.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the YAML file. On error the previous contents stay in
// place.
func (c *Catalog) Reload() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("category: reading %s: %w", c.path, err)
	}

	expense, income, err := parse(raw)
	if err != nil {
		return fmt.Errorf("category: parsing %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.expense = expense
	c.income = income
	c.mu.Unlock()
	return nil
}

// ExpenseNames returns expense category names in file order.
func (c *Catalog) ExpenseNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.expense))
	for i, cat := range c.expense {
		names[i] = cat.Name
	}
	return names
}

// Subcategories returns the subcategories of an expense category.
func (c *Catalog) Subcategories(name string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cat := range c.expense {
		if cat.Name == name {
			return append([]string(nil), cat.Subcategories...), true
		}
	}
	return nil, false
}

// IncomeNames returns income category names in file order.
func (c *Catalog) IncomeNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.income...)
}

// HasIncome reports whether name is a known income category.
func (c *Catalog) HasIncome(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cat := range c.income {
		if cat == name {
			return true
		}
	}
	return false
}

// parse decodes the document through yaml.Node instead of a map so the
// category order of the file is preserved for keyboards.
func parse(raw []byte) ([]ExpenseCategory, []string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("top-level mapping expected")
	}

	var expense []ExpenseCategory
	var income []string

	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "expense_categories":
			if value.Kind != yaml.MappingNode {
				return nil, nil, fmt.Errorf("expense_categories must be a mapping")
			}
			for j := 0; j+1 < len(value.Content); j += 2 {
				var subs []string
				if err := value.Content[j+1].Decode(&subs); err != nil {
					return nil, nil, fmt.Errorf("subcategories of %q: %w", value.Content[j].Value, err)
				}
				expense = append(expense, ExpenseCategory{
					Name:          value.Content[j].Value,
					Subcategories: subs,
				})
			}
		case "income_categories":
			if err := value.Decode(&income); err != nil {
				return nil, nil, fmt.Errorf("income_categories: %w", err)
			}
		}
	}

	if len(expense) == 0 && len(income) == 0 {
		return nil, nil, fmt.Errorf("no categories defined")
	}
	return expense, income, nil
}
