package payments

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Package is a purchasable bundle of CV reviews.
type Package struct {
	ID      string `yaml:"id" json:"id"`
	Reviews int    `yaml:"reviews" json:"reviews"`
	Price   int    `yaml:"price" json:"price"`
}

// Advisory is a one-off paid session with a career advisor.
type Advisory struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Price       int    `yaml:"price" json:"price"`
	Description string `yaml:"description" json:"description"`
}

// PromoCode grants unlimited access when redeemed.
type PromoCode struct {
	Code        string `yaml:"code" json:"code"`
	Description string `yaml:"description" json:"description"`
}

// Catalog lists everything a user can buy or redeem.
type Catalog struct {
	Currency   string      `yaml:"currency" json:"currency"`
	PayeeName  string      `yaml:"payee_name" json:"payeeName"`
	Packages   []Package   `yaml:"packages" json:"packages"`
	Advisories []Advisory  `yaml:"advisories" json:"advisories"`
	PromoCodes []PromoCode `yaml:"promo_codes" json:"promoCodes"`
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		Currency: "S/",
		Packages: []Package{
			{ID: "package_1", Reviews: 1, Price: 4},
			{ID: "package_3", Reviews: 3, Price: 7},
			{ID: "package_6", Reviews: 6, Price: 10},
		},
		Advisories: []Advisory{
			{ID: "advisory_cv", Name: "Asesoría de CV", Price: 25, Description: "Revisión 1 a 1 de tu CV con un especialista (30 min)."},
			{ID: "advisory_interview", Name: "Simulacro de entrevista", Price: 40, Description: "Entrevista simulada en vivo con retroalimentación (45 min)."},
		},
	}
}

// LoadCatalog reads a YAML catalog. An empty path returns DefaultCatalog;
// sections missing from the file keep their defaults.
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	if strings.TrimSpace(path) == "" {
		return cat, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var file Catalog
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if file.Currency != "" {
		cat.Currency = file.Currency
	}
	if file.PayeeName != "" {
		cat.PayeeName = file.PayeeName
	}
	if len(file.Packages) > 0 {
		cat.Packages = file.Packages
	}
	if len(file.Advisories) > 0 {
		cat.Advisories = file.Advisories
	}
	if len(file.PromoCodes) > 0 {
		cat.PromoCodes = file.PromoCodes
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Validate checks ids are unique and amounts positive.
func (c Catalog) Validate() error {
	var errs []error
	if len(c.Packages) == 0 {
		errs = append(errs, errors.New("at least one package is required"))
	}
	seen := map[string]bool{}
	for _, p := range c.Packages {
		if p.ID == "" || p.Reviews <= 0 || p.Price <= 0 {
			errs = append(errs, fmt.Errorf("package %q needs an id, reviews and price", p.ID))
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("duplicate id %q", p.ID))
		}
		seen[p.ID] = true
	}
	for _, a := range c.Advisories {
		if a.ID == "" || a.Price <= 0 {
			errs = append(errs, fmt.Errorf("advisory %q needs an id and price", a.ID))
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate id %q", a.ID))
		}
		seen[a.ID] = true
	}
	codes := map[string]bool{}
	for _, p := range c.PromoCodes {
		key := strings.ToUpper(strings.TrimSpace(p.Code))
		if key == "" {
			errs = append(errs, errors.New("promo code cannot be empty"))
		}
		if codes[key] {
			errs = append(errs, fmt.Errorf("duplicate promo code %q", p.Code))
		}
		codes[key] = true
	}
	return errors.Join(errs...)
}

// FormatPrice renders an amount with the catalog currency.
func (c Catalog) FormatPrice(amount int) string {
	cur := c.Currency
	if cur == "" {
		cur = "S/"
	}
	return fmt.Sprintf("%s %d", cur, amount)
}

var numberPattern = regexp.MustCompile(`\d+`)

// MatchPackage resolves a button id ("package_3") or free text mentioning
// the price or review count ("el de 3 revisiones", "S/ 7") to a package.
func (c Catalog) MatchPackage(input string) (Package, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return Package{}, false
	}
	for _, p := range c.Packages {
		if text == strings.ToLower(p.ID) {
			return p, true
		}
	}
	for _, p := range c.Packages {
		if strings.Contains(text, strings.ToLower(p.ID)) {
			return p, true
		}
	}
	for _, n := range numbersIn(text) {
		for _, p := range c.Packages {
			if n == p.Reviews || n == p.Price {
				return p, true
			}
		}
	}
	return Package{}, false
}

// MatchAdvisory resolves an advisory by id, name, price or 1-based position.
func (c Catalog) MatchAdvisory(input string) (Advisory, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return Advisory{}, false
	}
	for _, a := range c.Advisories {
		if text == strings.ToLower(a.ID) || strings.Contains(text, strings.ToLower(a.ID)) {
			return a, true
		}
		if a.Name != "" && strings.Contains(text, strings.ToLower(a.Name)) {
			return a, true
		}
	}
	for _, n := range numbersIn(text) {
		for i, a := range c.Advisories {
			if n == a.Price || n == i+1 {
				return a, true
			}
		}
	}
	return Advisory{}, false
}

// PackageByID looks up a package by exact id.
func (c Catalog) PackageByID(id string) (Package, bool) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// AdvisoryByID looks up an advisory by exact id.
func (c Catalog) AdvisoryByID(id string) (Advisory, bool) {
	for _, a := range c.Advisories {
		if a.ID == id {
			return a, true
		}
	}
	return Advisory{}, false
}

// Promo looks up a promo code case-insensitively.
func (c Catalog) Promo(code string) (PromoCode, bool) {
	code = strings.TrimSpace(code)
	for _, p := range c.PromoCodes {
		if strings.EqualFold(p.Code, code) {
			return p, true
		}
	}
	return PromoCode{}, false
}

func numbersIn(text string) []int {
	var out []int
	for _, m := range numberPattern.FindAllString(text, -1) {
		if n, err := strconv.Atoi(m); err == nil {
			out = append(out, n)
		}
	}
	return out
}
