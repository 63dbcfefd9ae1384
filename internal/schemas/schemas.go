// Package schemas compiles the JSON Schemas used to check api responses before they are decoded.
//
// The built-in schemas are embedded under json/ and are addressed by file name without the extension
// (e.g. "login_response"). Schemas may $ref each other by relative file name.
package schemas

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// names of the built-in schemas
const (
	LoginResponse    = "login_response"
	CurrentUser      = "current_user"
	Created          = "created"
	Deleted          = "deleted"
	Health           = "health"
	Car              = "car"
	CarList          = "car_list"
	BillingDoc       = "billing_doc"
	BillingList      = "billing_list"
	Expense          = "expense"
	ExpenseList      = "expense_list"
	Customer         = "customer"
	CustomerList     = "customer_list"
	Work             = "work"
	WorkList         = "work_list"
	Invite           = "invite"
	InviteList       = "invite_list"
	Seats            = "seats"
	ProfitSummary    = "profit_summary"
	DashboardSummary = "dashboard_summary"

	ProfitDaily       = "profit_daily"
	ProfitMonthly     = "profit_monthly"
	ProfitByWork      = "profit_by_work"
	CostByItem        = "cost_by_item"
	InventoryItem     = "inventory_item"
	InventoryItemList = "inventory_item_list"
	StockMove         = "stock_move"
	StockMoveList     = "stock_move_list"
	WorkMaterial      = "work_material"
	WorkMaterialList  = "work_material_list"
	Store             = "store"
	StoreList         = "store_list"
	ValuationSettings = "valuation_settings"
	Valuation         = "valuation"
)

const baseURL = "https://schemas.vlp-saas.local/"

//go:embed json/*.json
var builtinFS embed.FS

var ErrUnknownSchema = errors.New("unknown schema")

// Registry holds compiled schemas by name. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// New compiles the built-in schemas.
func New() (*Registry, error) {
	r := &Registry{schemas: make(map[string]*jsonschema.Schema)}

	entries, err := fs.ReadDir(builtinFS, "json")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}

	// every resource is added before compiling so relative $refs resolve
	c := jsonschema.NewCompiler()
	var names []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		content, err := builtinFS.ReadFile("json/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("schema %s is not valid JSON: %w", e.Name(), err)
		}
		if err := c.AddResource(baseURL+e.Name(), doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}

	for _, name := range names {
		sch, err := c.Compile(baseURL + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("invalid JSON Schema %s: %w", name, err)
		}
		r.schemas[name] = sch
	}

	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns a process-wide registry of the built-in schemas.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = New()
	})
	return defaultRegistry, defaultErr
}

// Register compiles content and stores it under name, replacing any existing schema.
func (r *Registry) Register(name, content string) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("schema content is not valid JSON: %w", err)
	}

	url := baseURL + "custom/" + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return fmt.Errorf("add schema %s: %w", name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("invalid JSON Schema format: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[name] = sch
	return nil
}

// Has reports whether a schema called name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[name]
	return ok
}

// Names returns the registered schema names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks raw JSON against the named schema.
func (r *Registry) Validate(name string, raw []byte) error {
	r.mu.RLock()
	sch, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON format: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
