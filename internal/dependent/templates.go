package dependent

import (
	"sort"

	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/models"
)

const (
	secondaryOrdersPerCustomer = 50
	secondaryMetafieldsPerItem = 25

	// ErrorField marks a row whose secondary query failed.
	ErrorField = "_dependent_error"
)

// Template is a two-phase join definition.
type Template struct {
	Name        string
	Description string
	// AttachField is the key the secondary rows are attached under.
	AttachField  string
	PrimaryQuery string
	// SecondaryPath is the gjson path of the secondary rows inside the
	// secondary query's data object.
	SecondaryPath  string
	ExtractIDs     func(rows []models.Record) []string
	SecondaryQuery func(id string) (string, map[string]any)
	Merge          func(primary []models.Record, secondary map[string][]models.Record) []models.Record
}

// Summary is the public listing of a template.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AttachField string `json:"attach_field"`
}

var registry = map[string]*Template{
	"customer_with_orders": {
		Name:        "customer_with_orders",
		Description: "Customers with their most recent orders attached.",
		AttachField: "orders",
		PrimaryQuery: `query CustomersWithOrders($first: Int!) {
  customers(first: $first) {
    edges { node { id firstName lastName email createdAt numberOfOrders } }
  }
}`,
		SecondaryPath: "customer.orders.edges.#.node",
		ExtractIDs:    idsOf,
		SecondaryQuery: func(id string) (string, map[string]any) {
			return `query CustomerOrders($id: ID!, $first: Int!) {
  customer(id: $id) {
    orders(first: $first, sortKey: CREATED_AT, reverse: true) {
      edges {
        node {
          id
          name
          createdAt
          displayFinancialStatus
          totalPriceSet { shopMoney { amount currencyCode } }
        }
      }
    }
  }
}`, map[string]any{"id": id, "first": secondaryOrdersPerCustomer}
		},
		Merge: attachByID("orders"),
	},
	"products_with_metafields": {
		Name:        "products_with_metafields",
		Description: "Products with their metafields attached.",
		AttachField: "metafields",
		PrimaryQuery: `query ProductsWithMetafields($first: Int!) {
  products(first: $first) {
    edges { node { id title handle status vendor productType } }
  }
}`,
		SecondaryPath: "product.metafields.edges.#.node",
		ExtractIDs:    idsOf,
		SecondaryQuery: func(id string) (string, map[string]any) {
			return `query ProductMetafields($id: ID!, $first: Int!) {
  product(id: $id) {
    metafields(first: $first) {
      edges { node { id namespace key value type } }
    }
  }
}`, map[string]any{"id": id, "first": secondaryMetafieldsPerItem}
		},
		Merge: attachByID("metafields"),
	},
}

// Lookup returns the named template or template_not_found.
func Lookup(name string) (*Template, error) {
	tmpl, ok := registry[name]
	if !ok {
		return nil, apperr.Newf(apperr.CodeTemplateNotFound, "Dependent template %q not found", name)
	}
	return tmpl, nil
}

// List returns every template sorted by name.
func List() []Summary {
	out := make([]Summary, 0, len(registry))
	for _, t := range registry {
		out = append(out, Summary{Name: t.Name, Description: t.Description, AttachField: t.AttachField})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// idsOf collects distinct non-empty "id" values in row order.
func idsOf(rows []models.Record) []string {
	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		id := rowID(row)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func rowID(row models.Record) string {
	id, _ := row["id"].(string)
	return id
}

// attachByID copies each primary row and sets field to the secondary rows
// for its id, or to an empty list.
func attachByID(field string) func([]models.Record, map[string][]models.Record) []models.Record {
	return func(primary []models.Record, secondary map[string][]models.Record) []models.Record {
		out := make([]models.Record, 0, len(primary))
		for _, row := range primary {
			merged := make(models.Record, len(row)+1)
			for k, v := range row {
				merged[k] = v
			}
			related, ok := secondary[rowID(row)]
			if !ok {
				related = []models.Record{}
			}
			merged[field] = related
			out = append(out, merged)
		}
		return out
	}
}
