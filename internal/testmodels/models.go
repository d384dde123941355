package testmodels

import (
	"fmt"
	"time"
)

// Address is a postal address.
// The details of its city are inlined, see [CityInfo].
type Address struct {
	// Street is the street name followed by the building number.
	Street string   `json:"street"`
	City   CityInfo `json:",inline"`
}

// CityInfo identifies a city.
type CityInfo struct {
	// Name is the name of the city.
	Name string `json:"name"`
	Zip  string `json:"zip"` // Zip is not a valid doc string.
}

// Customer keeps its state private and exposes it through accessors.
type Customer struct {
	id        string
	name      string
	active    bool
	password  string
	createdAt time.Time
	address   Address
}

// GetID returns the unique customer identifier.
func (c Customer) GetID() string { return c.id }

func (c *Customer) SetID(id string) { c.id = id }

// GetName returns the full name of the customer.
//
// Deprecated: Use GetID to identify customers.
func (c Customer) GetName() string { return c.name }

// SetName is a builder style setter.
func (c *Customer) SetName(name string) *Customer {
	c.name = name
	return c
}

// IsActive reports whether the customer can place orders.
func (c Customer) IsActive() bool { return c.active }

// SetPassword has no getter counterpart.
func (c *Customer) SetPassword(password string) { c.password = password }

// GetCreatedAt has no setter counterpart.
func (c Customer) GetCreatedAt() time.Time { return c.createdAt }

func (c Customer) GetAddress() Address { return c.address }

func (c *Customer) SetAddress(address Address) { c.address = address }

// String is not an accessor.
func (c Customer) String() string { return fmt.Sprintf("Customer(%s)", c.id) }

// Person is embedded in [Employee].
type Person struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Employee inherits the properties of [Person] through embedding.
type Employee struct {
	Person
	// Title is the job title.
	Title  string `json:"title"`
	Salary int    `json:"-"`
}

// Node is a linked list element which inlines its successor.
// Unwrapping it never terminates.
type Node struct {
	Value string `json:"value"`
	Next  *Node  `json:",inline"`
}

// Category is a recursive, but not unwrapped, tree.
type Category struct {
	Name     string     `json:"name"`
	Children []Category `json:"children"`
}

// Shipment tries to inline a property which is not a struct.
type Shipment struct {
	Tracking string  `json:"tracking"`
	Weight   float64 `json:"weight"`
	Notes    string  `json:",inline"`
}

// Status of an order.
// ENUM(pending, shipped, delivered)
type Status string

// Order is placed by a [Customer].
type Order struct {
	// Number is the human readable order number.
	Number string `json:"number"`
	Status Status `json:"status"`
	// Items maps product codes to quantities.
	Items    map[string]int `json:"items"`
	Customer *Customer      `json:"customer"`
	// Deprecated: Use Customer instead.
	CustomerID string `json:"customerId"`
	Tags       []string
}

// Audit is embedded in [Invoice] and keeps part of its state behind accessors.
type Audit struct {
	Author   string `json:"author"`
	revision int
}

// GetRevision returns the number of times the document was amended.
func (a Audit) GetRevision() int { return a.revision }

func (a *Audit) SetRevision(revision int) { a.revision = revision }

// Invoice inherits both the fields and the accessors of [Audit].
type Invoice struct {
	Audit
	Total float64 `json:"total"`
}

type ledgerEntry struct {
	// Account is promoted to [Ledger] even though its struct is unexported.
	Account string `json:"account"`
}

// Ledger embeds an unexported struct.
type Ledger struct {
	ledgerEntry
	Balance int `json:"balance"`
}
