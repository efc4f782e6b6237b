package model

import "time"

// Order is a customer order submitted to the scheduler. Orders are created
// by the intake boundary and are immutable once handed to the engine; the
// scheduler never mutates them.
type Order struct {
	ID           string      `json:"id"`
	CustomerName string      `json:"customer_name"`
	Status       OrderStatus `json:"status"`

	// DeliveryDate is the calendar date in YYYY-MM-DD form.
	DeliveryDate string `json:"delivery_date"`

	// DeliverySlot is the delivery window start in HH:MM form.
	DeliverySlot string `json:"delivery_slot"`

	Items []OrderItem `json:"items"`

	CreatedAt time.Time `json:"created_at"`
}

// OrderItem references a product and a positive quantity.
type OrderItem struct {
	ID       string `json:"id"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// DeliveryTime combines DeliveryDate and DeliverySlot into a UTC instant.
func (o *Order) DeliveryTime() (time.Time, error) {
	return time.Parse("2006-01-02 15:04", o.DeliveryDate+" "+o.DeliverySlot)
}

// TotalQuantity returns the summed quantity across all items.
func (o *Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}
