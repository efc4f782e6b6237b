package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// orderFile is the on-disk order description accepted by validate and
// submit. YAML and JSON both parse (JSON is a YAML subset).
type orderFile struct {
	CustomerName string `yaml:"customer_name" json:"customer_name"`
	DeliveryDate string `yaml:"delivery_date" json:"delivery_date"`
	DeliverySlot string `yaml:"delivery_slot" json:"delivery_slot"`
	Items        []struct {
		Product  string `yaml:"product" json:"product"`
		Quantity int    `yaml:"quantity" json:"quantity"`
	} `yaml:"items" json:"items"`
}

func readOrderFile(path string) (*orderFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read order: %w", err)
	}
	var order orderFile
	if err := yaml.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("parse order: %w", err)
	}
	return &order, nil
}
