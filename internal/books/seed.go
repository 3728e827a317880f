package books

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"bookhub/pkg/domain"
)

//go:embed seed/books.json
var seedJSON []byte

// Dataset is the bundled default data used when storage is empty.
type Dataset struct {
	Books []domain.Book `json:"books"`
	Users []domain.User `json:"users"`
}

// DefaultDataset decodes the embedded dataset.
func DefaultDataset() (Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(seedJSON, &ds); err != nil {
		return Dataset{}, fmt.Errorf("decode bundled dataset: %w", err)
	}
	return ds, nil
}
