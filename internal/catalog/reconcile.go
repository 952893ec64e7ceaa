package catalog

const (
	reasonMissing      = "missing required fields"
	reasonInvalidPrice = "price must be a non-negative number"
)

// ValidateCreate checks that every required field is present. A zero price
// is a valid price.
func ValidateCreate(in Input) error {
	in = in.trimmed()

	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Price.IsZero() {
		missing = append(missing, "price")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if in.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: reasonMissing}
	}

	if err := in.Price.validate(); err != nil {
		return &ValidationError{Fields: []string{"price"}, Reason: reasonInvalidPrice}
	}
	return nil
}

// ValidatePatch only checks fields that are present.
func ValidatePatch(in Input) error {
	if in.Price.IsZero() {
		return nil
	}
	if err := in.Price.validate(); err != nil {
		return &ValidationError{Fields: []string{"price"}, Reason: reasonInvalidPrice}
	}
	return nil
}

func newProduct(id ID, in Input, image *string) Product {
	in = in.trimmed()
	return Product{
		ID:          id,
		Name:        in.Name,
		Price:       in.Price.normalized(),
		Description: in.Description,
		Category:    in.Category,
		Image:       image,
	}
}

// Merge applies in to existing, skipping empty fields. A non-nil image
// replaces the stored reference; a nil image keeps it. The id never changes.
func Merge(existing Product, in Input, image *string) Product {
	in = in.trimmed()
	out := existing

	if in.Name != "" {
		out.Name = in.Name
	}
	if !in.Price.IsZero() {
		out.Price = in.Price.normalized()
	}
	if in.Description != "" {
		out.Description = in.Description
	}
	if in.Category != "" {
		out.Category = in.Category
	}
	if image != nil {
		out.Image = image
	}
	return out
}
