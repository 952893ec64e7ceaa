package catalog

import "github.com/google/uuid"

type IDAllocator interface {
	NextID() ID
}

// UUIDs allocates random (v4) UUID ids.
type UUIDs struct{}

func (UUIDs) NextID() ID { return StringID(uuid.NewString()) }

// nextFreeID draws until the id is not already taken in products.
func nextFreeID(alloc IDAllocator, products []Product) ID {
	for {
		id := alloc.NextID()
		if !id.IsZero() && indexOf(products, id.String()) < 0 {
			return id
		}
	}
}
