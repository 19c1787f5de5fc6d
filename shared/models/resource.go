// shared/models/resource.go
package models

// Resource is a countable consumable or equipment type tracked by the resource ledger.
type Resource struct {
	ID                string `bson:"_id" json:"id"`
	Name              string `bson:"name" json:"name"`
	Type              string `bson:"type" json:"type"`
	Unit              string `bson:"unit" json:"unit"`
	TotalQuantity     int    `bson:"total_quantity" json:"totalQuantity"`
	AllocatedQuantity int    `bson:"allocated_quantity" json:"allocatedQuantity"`
}

// AvailableQuantity is the part of the total not currently allocated.
func (r Resource) AvailableQuantity() int {
	return r.TotalQuantity - r.AllocatedQuantity
}
