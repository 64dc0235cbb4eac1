package storage

import "time"

// RepairOrder is the header row for one repair job: the single authoritative
// record retained for an order id after reconciliation.
type RepairOrder struct {
	OrderID    int
	Timestamp  time.Time
	Status     string
	Cost       float64
	Technician string
}

// RepairOrderDetail is one part consumed by a job. (OrderID, PartName) is
// the table key and OrderID must reference a loaded RepairOrder.
type RepairOrderDetail struct {
	OrderID  int
	PartName string
	Quantity int
}
