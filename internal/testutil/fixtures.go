package testutil

import "github.com/roach88/flwor/internal/ir"

// Orders returns a small order collection used across package tests.
// Documents are in id order; order 4 has no status.
func Orders() ir.Sequence {
	return ir.Sequence{
		order(1, "open", "ana", 30),
		order(2, "closed", "bo", 10),
		order(3, "open", "bo", 20),
		ir.NewObject(ir.O("id", ir.Int(4)), ir.O("customer", ir.String("cy")), ir.O("total", ir.Int(5))),
	}
}

func order(id int64, status, customer string, total int64) ir.Object {
	return ir.NewObject(
		ir.O("id", ir.Int(id)),
		ir.O("status", ir.String(status)),
		ir.O("customer", ir.String(customer)),
		ir.O("total", ir.Int(total)),
	)
}
