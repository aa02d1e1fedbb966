// Package config loads the CUE configuration file of the flwor command.
//
// A configuration file is unified with an embedded schema that supplies
// defaults and rejects unknown fields:
//
//	engine: {
//		mode:      "push"
//		optimize:  true
//		trace:     false
//		cache:     128
//		max_items: 0
//		db:        "orders.db"
//	}
//	collections: orders: "testdata/orders.json"
//	variables: min: 10
//
// Relative collection paths resolve against the directory of the
// configuration file.
package config
