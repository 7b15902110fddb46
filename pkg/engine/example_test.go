package engine_test

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/store/memory"
)

// Example reconciles a single investigator row into an empty store.
func Example() {
	d, _ := engine.LookupDeployment("default")
	eng, _ := engine.New(memory.New(), d, engine.WithLogger(zap.NewNop()))

	rows := []engine.Row{engine.NewRow(map[string]string{
		engine.ColGrantLocalKey:        "90045678",
		engine.ColGrantAwardStatus:     "Active",
		engine.ColDirectFunderLocalKey: "20000123",
		engine.ColDirectFunderName:     "National Science Foundation",
		engine.ColUserEmployeeID:       "0000456",
		engine.ColAbbreviatedRole:      "P",
		engine.ColUpdateTimestamp:      "2018-12-12 14:08:14.0",
	})}

	res, err := eng.Synchronize(context.Background(), rows, engine.ModeGrant)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, ref := range res.GrantOrder {
		fmt.Println(res.Grants[ref].LocalKey, res.Grants[ref].AwardStatus)
	}
	fmt.Println(res.Watermark)

	// Output:
	// johnshopkins.edu:grant:90045678 active
	// 2018-12-12 14:08:14.0
}

// ExampleWatermark_Fold shows that timestamps are compared as datetimes.
func ExampleWatermark_Fold() {
	var w engine.Watermark
	for _, ts := range []string{"2019-12-31 23:59:59.0", "01/02/2020", "2019-06-01"} {
		if err := w.Fold(ts, true); err != nil {
			fmt.Println(err)
		}
	}
	fmt.Println(w.Latest())

	// Output:
	// 01/02/2020
}
