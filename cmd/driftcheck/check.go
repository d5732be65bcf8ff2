package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/matthewbaird/lawoffice/internal/ledger"
	"github.com/matthewbaird/lawoffice/internal/store"
)

type checker struct {
	db     *sql.DB
	ledger *ledger.Ledger
	out    io.Writer
}

type summary struct {
	Checked   int
	Drifted   int
	Repaired  int
	Remaining int
}

// run checks ids, or every live client when ids is empty. Each repair is
// its own transaction.
func (c checker) run(ctx context.Context, ids []int64, fix bool) (summary, error) {
	var s summary
	if len(ids) == 0 {
		var err error
		if ids, err = c.ledger.ClientIDs(ctx, c.db); err != nil {
			return s, err
		}
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tSTORED\tCOMPUTED\tDRIFT\tSTATUS")
	for _, id := range ids {
		report, err := c.ledger.RecomputeBalance(ctx, c.db, id)
		if err != nil {
			return s, err
		}
		s.Checked++

		status := "ok"
		if !report.InSync() {
			s.Drifted++
			status = "drift"
			if fix {
				err := store.WithTx(ctx, c.db, func(tx *sql.Tx) error {
					_, err := c.ledger.RepairBalance(ctx, tx, id)
					return err
				})
				if err != nil {
					return s, err
				}
				s.Repaired++
				status = "repaired"
			} else {
				s.Remaining++
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", id,
			report.Stored.StringFixed(2), report.Computed.StringFixed(2), report.Drift.StringFixed(2), status)
	}
	if err := tw.Flush(); err != nil {
		return s, err
	}
	fmt.Fprintf(c.out, "\n%d checked, %d drifted, %d repaired\n", s.Checked, s.Drifted, s.Repaired)
	return s, nil
}
