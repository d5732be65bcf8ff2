package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairBalance(t *testing.T) {
	ctx := context.Background()
	l, db, _ := setup(t)
	c := mustClient(t, l, db, "A")
	emContaProcess(t, l, db, c.ID, "P-1", "500", nil)

	// Something outside the ledger wrote the column.
	_, err := db.ExecContext(ctx, `UPDATE clients SET balance = 42 WHERE id = ?`, c.ID)
	require.NoError(t, err)

	before, err := l.RepairBalance(ctx, db, c.ID)
	require.NoError(t, err)
	assertMoney(t, "42", before.Stored)
	assertMoney(t, "500", before.Computed)
	assertMoney(t, "-458", before.Drift)

	assertMoney(t, "500", storedBalance(t, db, c.ID))
	assertInSync(t, l, db, c.ID)

	again, err := l.RepairBalance(ctx, db, c.ID)
	require.NoError(t, err)
	assert.True(t, again.InSync())
}

func TestRecomputeBalance_IgnoresDeletedAndOffAccount(t *testing.T) {
	ctx := context.Background()
	l, db, _ := setup(t)
	c := mustClient(t, l, db, "A")

	p := emContaProcess(t, l, db, c.ID, "P-1", "500", nil)
	emContaProcess(t, l, db, c.ID, "P-2", "120", nil)
	_, _, err := l.CreateProcess(ctx, db, NewProcess{ClientID: c.ID, ProcessNumber: "P-3", ValueCharged: dec("999"), PaymentMethod: Cartao})
	require.NoError(t, err)
	_, err = l.DeleteProcess(ctx, db, p.ID)
	require.NoError(t, err)

	r, err := l.RecomputeBalance(ctx, db, c.ID)
	require.NoError(t, err)
	assertMoney(t, "120", r.Computed)
	assert.True(t, r.InSync())

	_, err = l.RecomputeBalance(ctx, db, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecomputeBalance_ThirdsStayInSync(t *testing.T) {
	ctx := context.Background()
	l, db, _ := setup(t)
	c := mustClient(t, l, db, "A")
	p := emContaProcess(t, l, db, c.ID, "P-1", "1000", &InstallmentPlan{Count: 3, FirstDueDate: datePtr(t, "2024-01-01")})

	payments, err := l.ListPayments(ctx, db, ProcessRef(p.ID))
	require.NoError(t, err)
	for _, pay := range payments[:2] {
		id := pay.ID
		_, err := l.SavePayment(ctx, db, &id, NewPayment{ProcessID: &p.ID, ValuePaid: pay.ValuePaid, Status: Pago})
		require.NoError(t, err)
	}
	assertInSync(t, l, db, c.ID)
}

func TestClientIDs(t *testing.T) {
	ctx := context.Background()
	l, db, _ := setup(t)
	a := mustClient(t, l, db, "A")
	b := mustClient(t, l, db, "B")
	_, err := l.DeleteClient(ctx, db, a.ID)
	require.NoError(t, err)

	ids, err := l.ClientIDs(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids)
}
