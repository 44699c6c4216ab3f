package ledger_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/repository"
	"github.com/gatewaylabs/payment-gateway/internal/service/ledger"
	"github.com/gatewaylabs/payment-gateway/internal/testutil"
)

func setupLedger(t *testing.T, db *sql.DB) *ledger.Service {
	t.Helper()
	return ledger.NewService(
		repository.NewAccountRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewUserRepository(db),
		db,
	)
}

func TestDeposit_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	client := testutil.SeedUser(t, db, "client@test.com", "Client", domain.RoleClient)
	acct := testutil.SeedAccount(t, db, client.ID, "0.00")

	err := svc.Deposit(ctx, client.ID, domain.MustMoney("100.00"), nil)
	require.NoError(t, err)

	assert.True(t, testutil.GetBalance(t, db, acct.ID).Equal(domain.MustMoney("100.00")))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, acct.ID, domain.TransactionStatusApproved))

	// deposit transaction references the account on both sides
	var payerID, merchantID uuid.UUID
	var description string
	err = db.QueryRow(
		`SELECT payer_account_id, merchant_account_id, description FROM transactions
		 WHERE payer_account_id = $1`, acct.ID,
	).Scan(&payerID, &merchantID, &description)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, payerID)
	assert.Equal(t, acct.ID, merchantID)
	assert.Equal(t, "Account deposit", description)
}

func TestDeposit_AccumulatesBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	client := testutil.SeedUser(t, db, "client@test.com", "Client", domain.RoleClient)
	acct := testutil.SeedAccount(t, db, client.ID, "10.50")

	require.NoError(t, svc.Deposit(ctx, client.ID, domain.MustMoney("0.01"), nil))
	require.NoError(t, svc.Deposit(ctx, client.ID, domain.MustMoney("39.49"), nil))

	assert.True(t, testutil.GetBalance(t, db, acct.ID).Equal(domain.MustMoney("50.00")))
	assert.Equal(t, 2, testutil.CountTransactions(t, db, acct.ID, domain.TransactionStatusApproved))
}

func TestDeposit_InvalidAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	client := testutil.SeedUser(t, db, "client@test.com", "Client", domain.RoleClient)
	acct := testutil.SeedAccount(t, db, client.ID, "25.00")

	err := svc.Deposit(ctx, client.ID, domain.MustMoney("-5.00"), nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	err = svc.Deposit(ctx, client.ID, domain.MustMoney("0"), nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	assert.True(t, testutil.GetBalance(t, db, acct.ID).Equal(domain.MustMoney("25.00")))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestDeposit_UnknownOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)

	err := svc.Deposit(context.Background(), uuid.New(), domain.MustMoney("10.00"), nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeposit_ConcurrentCredits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	client := testutil.SeedUser(t, db, "client@test.com", "Client", domain.RoleClient)
	acct := testutil.SeedAccount(t, db, client.ID, "0.00")

	const attempts = 5
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Deposit(ctx, client.ID, domain.MustMoney("10.00"), nil)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		// losers of the version race are told to retry
		require.ErrorIs(t, err, domain.ErrConcurrentModification)
	}

	require.GreaterOrEqual(t, succeeded, 1)
	want := domain.NewMoneyFromMinorUnits(int64(succeeded) * 1000)
	assert.True(t, testutil.GetBalance(t, db, acct.ID).Equal(want))
	assert.Equal(t, succeeded, testutil.CountTransactions(t, db, acct.ID, domain.TransactionStatusApproved))
}

func TestPay_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	payer := testutil.SeedUser(t, db, "payer@test.com", "Payer", domain.RoleClient)
	merchant := testutil.SeedUser(t, db, "shop@test.com", "Coffee Shop", domain.RoleMerchant)
	payerAcct := testutil.SeedAccount(t, db, payer.ID, "100.00")
	merchantAcct := testutil.SeedAccount(t, db, merchant.ID, "0.00")

	desc := "flat white"
	result, err := svc.Pay(ctx, payer.ID, merchantAcct.ID, domain.MustMoney("40.00"), &desc)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusApproved, result.Status)
	assert.True(t, result.Amount.Equal(domain.MustMoney("40.00")))
	assert.Equal(t, "Coffee Shop", result.MerchantName)
	require.NotNil(t, result.Description)
	assert.Equal(t, "flat white", *result.Description)
	assert.False(t, result.CreatedAt.IsZero())

	payerBalance := testutil.GetBalance(t, db, payerAcct.ID)
	merchantBalance := testutil.GetBalance(t, db, merchantAcct.ID)
	assert.True(t, payerBalance.Equal(domain.MustMoney("60.00")))
	assert.True(t, merchantBalance.Equal(domain.MustMoney("40.00")))

	// total across both accounts is conserved
	assert.True(t, payerBalance.Add(merchantBalance).Equal(domain.MustMoney("100.00")))

	var status domain.TransactionStatus
	require.NoError(t, db.QueryRow(
		`SELECT status FROM transactions WHERE id = $1`, result.TransactionID,
	).Scan(&status))
	assert.Equal(t, domain.TransactionStatusApproved, status)
	assert.Equal(t, 0, testutil.CountTransactions(t, db, payerAcct.ID, domain.TransactionStatusPending))
}

func TestPay_InsufficientBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	payer := testutil.SeedUser(t, db, "payer@test.com", "Payer", domain.RoleClient)
	merchant := testutil.SeedUser(t, db, "shop@test.com", "Coffee Shop", domain.RoleMerchant)
	payerAcct := testutil.SeedAccount(t, db, payer.ID, "10.00")
	merchantAcct := testutil.SeedAccount(t, db, merchant.ID, "0.00")

	_, err := svc.Pay(ctx, payer.ID, merchantAcct.ID, domain.MustMoney("50.00"), nil)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.True(t, testutil.GetBalance(t, db, payerAcct.ID).Equal(domain.MustMoney("10.00")))
	assert.True(t, testutil.GetBalance(t, db, merchantAcct.ID).Equal(domain.MustMoney("0.00")))

	// the attempt failed before the record was created: nothing in the log
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestPay_NotMerchant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	payer := testutil.SeedUser(t, db, "payer@test.com", "Payer", domain.RoleClient)
	friend := testutil.SeedUser(t, db, "friend@test.com", "Friend", domain.RoleClient)
	testutil.SeedAccount(t, db, payer.ID, "100.00")
	friendAcct := testutil.SeedAccount(t, db, friend.ID, "0.00")

	_, err := svc.Pay(ctx, payer.ID, friendAcct.ID, domain.MustMoney("40.00"), nil)
	require.ErrorIs(t, err, domain.ErrNotMerchant)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestPay_MerchantAccountNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	payer := testutil.SeedUser(t, db, "payer@test.com", "Payer", domain.RoleClient)
	testutil.SeedAccount(t, db, payer.ID, "100.00")

	_, err := svc.Pay(ctx, payer.ID, uuid.New(), domain.MustMoney("40.00"), nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPay_InvalidAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	payer := testutil.SeedUser(t, db, "payer@test.com", "Payer", domain.RoleClient)
	merchant := testutil.SeedUser(t, db, "shop@test.com", "Coffee Shop", domain.RoleMerchant)
	testutil.SeedAccount(t, db, payer.ID, "100.00")
	merchantAcct := testutil.SeedAccount(t, db, merchant.ID, "0.00")

	_, err := svc.Pay(ctx, payer.ID, merchantAcct.ID, domain.MustMoney("0"), nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Pay(ctx, payer.ID, merchantAcct.ID, domain.MustMoney("-1.00"), nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestPay_ConcurrentOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	payer := testutil.SeedUser(t, db, "payer@test.com", "Payer", domain.RoleClient)
	merchant := testutil.SeedUser(t, db, "shop@test.com", "Coffee Shop", domain.RoleMerchant)
	payerAcct := testutil.SeedAccount(t, db, payer.ID, "100.00")
	merchantAcct := testutil.SeedAccount(t, db, merchant.ID, "0.00")

	var wg sync.WaitGroup
	results := make(chan error, 2)

	// two payments of 70.00 against a balance of 100.00: only one fits
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Pay(ctx, payer.ID, merchantAcct.ID, domain.MustMoney("70.00"), nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, failed int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrInsufficientBalance)
			failed++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	payerBalance := testutil.GetBalance(t, db, payerAcct.ID)
	assert.True(t, payerBalance.Equal(domain.MustMoney("30.00")))
	assert.False(t, payerBalance.IsNegative())
	assert.True(t, testutil.GetBalance(t, db, merchantAcct.ID).Equal(domain.MustMoney("70.00")))

	assert.Equal(t, 1, testutil.CountTransactions(t, db, payerAcct.ID, domain.TransactionStatusApproved))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, payerAcct.ID, domain.TransactionStatusPending))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, payerAcct.ID, domain.TransactionStatusFailed))
}

func TestPay_OppositeDirectionsDoNotBlock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice@test.com", "Alice", domain.RoleMerchant)
	bob := testutil.SeedUser(t, db, "bob@test.com", "Bob", domain.RoleMerchant)
	aliceAcct := testutil.SeedAccount(t, db, alice.ID, "50.00")
	bobAcct := testutil.SeedAccount(t, db, bob.ID, "50.00")

	var wg sync.WaitGroup
	results := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Pay(ctx, alice.ID, bobAcct.ID, domain.MustMoney("20.00"), nil)
		results <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.Pay(ctx, bob.ID, aliceAcct.ID, domain.MustMoney("30.00"), nil)
		results <- err
	}()
	wg.Wait()
	close(results)

	// each payment locks only its payer's row, so neither can deadlock
	// the other; a loser of the merchant-side version race surfaces as
	// a failed payment rather than a hang
	var failures []error
	for err := range results {
		if err != nil {
			require.ErrorIs(t, err, domain.ErrPaymentFailed)
			failures = append(failures, err)
		}
	}

	if len(failures) == 0 {
		assert.True(t, testutil.GetBalance(t, db, aliceAcct.ID).Equal(domain.MustMoney("60.00")))
		assert.True(t, testutil.GetBalance(t, db, bobAcct.ID).Equal(domain.MustMoney("40.00")))
	}

	total := testutil.GetBalance(t, db, aliceAcct.ID).Add(testutil.GetBalance(t, db, bobAcct.ID))
	assert.True(t, total.Equal(domain.MustMoney("100.00")))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, aliceAcct.ID, domain.TransactionStatusPending))
}

func TestPay_OwnAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db)
	ctx := context.Background()

	merchant := testutil.SeedUser(t, db, "shop@test.com", "Coffee Shop", domain.RoleMerchant)
	acct := testutil.SeedAccount(t, db, merchant.ID, "50.00")

	_, err := svc.Pay(ctx, merchant.ID, acct.ID, domain.MustMoney("10.00"), nil)
	require.ErrorIs(t, err, domain.ErrSelfPayment)

	assert.True(t, testutil.GetBalance(t, db, acct.ID).Equal(domain.MustMoney("50.00")))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	assert.Equal(t, 0, count)
}

// faultyAccountRepo passes balance writes through to the real
// repository except against one account id, where it reports a version
// conflict.
type faultyAccountRepo struct {
	*repository.AccountRepository
	failID uuid.UUID
	onFail func()
}

func (r *faultyAccountRepo) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance domain.Money, newVersion int64) error {
	if id == r.failID {
		if r.onFail != nil {
			r.onFail()
		}
		return fmt.Errorf("UpdateBalance: %w", domain.ErrConcurrentModification)
	}
	return r.AccountRepository.UpdateBalance(ctx, tx, id, balance, newVersion)
}

func TestPay_MerchantCreditConflictMarksRecordFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	payer := testutil.SeedUser(t, db, "payer@test.com", "Payer", domain.RoleClient)
	merchant := testutil.SeedUser(t, db, "shop@test.com", "Coffee Shop", domain.RoleMerchant)
	payerAcct := testutil.SeedAccount(t, db, payer.ID, "100.00")
	merchantAcct := testutil.SeedAccount(t, db, merchant.ID, "0.00")

	accounts := &faultyAccountRepo{
		AccountRepository: repository.NewAccountRepository(db),
		failID:            merchantAcct.ID,
	}
	svc := ledger.NewService(accounts, repository.NewTransactionRepository(db), repository.NewUserRepository(db), db)

	_, err := svc.Pay(ctx, payer.ID, merchantAcct.ID, domain.MustMoney("40.00"), nil)
	require.ErrorIs(t, err, domain.ErrPaymentFailed)
	require.ErrorIs(t, err, domain.ErrConcurrentModification)

	// the payer debit rolled back with the tx
	assert.True(t, testutil.GetBalance(t, db, payerAcct.ID).Equal(domain.MustMoney("100.00")))
	assert.True(t, testutil.GetBalance(t, db, merchantAcct.ID).Equal(domain.MustMoney("0.00")))

	// the record survives the rollback and is finalized, not stranded
	assert.Equal(t, 1, testutil.CountTransactions(t, db, payerAcct.ID, domain.TransactionStatusFailed))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, payerAcct.ID, domain.TransactionStatusPending))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, payerAcct.ID, domain.TransactionStatusApproved))
}

func TestPay_FailureMarkSurvivesCallerDisconnect(t *testing.T) {
	db := testutil.SetupTestDB(t)

	payer := testutil.SeedUser(t, db, "payer@test.com", "Payer", domain.RoleClient)
	merchant := testutil.SeedUser(t, db, "shop@test.com", "Coffee Shop", domain.RoleMerchant)
	payerAcct := testutil.SeedAccount(t, db, payer.ID, "100.00")
	merchantAcct := testutil.SeedAccount(t, db, merchant.ID, "0.00")

	// the caller disconnects at the same moment the credit fails
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	accounts := &faultyAccountRepo{
		AccountRepository: repository.NewAccountRepository(db),
		failID:            merchantAcct.ID,
		onFail:            cancel,
	}
	svc := ledger.NewService(accounts, repository.NewTransactionRepository(db), repository.NewUserRepository(db), db)

	_, err := svc.Pay(ctx, payer.ID, merchantAcct.ID, domain.MustMoney("40.00"), nil)
	require.ErrorIs(t, err, domain.ErrPaymentFailed)

	// the cancelled request context must not strand the record pending
	assert.Equal(t, 1, testutil.CountTransactions(t, db, payerAcct.ID, domain.TransactionStatusFailed))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, payerAcct.ID, domain.TransactionStatusPending))
	assert.True(t, testutil.GetBalance(t, db, payerAcct.ID).Equal(domain.MustMoney("100.00")))
}
