package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/repository"
	"github.com/gatewaylabs/payment-gateway/internal/service"
	"github.com/gatewaylabs/payment-gateway/internal/testutil"
)

func setupQuery(t *testing.T, db *sql.DB) *service.QueryService {
	t.Helper()
	return service.NewQueryService(
		repository.NewAccountRepository(db),
		repository.NewUserRepository(db),
		repository.NewTransactionRepository(db),
	)
}

func seedTransaction(t *testing.T, db *sql.DB, payerAcct, merchantAcct uuid.UUID, amount string, status domain.TransactionStatus, createdAt time.Time) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO transactions (id, payer_account_id, merchant_account_id, amount, status, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, payerAcct, merchantAcct, domain.MustMoney(amount), status, nil, createdAt,
	)
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return id
}

func TestGetBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupQuery(t, db)
	ctx := context.Background()

	client := testutil.SeedUser(t, db, "client@test.com", "Ama Mensah", domain.RoleClient)
	testutil.SeedAccount(t, db, client.ID, "123.45")

	view, err := svc.GetBalance(ctx, client.ID)
	require.NoError(t, err)

	assert.True(t, view.Balance.Equal(domain.MustMoney("123.45")))
	assert.Equal(t, "Ama Mensah", view.HolderName)
}

func TestGetBalance_RepeatedReadsAreStable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupQuery(t, db)
	ctx := context.Background()

	client := testutil.SeedUser(t, db, "client@test.com", "Client", domain.RoleClient)
	testutil.SeedAccount(t, db, client.ID, "77.00")

	first, err := svc.GetBalance(ctx, client.ID)
	require.NoError(t, err)
	second, err := svc.GetBalance(ctx, client.ID)
	require.NoError(t, err)

	assert.True(t, first.Balance.Equal(second.Balance))
}

func TestGetBalance_UnknownOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupQuery(t, db)

	_, err := svc.GetBalance(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetHistory_OrderingAndNames(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupQuery(t, db)
	ctx := context.Background()

	client := testutil.SeedUser(t, db, "client@test.com", "Kofi Boateng", domain.RoleClient)
	merchant := testutil.SeedUser(t, db, "shop@test.com", "Corner Store", domain.RoleMerchant)
	clientAcct := testutil.SeedAccount(t, db, client.ID, "0.00")
	merchantAcct := testutil.SeedAccount(t, db, merchant.ID, "0.00")

	base := time.Now().UTC().Add(-time.Hour)
	oldest := seedTransaction(t, db, clientAcct.ID, clientAcct.ID, "50.00", domain.TransactionStatusApproved, base)
	middle := seedTransaction(t, db, clientAcct.ID, merchantAcct.ID, "20.00", domain.TransactionStatusApproved, base.Add(time.Minute))
	newest := seedTransaction(t, db, clientAcct.ID, merchantAcct.ID, "5.00", domain.TransactionStatusFailed, base.Add(2*time.Minute))

	history, err := svc.GetHistory(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// most recent first
	assert.Equal(t, newest, history[0].ID)
	assert.Equal(t, middle, history[1].ID)
	assert.Equal(t, oldest, history[2].ID)

	assert.Equal(t, domain.TransactionStatusFailed, history[0].Status)
	assert.Equal(t, "Kofi Boateng", history[1].PayerName)
	assert.Equal(t, "Corner Store", history[1].MerchantName)
	assert.True(t, history[1].Amount.Equal(domain.MustMoney("20.00")))

	// a deposit names the holder on both sides
	assert.Equal(t, "Kofi Boateng", history[2].PayerName)
	assert.Equal(t, "Kofi Boateng", history[2].MerchantName)
}

func TestGetHistory_IncludesReceivedPayments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupQuery(t, db)
	ctx := context.Background()

	client := testutil.SeedUser(t, db, "client@test.com", "Client", domain.RoleClient)
	merchant := testutil.SeedUser(t, db, "shop@test.com", "Corner Store", domain.RoleMerchant)
	clientAcct := testutil.SeedAccount(t, db, client.ID, "0.00")
	merchantAcct := testutil.SeedAccount(t, db, merchant.ID, "0.00")

	seedTransaction(t, db, clientAcct.ID, merchantAcct.ID, "15.00", domain.TransactionStatusApproved, time.Now().UTC())

	history, err := svc.GetHistory(ctx, merchant.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Corner Store", history[0].MerchantName)
}

func TestGetHistory_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupQuery(t, db)

	client := testutil.SeedUser(t, db, "client@test.com", "Client", domain.RoleClient)
	testutil.SeedAccount(t, db, client.ID, "0.00")

	history, err := svc.GetHistory(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}
