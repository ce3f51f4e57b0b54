package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/marketplace-server/internal/models"
)

const accountColumns = `id, name, credential, level, origin, created_at`

// CreateAccount inserts account and sets its ID. A duplicate name fails with
// models.ErrAccountExists.
func (r *SQLRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.CreatedAt == 0 {
		account.CreatedAt = r.now().Unix()
	}
	if account.Origin == "" {
		account.Origin = models.OriginLocal
	}

	return insertAccount(ctx, r.db, account)
}

func insertAccount(ctx context.Context, q dbtx, account *models.Account) error {
	query := q.Rebind(`
		INSERT INTO accounts (name, credential, level, origin, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := q.QueryRowxContext(ctx, query,
		account.Name, account.Credential, int64(account.Level), account.Origin, account.CreatedAt).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAccountExists
		}
		return models.StorageError("insert account", err)
	}

	return nil
}

// GetAccountByName returns nil, nil when no account has that name.
func (r *SQLRepository) GetAccountByName(ctx context.Context, name string) (*models.Account, error) {
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE name = ?`)

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Account not found
		}
		return nil, models.StorageError("get account by name", err)
	}

	return &account, nil
}

// GetAccountByID returns nil, nil when the account does not exist.
func (r *SQLRepository) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`)

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Account not found
		}
		return nil, models.StorageError("get account by id", err)
	}

	return &account, nil
}

// LinkExternalAccount returns the account named email, creating a member
// account with the external sentinel credential if there is none. Calling it
// again with the same email returns the same account.
func (r *SQLRepository) LinkExternalAccount(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE name = ?`)
		err := tx.GetContext(ctx, &account, query, email)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.StorageError("get account by name", err)
		}

		account = models.Account{
			Name:       email,
			Credential: models.ExternalCredential,
			Level:      models.LevelMember,
			Origin:     models.OriginExternal,
			CreatedAt:  r.now().Unix(),
		}
		return insertAccount(ctx, tx, &account)
	})
	if errors.Is(err, models.ErrAccountExists) {
		// Lost a race with a concurrent link of the same email.
		existing, getErr := r.GetAccountByName(ctx, email)
		if getErr != nil {
			return nil, getErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

// DeleteAccount removes the account. Purchases made by it are kept.
func (r *SQLRepository) DeleteAccount(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM accounts WHERE id = ?`), id)
	if err != nil {
		return models.StorageError("delete account", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.StorageError("delete account", err)
	}
	if n == 0 {
		return models.ErrAccountNotFound
	}

	return nil
}

func (r *SQLRepository) CountAccounts(ctx context.Context) (int64, error) {
	return r.count(ctx, "accounts")
}
