// Package notestore implements collab.NoteStore against PostgreSQL, with an
// in-memory variant for tests. Notes are encrypted at rest with
// note.Cipher; only the wallet, commitment, leaf index, spent flag, chain id,
// creation time, block number, and compliance status are stored in
// plaintext.
package notestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/note"
)

// Errors returned by PostgresNoteStore.
var (
	ErrNotFound     = errors.New("notestore: not found")
	ErrDBConnection = errors.New("notestore: database connection error")
)

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns sane local-development defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "duststealth",
		Password: "",
		Database: "duststealth",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// PostgresNoteStore persists a wallet's notes with their sensitive fields
// sealed under cipher.
type PostgresNoteStore struct {
	pool   *pgxpool.Pool
	cipher *note.Cipher
}

// NewPostgresNoteStore dials cfg and pings the connection before returning.
func NewPostgresNoteStore(ctx context.Context, cfg *Config, cipher *note.Cipher) (*PostgresNoteStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	return &PostgresNoteStore{pool: pool, cipher: cipher}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresNoteStore) Close() {
	s.pool.Close()
}

// SavePending inserts n as a new note owned by wallet, encrypting its
// sensitive fields with the store's cipher.
func (s *PostgresNoteStore) SavePending(ctx context.Context, wallet string, n note.NoteCommitment) error {
	ciphertext, iv, err := s.cipher.Encrypt(n.Note)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notes (
			commitment, wallet, chain_id, ciphertext, iv, leaf_index,
			spent, created_at, block_number, compliance_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (commitment) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query,
		field.ToBytes32Hex(n.Commitment),
		wallet,
		n.Note.ChainID.String(),
		ciphertext,
		iv,
		n.LeafIndex,
		n.Spent,
		n.CreatedAt,
		n.BlockNumber,
		uint8(n.ComplianceStatus),
	)
	if err != nil {
		return fmt.Errorf("notestore: save pending: %w", err)
	}
	return nil
}

// MarkSpentAndSaveOutputs atomically flips inputID's spent flag and inserts
// every output note, all within a single transaction: either both sides
// land, or neither does.
func (s *PostgresNoteStore) MarkSpentAndSaveOutputs(ctx context.Context, wallet string, inputID string, outputs []note.NoteCommitment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("notestore: begin spend tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE notes SET spent = TRUE WHERE commitment = $1 AND wallet = $2`, inputID, wallet)
	if err != nil {
		return fmt.Errorf("notestore: mark spent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	for _, o := range outputs {
		ciphertext, iv, err := s.cipher.Encrypt(o.Note)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO notes (
				commitment, wallet, chain_id, ciphertext, iv, leaf_index,
				spent, created_at, block_number, compliance_status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (commitment) DO NOTHING
		`,
			field.ToBytes32Hex(o.Commitment),
			wallet,
			o.Note.ChainID.String(),
			ciphertext,
			iv,
			o.LeafIndex,
			o.Spent,
			o.CreatedAt,
			o.BlockNumber,
			uint8(o.ComplianceStatus),
		)
		if err != nil {
			return fmt.Errorf("notestore: save output: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// UnspentNotes returns every unspent note wallet owns on chainID, decrypted.
func (s *PostgresNoteStore) UnspentNotes(ctx context.Context, wallet string, chainID uint64) ([]note.NoteCommitment, error) {
	query := `
		SELECT commitment, ciphertext, iv, leaf_index, spent, created_at,
		       block_number, compliance_status
		FROM notes
		WHERE wallet = $1 AND chain_id = $2 AND spent = FALSE
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, wallet, fmt.Sprintf("%d", chainID))
	if err != nil {
		return nil, fmt.Errorf("notestore: query unspent: %w", err)
	}
	defer rows.Close()

	var out []note.NoteCommitment
	for rows.Next() {
		var commitmentHex string
		var ciphertext, iv []byte
		var nc note.NoteCommitment
		var status uint8

		if err := rows.Scan(&commitmentHex, &ciphertext, &iv, &nc.LeafIndex, &nc.Spent, &nc.CreatedAt, &nc.BlockNumber, &status); err != nil {
			return nil, fmt.Errorf("notestore: scan unspent row: %w", err)
		}

		owner, amount, asset, blinding, err := s.cipher.Decrypt(ciphertext, iv)
		if err != nil {
			return nil, err
		}
		commitment, err := field.StrictFromHex(commitmentHex)
		if err != nil {
			return nil, err
		}

		nc.Commitment = commitment
		nc.Note = note.Note{Owner: owner, Amount: amount, Asset: asset, ChainID: field.FromUint64(chainID), Blinding: blinding}
		nc.ComplianceStatus = note.ComplianceStatus(status)
		out = append(out, nc)
	}
	return out, rows.Err()
}

// UpdateLeafIndex sets the confirmed tree position for a previously pending
// note.
func (s *PostgresNoteStore) UpdateLeafIndex(ctx context.Context, id string, leafIndex int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notes SET leaf_index = $1 WHERE commitment = $2`, leafIndex, id)
	if err != nil {
		return fmt.Errorf("notestore: update leaf index: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every note belonging to wallet, used by wallet reset and
// test teardown.
func (s *PostgresNoteStore) DeleteAll(ctx context.Context, wallet string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE wallet = $1`, wallet)
	if err != nil {
		return fmt.Errorf("notestore: delete all: %w", err)
	}
	return nil
}
