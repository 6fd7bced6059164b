package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"brunance/internal/core"
)

// ErrInvalidBackup is returned when an import payload is not a JSON array of
// transactions.
var ErrInvalidBackup = errors.New("invalid backup format")

// BackupFileName names an export taken at t.
func BackupFileName(t time.Time) string {
	return "brunance_backup_" + t.Format(time.DateOnly) + ".json"
}

// WriteBackup encodes txs as an indented JSON array.
func WriteBackup(w io.Writer, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(txs); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// ReadBackup decodes a JSON array of transactions. Amounts may be JSON
// numbers or strings.
func ReadBackup(r io.Reader) ([]core.Transaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrInvalidBackup
	}
	var txs []core.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return txs, nil
}
