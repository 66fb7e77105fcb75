package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ayusman/phantomhand/internal/action"
)

// ErrDuplicateTrigger is returned when a binding for the trigger exists.
var ErrDuplicateTrigger = errors.New("trigger already bound")

// BindingRepository stores gesture-to-action bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, trigger_name, action_name, params, enabled`

type scanner interface {
	Scan(dest ...any) error
}

func scanBinding(row scanner) (action.Binding, error) {
	var b action.Binding
	var params string
	var enabled int

	if err := row.Scan(&b.ID, &b.Trigger, &b.Action, &params, &enabled); err != nil {
		return action.Binding{}, err
	}
	if err := json.Unmarshal([]byte(params), &b.Params); err != nil {
		return action.Binding{}, fmt.Errorf("binding %s params: %w", b.ID, err)
	}
	if len(b.Params) == 0 {
		b.Params = nil
	}
	b.Enabled = enabled != 0
	return b, nil
}

func encodeParams(params map[string]any) (string, error) {
	if params == nil {
		return "{}", nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(data), nil
}

// Create inserts b, assigning an id when empty.
func (r *BindingRepository) Create(b *action.Binding) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	params, err := encodeParams(b.Params)
	if err != nil {
		return err
	}

	if _, err := r.Get(b.ID); err == nil {
		return fmt.Errorf("binding %s already exists", b.ID)
	}
	if _, err := r.GetByTrigger(b.Trigger); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateTrigger, b.Trigger)
	}

	_, err = r.db.Exec(
		`INSERT INTO bindings (id, trigger_name, action_name, params, enabled) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Trigger, b.Action, params, b.Enabled,
	)
	if err != nil {
		return fmt.Errorf("insert binding: %w", err)
	}
	return nil
}

// Get returns the binding with id.
func (r *BindingRepository) Get(id string) (action.Binding, error) {
	b, err := scanBinding(r.db.QueryRow(`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return action.Binding{}, ErrNotFound
	}
	return b, err
}

// GetByTrigger returns the binding for a trigger.
func (r *BindingRepository) GetByTrigger(trigger string) (action.Binding, error) {
	b, err := scanBinding(r.db.QueryRow(`SELECT `+bindingColumns+` FROM bindings WHERE trigger_name = ?`, trigger))
	if errors.Is(err, sql.ErrNoRows) {
		return action.Binding{}, ErrNotFound
	}
	return b, err
}

// List returns all bindings ordered by trigger.
func (r *BindingRepository) List() ([]action.Binding, error) {
	rows, err := r.db.Query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY trigger_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []action.Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Update overwrites the binding with b.ID.
func (r *BindingRepository) Update(b *action.Binding) error {
	params, err := encodeParams(b.Params)
	if err != nil {
		return err
	}

	if existing, err := r.GetByTrigger(b.Trigger); err == nil && existing.ID != b.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateTrigger, b.Trigger)
	}

	res, err := r.db.Exec(
		`UPDATE bindings SET trigger_name = ?, action_name = ?, params = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		b.Trigger, b.Action, params, b.Enabled, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update binding: %w", err)
	}
	return requireRow(res)
}

// Put creates or replaces the binding for b.Trigger, keeping an existing
// id.
func (r *BindingRepository) Put(b *action.Binding) error {
	existing, err := r.GetByTrigger(b.Trigger)
	switch {
	case errors.Is(err, ErrNotFound):
		return r.Create(b)
	case err != nil:
		return err
	}
	b.ID = existing.ID
	return r.Update(b)
}

// Delete removes the binding with id.
func (r *BindingRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
