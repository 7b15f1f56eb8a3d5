package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SentinelRank parks a task while its rank is being exchanged.
// Real ranks start at MinRank, so the sentinel never collides with one.
const (
	SentinelRank int64 = -1
	MinRank      int64 = 1
)

const (
	FieldName = "name"
	FieldRank = "rank"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ConflictError reports a unique constraint violation on name or rank.
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already in use", e.Field)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// IsRankConflict reports whether err is a conflict on the rank column.
func IsRankConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Field == FieldRank
}

// ---- Data types ----
type Task struct {
	ID      int64   `json:"id"`
	Name    string  `json:"nome"`
	Cost    float64 `json:"custo"`
	DueDate string  `json:"dataLimite"`
	Rank    int64   `json:"ordem"`
}

// Queries is the task operation set, shared by Store and Tx.
type Queries interface {
	Create(ctx context.Context, name string, cost float64, dueDate string, rank int64) (Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	List(ctx context.Context) ([]Task, error)
	Update(ctx context.Context, id int64, name string, cost float64, dueDate string) (Task, error)
	Delete(ctx context.Context, id int64) error
	SetRank(ctx context.Context, id int64, rank int64) error
	MaxRank(ctx context.Context) (int64, bool, error)
	NeighborAbove(ctx context.Context, rank int64) (Task, bool, error)
	NeighborBelow(ctx context.Context, rank int64) (Task, bool, error)
	ListParked(ctx context.Context) ([]Task, error)
	RecordSwap(ctx context.Context, sw Swap) error
	ClearSwap(ctx context.Context, taskID int64) error
	ListSwaps(ctx context.Context) ([]Swap, error)
}

// Swap is the journal entry of a rank exchange in progress: TaskID moves
// from FromRank to ToRank while NeighborID moves the other way.
type Swap struct {
	TaskID     int64
	FromRank   int64
	NeighborID int64
	ToRank     int64
}

var (
	_ Queries = (*Store)(nil)
	_ Queries = (*Tx)(nil)
)

type ops struct {
	q querier
	d dialect
}

const taskColumns = `id, nome, custo, data_limite, ordem`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (Task, error) {
	var t Task
	err := sc.Scan(&t.ID, &t.Name, &t.Cost, &t.DueDate, &t.Rank)
	return t, err
}

// translate maps driver unique violations onto ConflictError.
func (o ops) translate(err error) error {
	if err == nil {
		return nil
	}
	if f := o.d.uniqueField(err); f != "" {
		return &ConflictError{Field: f, Err: err}
	}
	return err
}

func (o ops) Create(ctx context.Context, name string, cost float64, dueDate string, rank int64) (Task, error) {
	res, err := o.q.ExecContext(ctx, `INSERT INTO tarefas (nome, custo, data_limite, ordem) VALUES (?, ?, ?, ?)`,
		name, cost, dueDate, rank)
	if err != nil {
		return Task{}, o.translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, err
	}
	return Task{ID: id, Name: name, Cost: cost, DueDate: dueDate, Rank: rank}, nil
}

func (o ops) Get(ctx context.Context, id int64) (Task, error) {
	row := o.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tarefas WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, err
}

func (o ops) List(ctx context.Context) ([]Task, error) {
	return o.query(ctx, `SELECT `+taskColumns+` FROM tarefas ORDER BY ordem ASC`)
}

// ListParked returns tasks left below MinRank by an interrupted move.
func (o ops) ListParked(ctx context.Context) ([]Task, error) {
	return o.query(ctx, `SELECT `+taskColumns+` FROM tarefas WHERE ordem < ? ORDER BY id ASC`, MinRank)
}

func (o ops) query(ctx context.Context, q string, args ...any) ([]Task, error) {
	rows, err := o.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (o ops) Update(ctx context.Context, id int64, name string, cost float64, dueDate string) (Task, error) {
	res, err := o.q.ExecContext(ctx, `UPDATE tarefas SET nome = ?, custo = ?, data_limite = ? WHERE id = ?`,
		name, cost, dueDate, id)
	if err != nil {
		return Task{}, o.translate(err)
	}
	if err := requireRow(res, id); err != nil {
		return Task{}, err
	}
	return o.Get(ctx, id)
}

func (o ops) Delete(ctx context.Context, id int64) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM tarefas WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// SetRank updates only the rank of one record.
func (o ops) SetRank(ctx context.Context, id int64, rank int64) error {
	res, err := o.q.ExecContext(ctx, `UPDATE tarefas SET ordem = ? WHERE id = ?`, rank, id)
	if err != nil {
		return o.translate(err)
	}
	return requireRow(res, id)
}

// MaxRank returns the greatest real rank; ok is false on an empty table.
func (o ops) MaxRank(ctx context.Context) (int64, bool, error) {
	var top sql.NullInt64
	if err := o.q.QueryRowContext(ctx, `SELECT MAX(ordem) FROM tarefas WHERE ordem >= ?`, MinRank).Scan(&top); err != nil {
		return 0, false, err
	}
	return top.Int64, top.Valid, nil
}

// NeighborAbove returns the task with the greatest rank strictly less than rank.
func (o ops) NeighborAbove(ctx context.Context, rank int64) (Task, bool, error) {
	return o.one(ctx, `SELECT `+taskColumns+` FROM tarefas WHERE ordem < ? AND ordem >= ? ORDER BY ordem DESC LIMIT 1`, rank, MinRank)
}

// NeighborBelow returns the task with the least rank strictly greater than rank.
func (o ops) NeighborBelow(ctx context.Context, rank int64) (Task, bool, error) {
	return o.one(ctx, `SELECT `+taskColumns+` FROM tarefas WHERE ordem > ? AND ordem >= ? ORDER BY ordem ASC LIMIT 1`, rank, MinRank)
}

func (o ops) one(ctx context.Context, q string, args ...any) (Task, bool, error) {
	t, err := scanTask(o.q.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, err
	}
	return t, true, nil
}

// RecordSwap journals an exchange before its first rank write.
func (o ops) RecordSwap(ctx context.Context, sw Swap) error {
	_, err := o.q.ExecContext(ctx, `REPLACE INTO trocas (tarefa_id, ordem_origem, vizinho_id, ordem_destino) VALUES (?, ?, ?, ?)`,
		sw.TaskID, sw.FromRank, sw.NeighborID, sw.ToRank)
	return err
}

func (o ops) ClearSwap(ctx context.Context, taskID int64) error {
	_, err := o.q.ExecContext(ctx, `DELETE FROM trocas WHERE tarefa_id = ?`, taskID)
	return err
}

func (o ops) ListSwaps(ctx context.Context) ([]Swap, error) {
	rows, err := o.q.QueryContext(ctx, `SELECT tarefa_id, ordem_origem, vizinho_id, ordem_destino FROM trocas ORDER BY tarefa_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Swap
	for rows.Next() {
		var sw Swap
		if err := rows.Scan(&sw.TaskID, &sw.FromRank, &sw.NeighborID, &sw.ToRank); err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}
