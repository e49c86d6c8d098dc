package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "toptw/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, fmt.Errorf("open postgres: %w", err)
    }
    if err := db.Ping(); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ping postgres: %w", err)
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// MigrateDir applies every *.sql file in dir in lexical order. Scripts must be idempotent.
func (p *Postgres) MigrateDir(dir string) error {
    files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
    if err != nil { return fmt.Errorf("migrate: %w", err) }
    sort.Strings(files)
    for _, f := range files {
        body, err := os.ReadFile(f)
        if err != nil { return fmt.Errorf("migrate %s: %w", f, err) }
        if _, err := p.db.Exec(string(body)); err != nil {
            return fmt.Errorf("migrate %s: %w", f, err)
        }
    }
    return nil
}

const runColumns = `id::text, COALESCE(instance,''), status, policy, rcl_size, alpha, seed, iterations, solution, metrics, COALESCE(error,''), created_at, finished_at`

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.CreatedAt.IsZero() { run.CreatedAt = time.Now().UTC() }
    sol, met, err := runDocs(run)
    if err != nil { return model.Run{}, err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, instance, status, policy, rcl_size, alpha, seed, iterations, solution, metrics, error, created_at, finished_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
        run.ID, nullIfEmpty(run.Instance), run.Status, run.Policy, run.RCLSize, run.Alpha, run.Seed, run.Iterations, sol, met, nullIfEmpty(run.Error), run.CreatedAt, run.FinishedAt)
    if err != nil { return model.Run{}, fmt.Errorf("create run: %w", err) }
    return run, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
    sol, met, err := runDocs(run)
    if err != nil { return err }
    res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, solution=$3, metrics=$4, error=$5, finished_at=$6 WHERE id=$1`,
        run.ID, run.Status, sol, met, nullIfEmpty(run.Error), run.FinishedAt)
    if err != nil { return fmt.Errorf("update run %s: %w", run.ID, err) }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
    if _, err := uuid.Parse(id); err != nil { return model.Run{}, ErrNotFound }
    row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id)
    r, err := scanRun(row)
    if errors.Is(err, sql.ErrNoRows) { return model.Run{}, ErrNotFound }
    return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
    if limit <= 0 { limit = defaultListLimit }
    q := `SELECT ` + runColumns + ` FROM runs`
    args := []any{}
    if cursor != "" {
        if _, err := uuid.Parse(cursor); err != nil { return nil, "", ErrInvalidCursor }
        var exists bool
        if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM runs WHERE id=$1)`, cursor).Scan(&exists); err != nil {
            return nil, "", fmt.Errorf("list runs: %w", err)
        }
        if !exists { return nil, "", ErrInvalidCursor }
        q += ` WHERE (created_at, id) < (SELECT created_at, id FROM runs WHERE id=$1)`
        args = append(args, cursor)
    }
    q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit+1)
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", fmt.Errorf("list runs: %w", err) }
    defer rows.Close()
    out := []model.Run{}
    for rows.Next() {
        r, err := scanRun(rows)
        if err != nil { return nil, "", err }
        out = append(out, r)
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) > limit {
        out = out[:limit]
        next = out[limit-1].ID
    }
    return out, next, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(s rowScanner) (model.Run, error) {
    var r model.Run
    var sol, met []byte
    var finished sql.NullTime
    if err := s.Scan(&r.ID, &r.Instance, &r.Status, &r.Policy, &r.RCLSize, &r.Alpha, &r.Seed, &r.Iterations, &sol, &met, &r.Error, &r.CreatedAt, &finished); err != nil {
        return model.Run{}, err
    }
    if len(sol) > 0 {
        r.Solution = &model.SolutionOut{}
        if err := json.Unmarshal(sol, r.Solution); err != nil { return model.Run{}, fmt.Errorf("decode solution of run %s: %w", r.ID, err) }
    }
    if len(met) > 0 {
        r.Metrics = &model.MetricsOut{}
        if err := json.Unmarshal(met, r.Metrics); err != nil { return model.Run{}, fmt.Errorf("decode metrics of run %s: %w", r.ID, err) }
    }
    if finished.Valid {
        t := finished.Time
        r.FinishedAt = &t
    }
    return r, nil
}

func runDocs(run model.Run) (sol, met any, err error) {
    if run.Solution != nil {
        b, err := json.Marshal(run.Solution)
        if err != nil { return nil, nil, fmt.Errorf("encode solution: %w", err) }
        sol = b
    }
    if run.Metrics != nil {
        b, err := json.Marshal(run.Metrics)
        if err != nil { return nil, nil, fmt.Errorf("encode metrics: %w", err) }
        met = b
    }
    return sol, met, nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, run_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())
        ON CONFLICT (run_id, event_type, url) DO NOTHING`, id, runID, eventType, url, nullIfEmpty(secret), payload)
    if err != nil { return "", fmt.Errorf("enqueue webhook: %w", err) }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, run_id::text, event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0)
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    return scanDeliveries(rows)
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`, id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, runID string) ([]WebhookDelivery, error) {
    q := `SELECT id::text, run_id::text, event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0) FROM webhook_deliveries`
    args := []any{}
    if runID != "" {
        if _, err := uuid.Parse(runID); err != nil { return []WebhookDelivery{}, nil }
        q += ` WHERE run_id=$1`
        args = append(args, runID)
    }
    rows, err := p.db.QueryContext(ctx, q+` ORDER BY created_at ASC`, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    return scanDeliveries(rows)
}

func scanDeliveries(rows *sql.Rows) ([]WebhookDelivery, error) {
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.RunID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts, &d.NextAttemptAt, &d.LastError, &d.ResponseCode); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
