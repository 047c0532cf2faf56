package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Query filters the vacancies table. Zero values disable a filter.
type Query struct {
	Company string
	Vacancy string
	// Days keeps rows scraped within the last Days days.
	Days int
	// Latest keeps only the most recent persisted batch. Runs that found nothing write no
	// rows, so after such a run this still returns the previous batch; compare with the
	// scrape_date of the last run report to tell the two apart.
	Latest bool
	Limit  int
	Offset int
}

type Vacancy struct {
	Company    string    `json:"company"`
	Vacancy    string    `json:"vacancy"`
	ApplyLink  string    `json:"apply_link"`
	ScrapeDate time.Time `json:"scrape_date"`
}

// BatchSummary describes one persisted snapshot.
type BatchSummary struct {
	ScrapeDate time.Time `json:"scrape_date"`
	Records    int       `json:"records"`
}

// ListVacancies returns one page of matching rows, newest batch first, plus the total number
// of matching rows.
func (s *Store) ListVacancies(ctx context.Context, q Query) ([]Vacancy, int, error) {
	q.Limit = clampLimit(q.Limit, DefaultLimit, MaxLimit)
	if q.Offset < 0 {
		q.Offset = 0
	}

	where, args := q.where()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vacancies"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vacancies: %w", pqDetail(err))
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT company, vacancy, apply_link, scrape_date
FROM vacancies%s
ORDER BY scrape_date DESC, company, vacancy
LIMIT $%d OFFSET $%d
`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list vacancies: %w", pqDetail(err))
	}
	defer rows.Close()

	items := []Vacancy{}
	for rows.Next() {
		var v Vacancy
		if err := rows.Scan(&v.Company, &v.Vacancy, &v.ApplyLink, &v.ScrapeDate); err != nil {
			return nil, 0, err
		}
		v.ScrapeDate = v.ScrapeDate.UTC()
		items = append(items, v)
	}
	return items, total, rows.Err()
}

// ListBatches returns the most recent snapshots, newest first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	limit = clampLimit(limit, DefaultLimit, MaxLimit)

	rows, err := s.db.QueryContext(ctx, `
SELECT scrape_date, COUNT(*)
FROM vacancies
GROUP BY scrape_date
ORDER BY scrape_date DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", pqDetail(err))
	}
	defer rows.Close()

	out := []BatchSummary{}
	for rows.Next() {
		var b BatchSummary
		if err := rows.Scan(&b.ScrapeDate, &b.Records); err != nil {
			return nil, err
		}
		b.ScrapeDate = b.ScrapeDate.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q Query) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if c := strings.TrimSpace(q.Company); c != "" {
		add(`company ILIKE $%d ESCAPE '\'`, "%"+escapeLike(c)+"%")
	}
	if v := strings.TrimSpace(q.Vacancy); v != "" {
		add(`vacancy ILIKE $%d ESCAPE '\'`, "%"+escapeLike(v)+"%")
	}
	if q.Days > 0 {
		add("scrape_date >= NOW() - make_interval(days => $%d)", q.Days)
	}
	if q.Latest {
		conds = append(conds, "scrape_date = (SELECT MAX(scrape_date) FROM vacancies)")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
