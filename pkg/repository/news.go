package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/lawscope/pkg/domain"
)

// ErrDuplicateLink is returned by Insert when an item with the same link is stored already
var ErrDuplicateLink = errors.New("duplicate link")

// NewsRepository handles news-related database operations. Rows are insert-only.
type NewsRepository struct {
	db *sqlx.DB
}

// newsSQL represents a news item for SQL operations
type newsSQL struct {
	ID          int64        `db:"id"`
	Title       string       `db:"title"`
	Link        string       `db:"link"`
	Description string       `db:"description"`
	PubDate     *time.Time   `db:"pubdate"`
	Thumbnail   string       `db:"thumbnail"`
	Enclosure   enclosureSQL `db:"enclosure"`
	CreatedAt   time.Time    `db:"created_at"`
}

// enclosureSQL is a nullable JSON enclosure object
type enclosureSQL struct {
	enc *domain.Enclosure
}

// Value implements driver.Valuer for database storage
func (e enclosureSQL) Value() (driver.Value, error) {
	if e.enc == nil {
		return nil, nil
	}
	b, err := json.Marshal(e.enc)
	if err != nil {
		return nil, fmt.Errorf("marshal enclosure: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (e *enclosureSQL) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		e.enc = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unexpected enclosure type %T", value)
	}
	if len(data) == 0 {
		e.enc = nil
		return nil
	}
	var enc domain.Enclosure
	if err := json.Unmarshal(data, &enc); err != nil {
		return fmt.Errorf("unmarshal enclosure: %w", err)
	}
	e.enc = &enc
	return nil
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// List returns up to limit items, newest publication first. Undated items go last.
func (r *NewsRepository) List(ctx context.Context, limit int) ([]domain.NewsItem, error) {
	var rows []newsSQL
	query := `
		SELECT id, title, link, description, pubdate, thumbnail, enclosure, created_at
		FROM news
		ORDER BY pubdate IS NULL, pubdate DESC, id DESC
		LIMIT ?`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}

	res := make([]domain.NewsItem, 0, len(rows))
	for i := range rows {
		res = append(res, rows[i].toDomain())
	}
	return res, nil
}

// Exists checks whether an item with the link is stored
func (r *NewsRepository) Exists(ctx context.Context, link string) (bool, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, "SELECT id FROM news WHERE link = ? LIMIT 1", link)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check news exists: %w", err)
	}
	return true, nil
}

// Insert stores a new item and sets its ID. Lock errors are retried, a stored link fails with ErrDuplicateLink.
func (r *NewsRepository) Insert(ctx context.Context, item *domain.NewsItem) error {
	row := fromDomain(item)
	row.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO news (title, link, description, pubdate, thumbnail, enclosure, created_at)
		VALUES (:title, :link, :description, :pubdate, :thumbnail, :enclosure, :created_at)`

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		res, err := r.db.NamedExecContext(ctx, query, row)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return &criticalError{err: fmt.Errorf("insert news %s: %w", item.Link, ErrDuplicateLink)}
			}
			return &criticalError{err: fmt.Errorf("insert news: %w", err)}
		}
		id, err := res.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
		}
		item.ID = id
		item.CreatedAt = row.CreatedAt
		return nil
	}, errCritical)
}

// Count returns the number of stored items
func (r *NewsRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM news"); err != nil {
		return 0, fmt.Errorf("count news: %w", err)
	}
	return count, nil
}

func fromDomain(item *domain.NewsItem) newsSQL {
	row := newsSQL{
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Thumbnail:   item.Thumbnail,
		Enclosure:   enclosureSQL{enc: item.Enclosure},
	}
	if item.PubDate != nil {
		t := item.PubDate.UTC()
		row.PubDate = &t
	}
	return row
}

func (n *newsSQL) toDomain() domain.NewsItem {
	item := domain.NewsItem{
		ID:          n.ID,
		Title:       n.Title,
		Link:        n.Link,
		Description: n.Description,
		Thumbnail:   n.Thumbnail,
		Enclosure:   n.Enclosure.enc,
		CreatedAt:   n.CreatedAt.UTC(),
	}
	if n.PubDate != nil {
		t := n.PubDate.UTC()
		item.PubDate = &t
	}
	return item
}
