package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Fixed-width UTC layout keeps lexicographic order equal to chronological
// order, which the lookback range queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Repository implements the deduplicating store adapter over database/sql.
// Every create is check-then-insert with an ON CONFLICT DO NOTHING suffix:
// the lookup gives the cheap early answer, the conflict clause makes the
// store's uniqueness constraint the final arbiter when two writers race.
type Repository struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.ContentStore = (*Repository)(nil)

// NewRepository wires a sql.DB; driver selects the placeholder dialect.
func NewRepository(db *sql.DB, driver string, logger *slog.Logger) *Repository {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres || driver == "" {
		placeholder = sq.Dollar
	}
	return &Repository{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger: logger,
		now:    time.Now,
	}
}

// CreateVideoIfAbsent persists the video unless one with the same id exists.
func (r *Repository) CreateVideoIfAbsent(ctx context.Context, video domain.VideoRecord) (bool, error) {
	exists, err := r.rowExists(ctx, r.sb.Select("1").From("youtube_videos").Where(sq.Eq{"video_id": video.VideoID}))
	if err != nil {
		return false, fmt.Errorf("lookup video %s: %w", video.VideoID, err)
	}
	if exists {
		return false, nil
	}

	createdAt := video.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	transcript := sql.NullString{}
	if video.Transcript.State == domain.TranscriptFetched {
		transcript = sql.NullString{String: video.Transcript.Text, Valid: true}
	}

	query := r.sb.Insert("youtube_videos").
		Columns("video_id", "title", "url", "channel_id", "published_at", "description", "transcript", "transcript_unavailable", "created_at").
		Values(
			video.VideoID,
			video.Title,
			video.URL,
			video.ChannelID,
			formatTime(video.PublishedAt),
			video.Description,
			transcript,
			video.Transcript.State == domain.TranscriptUnavailable,
			formatTime(createdAt),
		).
		Suffix("ON CONFLICT (video_id) DO NOTHING")

	return r.execInsert(ctx, query, "insert video "+video.VideoID)
}

// BulkCreateVideosIfAbsent checks and inserts each record individually, so a
// batch may mix new videos with ones already persisted by an earlier run.
// It returns the records that were actually inserted.
func (r *Repository) BulkCreateVideosIfAbsent(ctx context.Context, videos []domain.VideoRecord) ([]domain.VideoRecord, error) {
	inserted := make([]domain.VideoRecord, 0, len(videos))
	for _, video := range videos {
		created, err := r.CreateVideoIfAbsent(ctx, video)
		if err != nil {
			return inserted, err
		}
		if created {
			inserted = append(inserted, video)
		}
	}
	return inserted, nil
}

// CreateArticleIfAbsent persists the article unless its URL is already known.
func (r *Repository) CreateArticleIfAbsent(ctx context.Context, article domain.ArticleRecord) (bool, error) {
	exists, err := r.rowExists(ctx, r.sb.Select("1").From("news_articles").Where(sq.Eq{"url": article.URL}))
	if err != nil {
		return false, fmt.Errorf("lookup article %s: %w", article.URL, err)
	}
	if exists {
		return false, nil
	}

	createdAt := article.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	query := r.sb.Insert("news_articles").
		Columns("url", "title", "source", "published_at", "content", "created_at").
		Values(
			article.URL,
			article.Title,
			article.Source,
			formatTime(article.PublishedAt),
			article.Content,
			formatTime(createdAt),
		).
		Suffix("ON CONFLICT (url) DO NOTHING")

	return r.execInsert(ctx, query, "insert article "+article.URL)
}

// BulkCreateArticlesIfAbsent mirrors BulkCreateVideosIfAbsent for articles.
func (r *Repository) BulkCreateArticlesIfAbsent(ctx context.Context, articles []domain.ArticleRecord) ([]domain.ArticleRecord, error) {
	inserted := make([]domain.ArticleRecord, 0, len(articles))
	for _, article := range articles {
		created, err := r.CreateArticleIfAbsent(ctx, article)
		if err != nil {
			return inserted, err
		}
		if created {
			inserted = append(inserted, article)
		}
	}
	return inserted, nil
}

// HasDigest reports whether a digest exists under the composite key.
func (r *Repository) HasDigest(ctx context.Context, key domain.DigestKey) (bool, error) {
	exists, err := r.rowExists(ctx, r.sb.Select("1").From("digests").
		Where(sq.Eq{"content_kind": string(key.Kind), "content_id": key.ID}))
	if err != nil {
		return false, fmt.Errorf("lookup digest %s: %w", key, err)
	}
	return exists, nil
}

// CreateDigestIfAbsent writes the digest unless its key is taken. A conflict
// means another writer got there first and is reported as created=false.
func (r *Repository) CreateDigestIfAbsent(ctx context.Context, digest domain.DigestRecord) (bool, error) {
	exists, err := r.HasDigest(ctx, digest.Key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	createdAt := digest.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	query := r.sb.Insert("digests").
		Columns("content_kind", "content_id", "url", "title", "summary", "effective_at", "created_at").
		Values(
			string(digest.Key.Kind),
			digest.Key.ID,
			digest.URL,
			digest.Title,
			digest.Summary,
			formatTime(digest.EffectiveAt),
			formatTime(createdAt),
		).
		Suffix("ON CONFLICT (content_kind, content_id) DO NOTHING")

	return r.execInsert(ctx, query, "insert digest "+digest.Key.String())
}

// PendingDigests anti-joins eligible content against existing digest keys.
func (r *Repository) PendingDigests(ctx context.Context, kind domain.ContentKind, limit int) ([]domain.PendingItem, error) {
	switch kind {
	case domain.KindVideo:
		return r.pendingVideos(ctx, limit)
	case domain.KindArticle:
		return r.pendingArticles(ctx, limit)
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
}

func (r *Repository) pendingVideos(ctx context.Context, limit int) ([]domain.PendingItem, error) {
	query := r.sb.Select("v.video_id", "v.title", "v.url", "v.transcript", "v.description", "v.published_at").
		From("youtube_videos v").
		LeftJoin("digests d ON d.content_kind = ? AND d.content_id = v.video_id", string(domain.KindVideo)).
		Where("d.content_id IS NULL").
		Where("v.transcript IS NOT NULL").
		Where(sq.Eq{"v.transcript_unavailable": false}).
		OrderBy("v.published_at")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := r.queryRows(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pending videos: %w", err)
	}
	defer rows.Close()

	var items []domain.PendingItem
	for rows.Next() {
		var (
			item        domain.PendingItem
			transcript  sql.NullString
			description string
			publishedAt string
		)
		if err := rows.Scan(&item.Key.ID, &item.Title, &item.URL, &transcript, &description, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan pending video: %w", err)
		}
		item.Key.Kind = domain.KindVideo
		item.Content = transcript.String
		if item.Content == "" {
			item.Content = description
		}
		item.PublishedAt = parseTime(publishedAt)
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *Repository) pendingArticles(ctx context.Context, limit int) ([]domain.PendingItem, error) {
	query := r.sb.Select("a.url", "a.title", "a.content", "a.published_at").
		From("news_articles a").
		LeftJoin("digests d ON d.content_kind = ? AND d.content_id = a.url", string(domain.KindArticle)).
		Where("d.content_id IS NULL").
		Where("a.content <> ''").
		OrderBy("a.published_at")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := r.queryRows(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pending articles: %w", err)
	}
	defer rows.Close()

	var items []domain.PendingItem
	for rows.Next() {
		var (
			item        domain.PendingItem
			publishedAt string
		)
		if err := rows.Scan(&item.Key.ID, &item.Title, &item.Content, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan pending article: %w", err)
		}
		item.Key.Kind = domain.KindArticle
		item.URL = item.Key.ID
		item.PublishedAt = parseTime(publishedAt)
		items = append(items, item)
	}

	return items, rows.Err()
}

// LatestContent returns records ingested within the lookback window.
func (r *Repository) LatestContent(ctx context.Context, lookback time.Duration) ([]domain.VideoRecord, []domain.ArticleRecord, error) {
	cutoff := formatTime(r.now().Add(-lookback))

	videoRows, err := r.queryRows(ctx, r.sb.
		Select("video_id", "title", "url", "channel_id", "published_at", "description", "transcript", "transcript_unavailable", "created_at").
		From("youtube_videos").
		Where(sq.GtOrEq{"created_at": cutoff}).
		OrderBy("created_at"))
	if err != nil {
		return nil, nil, fmt.Errorf("latest videos: %w", err)
	}
	defer videoRows.Close()

	var videos []domain.VideoRecord
	for videoRows.Next() {
		video, err := scanVideo(videoRows)
		if err != nil {
			return nil, nil, err
		}
		videos = append(videos, video)
	}
	if err := videoRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("latest videos: %w", err)
	}

	articleRows, err := r.queryRows(ctx, r.sb.
		Select("url", "title", "source", "published_at", "content", "created_at").
		From("news_articles").
		Where(sq.GtOrEq{"created_at": cutoff}).
		OrderBy("created_at"))
	if err != nil {
		return nil, nil, fmt.Errorf("latest articles: %w", err)
	}
	defer articleRows.Close()

	var articles []domain.ArticleRecord
	for articleRows.Next() {
		article, err := scanArticle(articleRows)
		if err != nil {
			return nil, nil, err
		}
		articles = append(articles, article)
	}

	return videos, articles, articleRows.Err()
}

func scanVideo(rows *sql.Rows) (domain.VideoRecord, error) {
	var (
		video       domain.VideoRecord
		publishedAt string
		createdAt   string
		transcript  sql.NullString
		unavailable bool
	)
	if err := rows.Scan(&video.VideoID, &video.Title, &video.URL, &video.ChannelID, &publishedAt, &video.Description, &transcript, &unavailable, &createdAt); err != nil {
		return domain.VideoRecord{}, fmt.Errorf("scan video: %w", err)
	}
	video.PublishedAt = parseTime(publishedAt)
	video.CreatedAt = parseTime(createdAt)
	switch {
	case unavailable:
		video.Transcript = domain.UnavailableTranscript()
	case transcript.Valid:
		video.Transcript = domain.FetchedTranscript(transcript.String)
	}
	return video, nil
}

func scanArticle(rows *sql.Rows) (domain.ArticleRecord, error) {
	var (
		article     domain.ArticleRecord
		publishedAt string
		createdAt   string
	)
	if err := rows.Scan(&article.URL, &article.Title, &article.Source, &publishedAt, &article.Content, &createdAt); err != nil {
		return domain.ArticleRecord{}, fmt.Errorf("scan article: %w", err)
	}
	article.PublishedAt = parseTime(publishedAt)
	article.CreatedAt = parseTime(createdAt)
	return article, nil
}

func (r *Repository) rowExists(ctx context.Context, query sq.SelectBuilder) (bool, error) {
	sqlStr, args, err := query.Limit(1).ToSql()
	if err != nil {
		return false, err
	}

	var one int
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) execInsert(ctx context.Context, query sq.InsertBuilder, label string) (bool, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: %w", label, err)
	}

	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", label, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", label, err)
	}
	if affected == 0 {
		// Conflict: a concurrent writer created the row between our lookup
		// and this insert. Equivalent to "already exists".
		r.logger.Debug("insert lost race, record already exists", "op", label)
		return false, nil
	}
	return true, nil
}

func (r *Repository) queryRows(ctx context.Context, query sq.SelectBuilder) (*sql.Rows, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	return r.db.QueryContext(ctx, sqlStr, args...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
