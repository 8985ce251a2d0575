// Package postgres implements store.Store on a hosted Postgres database
// (for example a Supabase project) through gorm.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/store"
)

type profileRow struct {
	ID                 string `gorm:"primaryKey"`
	ToneGuide          string
	Topics             datatypes.JSON
	APIKey             string
	OnboardingComplete bool
	UpdatedAt          time.Time
}

func (profileRow) TableName() string { return "profiles" }

type journalRow struct {
	OwnerID        string `gorm:"primaryKey"`
	Date           string `gorm:"primaryKey"`
	EntryText      string
	GeneratedIdeas datatypes.JSON
	SavedIndices   datatypes.JSON
	UpdatedAt      time.Time
}

func (journalRow) TableName() string { return "journal_entries" }

type ideaRow struct {
	ID            string `gorm:"primaryKey"`
	OwnerID       string `gorm:"index:idx_ideas_owner"`
	Title         string
	Body          string
	ImageIdea     string
	ContentType   string
	Status        string
	StatusColor   string
	Source        string
	TrendSource   string
	FromDate      string
	ScheduledDate *string
	CreatedAt     time.Time
}

func (ideaRow) TableName() string { return "ideas" }

type postRow struct {
	ID      string `gorm:"primaryKey"`
	OwnerID string `gorm:"index:idx_calendar_owner_date"`
	IdeaID  string `gorm:"index:idx_calendar_idea"`
	Date    string `gorm:"index:idx_calendar_owner_date"`
	Label   string
	Type    string
	Posted  bool
}

func (postRow) TableName() string { return "calendar_posts" }

// DB is a gorm-backed store.Store.
type DB struct {
	gorm *gorm.DB
	now  func() time.Time
}

var _ store.Store = (*DB)(nil)

// Open connects to dsn and migrates the tables.
func Open(dsn string) (*DB, error) {
	gormLogger := logger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.AutoMigrate(&profileRow{}, &journalRow{}, &ideaRow{}, &postRow{}); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &DB{gorm: db, now: time.Now}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) stamp() time.Time {
	return db.now().UTC()
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, apperr.ErrNotFound)
	}
	return fmt.Errorf("postgres: get %s: %w", what, err)
}

// GetJournalEntry returns the entry for (owner, date).
func (db *DB) GetJournalEntry(ctx context.Context, owner, date string) (*models.JournalEntry, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	var row journalRow
	if err := db.gorm.WithContext(ctx).Where("owner_id = ? AND date = ?", owner, date).First(&row).Error; err != nil {
		return nil, notFound(err, "journal entry", date)
	}
	return row.model()
}

// UpsertJournalEntry creates the entry on first write and applies patch.
func (db *DB) UpsertJournalEntry(ctx context.Context, owner, date string, patch models.JournalPatch) (*models.JournalEntry, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	if err := store.RequireDate(date); err != nil {
		return nil, err
	}

	var out *models.JournalEntry
	err := db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e := &models.JournalEntry{Date: date, OwnerID: owner}
		var row journalRow
		err := tx.Where("owner_id = ? AND date = ?", owner, date).First(&row).Error
		switch {
		case err == nil:
			if e, err = row.model(); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("postgres: get journal entry: %w", err)
		}

		patch.Apply(e)
		e.Normalize()
		e.UpdatedAt = db.stamp()

		drafts, _ := json.Marshal(e.GeneratedIdeas)
		saved, _ := json.Marshal(e.SavedIndices)
		row = journalRow{
			OwnerID:        owner,
			Date:           date,
			EntryText:      e.EntryText,
			GeneratedIdeas: datatypes.JSON(drafts),
			SavedIndices:   datatypes.JSON(saved),
			UpdatedAt:      e.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("postgres: upsert journal entry: %w", err)
		}
		out = e
		return nil
	})
	return out, err
}

// ListJournalEntries returns the owner's entries newest first.
func (db *DB) ListJournalEntries(ctx context.Context, owner string) ([]models.JournalEntry, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	var rows []journalRow
	if err := db.gorm.WithContext(ctx).Where("owner_id = ?", owner).Order("date DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres: list journal entries: %w", err)
	}
	out := make([]models.JournalEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].model()
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

// ListIdeas returns the owner's ideas newest first.
func (db *DB) ListIdeas(ctx context.Context, owner string) ([]models.Idea, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	var rows []ideaRow
	if err := db.gorm.WithContext(ctx).Where("owner_id = ?", owner).Order("created_at DESC, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres: list ideas: %w", err)
	}
	out := make([]models.Idea, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// InsertIdea stores a new, unscheduled idea.
func (db *DB) InsertIdea(ctx context.Context, owner string, idea models.Idea) (*models.Idea, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	idea = store.PrepareIdea(owner, idea, db.stamp())

	row := ideaFromModel(idea)
	if err := db.gorm.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("idea %s: %w", idea.ID, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("postgres: insert idea: %w", err)
	}
	return &idea, nil
}

// UpdateIdea applies inline edits to one idea.
func (db *DB) UpdateIdea(ctx context.Context, owner, id string, patch models.IdeaPatch) (*models.Idea, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	var out models.Idea
	err := db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row ideaRow
		if err := tx.Where("owner_id = ? AND id = ?", owner, id).First(&row).Error; err != nil {
			return notFound(err, "idea", id)
		}
		out = row.model()
		if patch.Empty() {
			return nil
		}
		patch.Apply(&out)
		row = ideaFromModel(out)
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("postgres: update idea: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteIdea removes the idea and its calendar posts in one transaction.
func (db *DB) DeleteIdea(ctx context.Context, owner, id string) error {
	if err := store.RequireOwner(owner); err != nil {
		return err
	}
	return db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND idea_id = ?", owner, id).Delete(&postRow{}).Error; err != nil {
			return fmt.Errorf("postgres: delete idea posts: %w", err)
		}
		res := tx.Where("owner_id = ? AND id = ?", owner, id).Delete(&ideaRow{})
		if res.Error != nil {
			return fmt.Errorf("postgres: delete idea: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("idea %s: %w", id, apperr.ErrNotFound)
		}
		return nil
	})
}

// ListCalendarPosts returns the owner's posts ordered by date.
func (db *DB) ListCalendarPosts(ctx context.Context, owner string) ([]models.CalendarPost, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	var rows []postRow
	if err := db.gorm.WithContext(ctx).Where("owner_id = ?", owner).Order("date, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres: list calendar posts: %w", err)
	}
	out := make([]models.CalendarPost, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// UpdateCalendarPost toggles the posted flag.
func (db *DB) UpdateCalendarPost(ctx context.Context, owner, id string, patch models.CalendarPatch) (*models.CalendarPost, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	var out models.CalendarPost
	err := db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row postRow
		if err := tx.Where("owner_id = ? AND id = ?", owner, id).First(&row).Error; err != nil {
			return notFound(err, "calendar post", id)
		}
		if patch.Posted != nil {
			row.Posted = *patch.Posted
			if err := tx.Model(&postRow{}).Where("owner_id = ? AND id = ?", owner, id).
				Update("posted", row.Posted).Error; err != nil {
				return fmt.Errorf("postgres: update calendar post: %w", err)
			}
		}
		out = row.model()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ScheduleIdea replaces the idea's calendar post and scheduled date atomically.
func (db *DB) ScheduleIdea(ctx context.Context, owner, ideaID string, date *string) (*models.CalendarPost, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	if date != nil {
		if err := store.RequireDate(*date); err != nil {
			return nil, err
		}
	}

	var out *models.CalendarPost
	err := db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var idea ideaRow
		if err := tx.Where("owner_id = ? AND id = ?", owner, ideaID).First(&idea).Error; err != nil {
			return notFound(err, "idea", ideaID)
		}
		if err := tx.Where("owner_id = ? AND idea_id = ?", owner, ideaID).Delete(&postRow{}).Error; err != nil {
			return fmt.Errorf("postgres: clear idea posts: %w", err)
		}
		if err := setScheduled(tx, owner, ideaID, date); err != nil {
			return err
		}
		if date == nil {
			return nil
		}
		p := models.NewCalendarPost(idea.model(), *date)
		p.OwnerID = owner
		row := postFromModel(p)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("postgres: insert calendar post: %w", err)
		}
		out = &p
		return nil
	})
	return out, err
}

// MovePost changes a post's date and its idea's scheduled date atomically.
func (db *DB) MovePost(ctx context.Context, owner, postID, date string) (*models.CalendarPost, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	if err := store.RequireDate(date); err != nil {
		return nil, err
	}
	var out models.CalendarPost
	err := db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row postRow
		if err := tx.Where("owner_id = ? AND id = ?", owner, postID).First(&row).Error; err != nil {
			return notFound(err, "calendar post", postID)
		}
		if err := tx.Model(&postRow{}).Where("owner_id = ? AND id = ?", owner, postID).
			Update("date", date).Error; err != nil {
			return fmt.Errorf("postgres: move calendar post: %w", err)
		}
		row.Date = date
		out = row.model()
		return setScheduled(tx, owner, row.IdeaID, &date)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RemovePost deletes the post and clears its idea's scheduled date atomically.
func (db *DB) RemovePost(ctx context.Context, owner, postID string) error {
	if err := store.RequireOwner(owner); err != nil {
		return err
	}
	return db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row postRow
		if err := tx.Where("owner_id = ? AND id = ?", owner, postID).First(&row).Error; err != nil {
			return notFound(err, "calendar post", postID)
		}
		if err := tx.Where("owner_id = ? AND id = ?", owner, postID).Delete(&postRow{}).Error; err != nil {
			return fmt.Errorf("postgres: delete calendar post: %w", err)
		}
		return setScheduled(tx, owner, row.IdeaID, nil)
	})
}

func setScheduled(tx *gorm.DB, owner, ideaID string, date *string) error {
	err := tx.Model(&ideaRow{}).Where("owner_id = ? AND id = ?", owner, ideaID).
		Update("scheduled_date", date).Error
	if err != nil {
		return fmt.Errorf("postgres: set scheduled date: %w", err)
	}
	return nil
}

// Search matches journal text and idea bodies with ILIKE.
func (db *DB) Search(ctx context.Context, owner, query string, limit int) ([]models.SearchHit, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	q, limit, err := store.PrepareSearch(query, limit)
	if err != nil {
		return nil, err
	}
	like := store.LikePattern(q)

	var entries []journalRow
	if err := db.gorm.WithContext(ctx).Select("date", "entry_text").
		Where("owner_id = ? AND entry_text ILIKE ?", owner, like).
		Order("date DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("postgres: search journal: %w", err)
	}
	var ideas []ideaRow
	if err := db.gorm.WithContext(ctx).Select("id", "body").
		Where("owner_id = ? AND body ILIKE ?", owner, like).
		Order("created_at DESC, id").Limit(limit).Find(&ideas).Error; err != nil {
		return nil, fmt.Errorf("postgres: search ideas: %w", err)
	}

	journalHits := make([]models.SearchHit, 0, len(entries))
	for _, e := range entries {
		journalHits = append(journalHits, store.JournalHit(e.Date, e.EntryText, q))
	}
	ideaHits := make([]models.SearchHit, 0, len(ideas))
	for _, i := range ideas {
		ideaHits = append(ideaHits, store.IdeaHit(i.ID, i.Body, q))
	}
	return store.MergeHits(journalHits, ideaHits, limit), nil
}

// GetProfile returns the owner's profile.
func (db *DB) GetProfile(ctx context.Context, owner string) (*models.Profile, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	var row profileRow
	if err := db.gorm.WithContext(ctx).Where("id = ?", owner).First(&row).Error; err != nil {
		return nil, notFound(err, "profile", owner)
	}
	return row.model()
}

// UpsertProfile writes the set fields of patch, creating the profile if needed.
func (db *DB) UpsertProfile(ctx context.Context, owner string, patch models.ProfilePatch) (*models.Profile, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	var out *models.Profile
	err := db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p := &models.Profile{OwnerID: owner, Topics: []string{}}
		var row profileRow
		err := tx.Where("id = ?", owner).First(&row).Error
		switch {
		case err == nil:
			if p, err = row.model(); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("postgres: get profile: %w", err)
		}

		patch.Apply(p)
		p.UpdatedAt = db.stamp()
		topics, _ := json.Marshal(p.Topics)
		row = profileRow{
			ID:                 owner,
			ToneGuide:          p.ToneGuide,
			Topics:             datatypes.JSON(topics),
			APIKey:             p.APIKey,
			OnboardingComplete: p.OnboardingComplete,
			UpdatedAt:          p.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("postgres: upsert profile: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}

// decodeColumn unmarshals a JSON column; NULL leaves v untouched.
func decodeColumn(raw datatypes.JSON, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (r journalRow) model() (*models.JournalEntry, error) {
	e := &models.JournalEntry{
		Date:      r.Date,
		OwnerID:   r.OwnerID,
		EntryText: r.EntryText,
		UpdatedAt: r.UpdatedAt,
	}
	if err := decodeColumn(r.GeneratedIdeas, &e.GeneratedIdeas); err != nil {
		return nil, fmt.Errorf("postgres: journal entry %s: decode generated_ideas: %w", r.Date, err)
	}
	if err := decodeColumn(r.SavedIndices, &e.SavedIndices); err != nil {
		return nil, fmt.Errorf("postgres: journal entry %s: decode saved_indices: %w", r.Date, err)
	}
	e.Normalize()
	return e, nil
}

func (r ideaRow) model() models.Idea {
	return models.Idea{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Title:         r.Title,
		Body:          r.Body,
		ImageIdea:     r.ImageIdea,
		ContentType:   models.ParseCategory(r.ContentType),
		Status:        r.Status,
		StatusColor:   r.StatusColor,
		Source:        models.Source(r.Source),
		TrendSource:   r.TrendSource,
		FromDate:      r.FromDate,
		ScheduledDate: r.ScheduledDate,
		CreatedAt:     r.CreatedAt,
	}
}

func ideaFromModel(i models.Idea) ideaRow {
	return ideaRow{
		ID:            i.ID,
		OwnerID:       i.OwnerID,
		Title:         i.Title,
		Body:          i.Body,
		ImageIdea:     i.ImageIdea,
		ContentType:   string(i.ContentType),
		Status:        i.Status,
		StatusColor:   i.StatusColor,
		Source:        string(i.Source),
		TrendSource:   i.TrendSource,
		FromDate:      i.FromDate,
		ScheduledDate: i.ScheduledDate,
		CreatedAt:     i.CreatedAt,
	}
}

func (r postRow) model() models.CalendarPost {
	return models.CalendarPost{
		ID:      r.ID,
		OwnerID: r.OwnerID,
		IdeaID:  r.IdeaID,
		Date:    r.Date,
		Label:   r.Label,
		Type:    models.ParseCategory(r.Type),
		Posted:  r.Posted,
	}
}

func postFromModel(p models.CalendarPost) postRow {
	return postRow{
		ID:      p.ID,
		OwnerID: p.OwnerID,
		IdeaID:  p.IdeaID,
		Date:    p.Date,
		Label:   p.Label,
		Type:    string(p.Type),
		Posted:  p.Posted,
	}
}

func (r profileRow) model() (*models.Profile, error) {
	p := &models.Profile{
		OwnerID:            r.ID,
		ToneGuide:          r.ToneGuide,
		APIKey:             r.APIKey,
		OnboardingComplete: r.OnboardingComplete,
		UpdatedAt:          r.UpdatedAt,
	}
	if err := decodeColumn(r.Topics, &p.Topics); err != nil {
		return nil, fmt.Errorf("postgres: profile %s: decode topics: %w", r.ID, err)
	}
	if p.Topics == nil {
		p.Topics = []string{}
	}
	return p, nil
}
