package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"naskahlokal/internal/document/catalog"
	"naskahlokal/internal/document/gateway"
	"naskahlokal/internal/document/model"
	"naskahlokal/internal/document/repository"
	"naskahlokal/pkg/logger"
	"naskahlokal/pkg/metrics"
)

const (
	DefaultAutosaveInterval = 30 * time.Second
	BannerPathPrefix        = "/Content/images/social-post/"

	ActionSave        = "save"
	ActionLoadRecent  = "loadrecent"
	ActionClose       = "closedocument"
	ActionNewDocument = "newdocument"
	ActionExport      = "export"
	ActionImport      = "importjson"
	ActionEditInfo    = "editdocinfo"
)

var (
	ErrNoDocument  = errors.New("no document is currently open")
	ErrNoDocuments = errors.New("no recent documents found")
	ErrInvalidSlug = errors.New("slug must not be empty")
	ErrSlugTaken   = errors.New("another document already uses that slug")
)

// SessionService owns the single open document and keeps the store and the
// editor widget in step.
type SessionService struct {
	Store   repository.Store
	Catalog *catalog.Catalog
	Widget  Widget

	interval time.Duration
	now      func() time.Time
	onClosed func()

	mu             sync.Mutex
	current        *model.Record
	cancelAutosave context.CancelFunc
	autosaveDone   chan struct{}
	generation     uint64
}

type Option func(*SessionService)

func WithAutosaveInterval(d time.Duration) Option {
	return func(s *SessionService) { s.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

// WithOnClosed sets the hook that brings the document chooser back after Close.
func WithOnClosed(fn func()) Option {
	return func(s *SessionService) { s.onClosed = fn }
}

func NewSessionService(store repository.Store, cat *catalog.Catalog, widget Widget, opts ...Option) *SessionService {
	s := &SessionService{
		Store:    store,
		Catalog:  cat,
		Widget:   widget,
		interval: DefaultAutosaveInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	widget.OnReady(s.pushCurrent)
	widget.RegisterAction(ActionSave, func() {
		if _, err := s.Save(context.Background()); err != nil {
			s.notify(NoticeError, "Save failed: "+err.Error())
			return
		}
		s.notify(NoticeInfo, "Document saved successfully!")
	})
	widget.RegisterAction(ActionLoadRecent, func() {
		if _, err := s.LoadMostRecent(context.Background()); err != nil {
			s.notify(NoticeError, err.Error())
		}
	})
	widget.RegisterAction(ActionClose, func() {
		if err := s.Close(context.Background()); err != nil && !errors.Is(err, ErrNoDocument) {
			s.notify(NoticeError, err.Error())
		}
	})
	// The remaining actions need input from the page, so they only open a dialog there.
	widget.RegisterAction(ActionNewDocument, func() { s.prompt(ActionNewDocument, false) })
	widget.RegisterAction(ActionImport, func() { s.prompt(ActionImport, false) })
	widget.RegisterAction(ActionExport, func() { s.prompt(ActionExport, true) })
	widget.RegisterAction(ActionEditInfo, func() { s.prompt(ActionEditInfo, true) })
	return s
}

// Current returns a copy of the working record.
func (s *SessionService) Current() (model.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Record{}, false
	}
	return *s.current, true
}

// NewDocument opens a fresh, empty document. It is not stored until the first save.
func (s *SessionService) NewDocument(ctx context.Context, meta model.Meta, banner model.Banner) (model.Record, error) {
	if meta.Slug == "" {
		return model.Record{}, ErrInvalidSlug
	}
	rec := model.Record{
		Slug:         meta.Slug,
		Type:         meta.Type,
		Title:        meta.Title,
		DateModified: model.FormatTime(s.now()),
	}
	if err := s.checkSlugFree(ctx, rec.Slug); err != nil {
		return model.Record{}, err
	}
	if banner.FileName != "" {
		rec.Banner = BannerPathPrefix + banner.FileName
	}
	if len(banner.Data) > 0 {
		rec.ThumbnailBase64 = DataURL(banner)
	}

	if err := s.open(ctx, rec); err != nil {
		return model.Record{}, err
	}
	logger.Sugar.Infof("Created document %s", rec.Slug)
	return rec, nil
}

// OpenDocument loads rec into the widget and makes it the current document.
func (s *SessionService) OpenDocument(ctx context.Context, rec model.Record) error {
	if err := s.open(ctx, rec); err != nil {
		return err
	}
	logger.Sugar.Infof("Opened document %s", rec.Slug)
	return nil
}

// OpenSlug opens the stored document with the given slug.
func (s *SessionService) OpenSlug(ctx context.Context, slug string) (model.Record, error) {
	rec, err := s.Store.Get(ctx, slug)
	if err != nil {
		return model.Record{}, err
	}
	return rec, s.OpenDocument(ctx, rec)
}

// LoadMostRecent opens the document with the newest dateModified.
func (s *SessionService) LoadMostRecent(ctx context.Context) (model.Record, error) {
	rec, ok, err := s.Catalog.MostRecent(ctx)
	if err != nil {
		return model.Record{}, err
	}
	if !ok {
		return model.Record{}, ErrNoDocuments
	}
	return rec, s.OpenDocument(ctx, rec)
}

// Save writes the widget content of the open document to the store.
func (s *SessionService) Save(ctx context.Context) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return model.Record{}, ErrNoDocument
	}
	rec, err := s.persistLocked(ctx, *s.current)
	metrics.Saves.WithLabelValues(metrics.TriggerManual, metrics.Result(err)).Inc()
	if err != nil {
		return model.Record{}, err
	}
	logger.Sugar.Infof("Saved document %s", rec.Slug)
	return rec, nil
}

// Close stops autosave, empties the widget and shows the chooser again.
// Unsaved widget content is discarded.
func (s *SessionService) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoDocument
	}
	done := s.stopAutosaveLocked()
	slug := s.current.Slug
	s.current = nil
	err := s.Widget.SetContent(ctx, "")
	s.mu.Unlock()

	join(done)
	if err != nil {
		logger.Sugar.Warnf("Failed to clear editor after closing %s: %v", slug, err)
	}
	logger.Sugar.Infof("Closed document %s", slug)

	if s.onClosed != nil {
		s.onClosed()
	}
	return nil
}

// EditInfo changes slug, title, type and optionally the banner of the open
// document and stores it. A new slug moves the stored entry to the new key.
func (s *SessionService) EditInfo(ctx context.Context, req model.InfoRequest) (model.Record, error) {
	if req.Slug == "" {
		return model.Record{}, ErrInvalidSlug
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return model.Record{}, ErrNoDocument
	}
	oldSlug := s.current.Slug
	renamed := req.Slug != oldSlug

	if renamed {
		if err := s.checkSlugFree(ctx, req.Slug); err != nil {
			return model.Record{}, err
		}
	}

	rec := *s.current
	rec.Slug = req.Slug
	rec.Title = req.Title
	rec.Type = req.Type
	if req.Banner != nil && len(req.Banner.Data) > 0 {
		url := DataURL(*req.Banner)
		rec.Banner = url
		rec.ThumbnailBase64 = url
	}

	rec, err := s.persistLocked(ctx, rec)
	metrics.Saves.WithLabelValues(metrics.TriggerInfo, metrics.Result(err)).Inc()
	if err != nil {
		return model.Record{}, err
	}

	if renamed {
		if err := s.Store.Delete(ctx, oldSlug); err != nil {
			logger.Sugar.Errorf("Renamed %s to %s but could not remove the old entry: %v", oldSlug, rec.Slug, err)
			return rec, err
		}
		logger.Sugar.Infof("Renamed document %s to %s", oldSlug, rec.Slug)
	}
	return rec, nil
}

// Export returns the open document, with the latest widget content, as a portable file.
func (s *SessionService) Export(ctx context.Context) (gateway.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return gateway.File{}, ErrNoDocument
	}
	content, err := s.Widget.GetContent(ctx)
	if err != nil {
		return gateway.File{}, fmt.Errorf("read editor content: %w", err)
	}
	s.current.Content = content

	f, err := gateway.Export(*s.current)
	if err != nil {
		return gateway.File{}, err
	}
	metrics.Exports.Inc()
	return f, nil
}

// Import opens the first document of an exported file and stores it.
// A malformed file leaves the session untouched.
func (s *SessionService) Import(ctx context.Context, data []byte) (model.Record, error) {
	rec, err := gateway.Import(data, s.now())
	if err != nil {
		metrics.Imports.WithLabelValues(metrics.ResultError).Inc()
		logger.Sugar.Warnf("Rejected import: %v", err)
		return model.Record{}, err
	}
	// Opening and storing happen under one lock so no other action can
	// replace the document in between.
	s.mu.Lock()
	done, err := s.openLocked(ctx, rec)
	if err != nil {
		s.mu.Unlock()
		metrics.Imports.WithLabelValues(metrics.ResultError).Inc()
		return model.Record{}, err
	}
	stored, err := s.persistLocked(ctx, rec)
	s.mu.Unlock()
	join(done)

	metrics.Saves.WithLabelValues(metrics.TriggerImport, metrics.Result(err)).Inc()
	metrics.Imports.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return rec, err
	}
	logger.Sugar.Infof("Imported document %s", stored.Slug)
	return stored, nil
}

// Shutdown stops autosave for good. Call it before the process exits.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	done := s.stopAutosaveLocked()
	s.mu.Unlock()
	join(done)
}

func (s *SessionService) open(ctx context.Context, rec model.Record) error {
	s.mu.Lock()
	done, err := s.openLocked(ctx, rec)
	s.mu.Unlock()

	join(done)
	return err
}

// openLocked makes rec current and re-arms autosave. The caller joins the
// returned channel after releasing s.mu.
func (s *SessionService) openLocked(ctx context.Context, rec model.Record) (<-chan struct{}, error) {
	if err := s.Widget.SetContent(ctx, rec.Content); err != nil {
		return nil, fmt.Errorf("load content into editor: %w", err)
	}
	done := s.stopAutosaveLocked()
	s.current = &rec
	s.startAutosaveLocked()
	return done, nil
}

// checkSlugFree fails with ErrSlugTaken when a stored record already uses slug.
func (s *SessionService) checkSlugFree(ctx context.Context, slug string) error {
	_, err := s.Store.Get(ctx, slug)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrSlugTaken, slug)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	}
	return err
}

// persistLocked is the only write path for the open document.
func (s *SessionService) persistLocked(ctx context.Context, rec model.Record) (model.Record, error) {
	content, err := s.Widget.GetContent(ctx)
	if err != nil {
		return model.Record{}, fmt.Errorf("read editor content: %w", err)
	}
	rec.Content = content
	rec.DateModified = s.stamp(rec.DateModified)

	if err := s.Store.Put(ctx, rec); err != nil {
		return model.Record{}, err
	}
	s.current = &rec
	return rec, nil
}

// stamp returns the current time, but never earlier than prev.
func (s *SessionService) stamp(prev string) string {
	now := s.now()
	if t, err := catalog.ParseTimestamp(prev); err == nil && t.After(now) {
		now = t
	}
	return model.FormatTime(now)
}

func (s *SessionService) startAutosaveLocked() {
	if s.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.generation++
	s.cancelAutosave = cancel
	s.autosaveDone = done
	go s.autosaveLoop(ctx, s.generation, done)
}

// stopAutosaveLocked cancels the running loop. The caller waits on the
// returned channel after releasing s.mu.
func (s *SessionService) stopAutosaveLocked() <-chan struct{} {
	if s.cancelAutosave == nil {
		return nil
	}
	s.cancelAutosave()
	done := s.autosaveDone
	s.cancelAutosave = nil
	s.autosaveDone = nil
	s.generation++
	return done
}

func join(done <-chan struct{}) {
	if done != nil {
		<-done
	}
}

func (s *SessionService) autosaveLoop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.autosave(ctx, gen)
		}
	}
}

func (s *SessionService) autosave(ctx context.Context, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A loop that was replaced while waiting for the lock must not write.
	if ctx.Err() != nil || gen != s.generation || s.current == nil {
		return
	}
	rec, err := s.persistLocked(ctx, *s.current)
	metrics.Saves.WithLabelValues(metrics.TriggerAutosave, metrics.Result(err)).Inc()
	if err != nil {
		logger.Sugar.Errorf("Autosave of %s failed: %v", s.current.Slug, err)
		return
	}
	logger.Sugar.Infof("Auto-saved document: %s", rec.Slug)
}

func (s *SessionService) pushCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	if err := s.Widget.SetContent(context.Background(), s.current.Content); err != nil {
		logger.Sugar.Errorf("Failed to push content of %s to editor: %v", s.current.Slug, err)
	}
}

func (s *SessionService) prompt(dialog string, needsDocument bool) {
	if needsDocument {
		if _, ok := s.Current(); !ok {
			s.notify(NoticeError, "No document is currently open.")
			return
		}
	}
	if p, ok := s.Widget.(Prompter); ok {
		p.Prompt(dialog)
	}
}

func (s *SessionService) notify(level, msg string) {
	if n, ok := s.Widget.(Notifier); ok {
		n.Notify(level, msg)
	}
}

// DataURL encodes an uploaded image for inline display.
func DataURL(b model.Banner) string {
	mime := b.MIMEType
	if mime == "" {
		mime = http.DetectContentType(b.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}
