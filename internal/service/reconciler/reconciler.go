// Package reconciler drives the periodic sweep that keeps the metadata index
// consistent with the content store. The store is authoritative for bytes and
// physical location, the index for classification and status; the sweep walks
// the store, ingests unknown files, detects drift on known ones and archives
// records whose file disappeared. Sweeps are idempotent: a run with no
// external change writes nothing and emits no notifications.
package reconciler

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/fingerprint"
	"github.com/drivehit/gallery-sync/internal/port"
)

// zones of the store tree, each with its own reconciliation rules
type zone int

const (
	zoneIntake zone = iota
	zoneCategories
	zoneArchive
)

// Config contains reconciler configuration
type Config struct {
	ScanInterval time.Duration
	// LockWait bounds how long a sweep waits for the single-flight lock
	// before being skipped
	LockWait time.Duration

	Intake     string
	Categories string
	Archive    string
}

// DefaultConfig returns default reconciler configuration
func DefaultConfig() *Config {
	return &Config{
		ScanInterval: time.Minute,
		LockWait:     10 * time.Second,
		Intake:       "Uncategorized",
		Categories:   "AutoCategorized",
		Archive:      "Archived",
	}
}

// Result summarizes one sweep
type Result struct {
	Skipped    bool
	Inserted   int
	Updated    int
	Archived   int
	Restored   int
	Duplicates int
	Errors     int
}

// Reconciler runs the store-to-index reconciliation sweep
type Reconciler struct {
	config   *Config
	store    port.StoreClient
	items    port.ItemRepository
	enricher port.Enricher
	notifier port.Notifier
	logger   *zap.Logger

	lock    chan struct{}
	running bool
	cancel  context.CancelFunc
}

// New creates a new Reconciler
func New(cfg *Config, store port.StoreClient, items port.ItemRepository, enricher port.Enricher, notifier port.Notifier, logger *zap.Logger) *Reconciler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Reconciler{
		config:   cfg,
		store:    store,
		items:    items,
		enricher: enricher,
		notifier: notifier,
		logger:   logger,
		lock:     make(chan struct{}, 1),
	}
}

// Start runs an initial sweep and then sweeps on the configured interval
// until the context ends
func (r *Reconciler) Start(ctx context.Context) error {
	if r.running {
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	ctx, r.cancel = context.WithCancel(ctx)

	r.logger.Info("reconciler started",
		zap.Duration("scan_interval", r.config.ScanInterval))

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error("initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Stop stops the reconciler
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.running = false
}

// RunOnce performs a single sweep. Only one sweep runs at a time; if the lock
// cannot be acquired within LockWait the sweep is skipped, which is reported
// in the result rather than as an error.
func (r *Reconciler) RunOnce(ctx context.Context) (*Result, error) {
	if !r.tryLock(ctx) {
		sweepRunsTotal.WithLabelValues("skipped").Inc()
		r.logger.Warn("sweep skipped, another sweep in flight")
		return &Result{Skipped: true}, nil
	}
	defer r.unlock()

	start := time.Now()
	result := &Result{}

	snapshot, err := r.items.ListIDs()
	if err != nil {
		sweepRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("snapshot ids: %w", err)
	}

	walks := []struct {
		subtree string
		z       zone
	}{
		{r.config.Intake, zoneIntake},
		{r.config.Categories, zoneCategories},
		{r.config.Archive, zoneArchive},
	}
	for _, w := range walks {
		z := w.z
		err := r.store.Walk(ctx, w.subtree, func(desc port.FileDescriptor) error {
			if err := r.reconcileFile(ctx, desc, z, snapshot, result); err != nil {
				// One bad file never fails the sweep
				result.Errors++
				r.logger.Warn("failed to reconcile file",
					zap.String("id", desc.ID),
					zap.String("name", desc.Name),
					zap.Error(err))
			}
			return nil
		})
		if err != nil {
			sweepRunsTotal.WithLabelValues("error").Inc()
			return result, fmt.Errorf("walk %s: %w", w.subtree, err)
		}
	}

	// Anything still in the snapshot has no file left in the store
	for _, item := range snapshot {
		if err := r.archiveMissing(item, result); err != nil {
			result.Errors++
			r.logger.Warn("failed to archive missing item",
				zap.String("id", item.ID),
				zap.Error(err))
		}
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepDuration.Observe(time.Since(start).Seconds())

	r.logger.Info("sweep completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("archived", result.Archived),
		zap.Int("restored", result.Restored),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors))

	return result, nil
}

func (r *Reconciler) tryLock(ctx context.Context) bool {
	timer := time.NewTimer(r.config.LockWait)
	defer timer.Stop()
	select {
	case r.lock <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (r *Reconciler) unlock() {
	<-r.lock
}

// reconcileFile applies the per-file rules. Ids reconciled here are removed
// from the snapshot so the missing-file pass does not see them.
func (r *Reconciler) reconcileFile(ctx context.Context, desc port.FileDescriptor, z zone, snapshot map[string]*domain.Item, result *Result) error {
	known, ok := snapshot[desc.ID]
	delete(snapshot, desc.ID)

	if !ok {
		return r.ingest(ctx, desc, z, result)
	}

	// Status transitions driven by physical location
	if z == zoneArchive && !known.IsArchived() {
		known.Status = domain.StatusArchived
		known.UpdatedAt = time.Now()
		if err := r.items.Archive(known); err != nil {
			return err
		}
		result.Archived++
		sweepChangesTotal.WithLabelValues("archive").Inc()
		r.notifyChanged(known)
		return nil
	}
	if z != zoneArchive && known.IsArchived() {
		known.Status = domain.StatusPublished
		known.UpdatedAt = time.Now()
		if z == zoneCategories {
			if cat := r.categoryOf(desc); cat != "" {
				known.Category = cat
			}
		}
		if err := r.items.Restore(known); err != nil {
			return err
		}
		result.Restored++
		sweepChangesTotal.WithLabelValues("restore").Inc()
		r.notifyChanged(known)
		return nil
	}

	changed := false

	if desc.Name != known.Name {
		known.Rename(desc.Name)
		changed = true
	}

	if z == zoneCategories {
		if cat := r.categoryOf(desc); cat != "" && cat != known.Category {
			known.Category = cat
			changed = true
		}
	}

	if fp := fingerprint.Structural(desc); fp != known.Fingerprint {
		hash, err := r.hashContent(ctx, desc.ID)
		if err != nil {
			return err
		}
		known.Fingerprint = fp
		known.Size = desc.Size
		known.MimeType = desc.MimeType
		known.ContentHash = hash
		known.AspectRatio = domain.AspectRatioBucket(desc.Width, desc.Height)
		changed = true
	}

	if !changed {
		return nil
	}

	known.UpdatedAt = time.Now()
	if err := r.items.Upsert(known); err != nil {
		return err
	}
	result.Updated++
	sweepChangesTotal.WithLabelValues("update").Inc()
	r.notifyChanged(known)
	return nil
}

// ingest creates a record for a file the index has never seen. Content that
// duplicates an existing item (by hash) is skipped without a record.
func (r *Reconciler) ingest(ctx context.Context, desc port.FileDescriptor, z zone, result *Result) error {
	content, err := r.readContent(ctx, desc.ID)
	if err != nil {
		return err
	}
	hash := fingerprint.ContentBytes(content)

	if existing, err := r.items.FindByHash(hash); err != nil {
		return err
	} else if existing != nil {
		result.Duplicates++
		sweepChangesTotal.WithLabelValues("duplicate").Inc()
		r.logger.Info("skipping duplicate content",
			zap.String("id", desc.ID),
			zap.String("name", desc.Name),
			zap.String("existing", existing.ID))
		return nil
	}

	enr, err := r.enricher.Classify(ctx, desc, content)
	if err != nil {
		return err
	}

	category := enr.Category
	switch z {
	case zoneIntake:
		// Intake files are placed into their category folder on ingestion
		category, err = r.store.MoveToCategory(ctx, desc.ID, enr.Category)
		if err != nil {
			return err
		}
	case zoneCategories:
		if cat := r.categoryOf(desc); cat != "" {
			category = cat
		}
	}

	status := domain.StatusPublished
	if z == zoneArchive {
		status = domain.StatusArchived
	}

	now := time.Now()
	item := &domain.Item{
		ID:          desc.ID,
		Name:        desc.Name,
		Category:    category,
		Slug:        domain.Slugify(desc.Name),
		Status:      status,
		Size:        desc.Size,
		MimeType:    desc.MimeType,
		ContentHash: hash,
		Fingerprint: fingerprint.Structural(desc),
		Caption:     enr.Caption,
		AspectRatio: domain.AspectRatioBucket(desc.Width, desc.Height),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.items.Upsert(item); err != nil {
		return err
	}
	result.Inserted++
	sweepChangesTotal.WithLabelValues("insert").Inc()
	r.notifyChanged(item)
	return nil
}

// archiveMissing handles records whose file no longer exists anywhere in the
// store. Already-archived records are left alone.
func (r *Reconciler) archiveMissing(item *domain.Item, result *Result) error {
	if item.IsArchived() {
		return nil
	}
	item.Status = domain.StatusArchived
	item.UpdatedAt = time.Now()
	if err := r.items.Archive(item); err != nil {
		return err
	}
	result.Archived++
	sweepChangesTotal.WithLabelValues("archive").Inc()
	r.notifyChanged(item)
	return nil
}

// categoryOf derives the category from the immediate parent folder. Files
// sitting directly under the categories root have no category folder yet.
func (r *Reconciler) categoryOf(desc port.FileDescriptor) string {
	parent := path.Base(desc.ParentPath)
	if parent == r.config.Categories || parent == "." || parent == "/" {
		return ""
	}
	return parent
}

func (r *Reconciler) notifyChanged(item *domain.Item) {
	r.notifier.Enqueue("/items/" + item.ID)
	r.notifier.Enqueue("/category/" + domain.Slugify(item.Category))
	r.notifier.Enqueue("/")
}

func (r *Reconciler) readContent(ctx context.Context, id string) ([]byte, error) {
	rc, err := r.store.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return content, nil
}

func (r *Reconciler) hashContent(ctx context.Context, id string) (string, error) {
	rc, err := r.store.Open(ctx, id)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return fingerprint.Content(rc)
}
