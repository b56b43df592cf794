package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
)

const DefaultMissingThreshold = 500

// ItemOutcome is the result for one remote record of a pass.
type ItemOutcome struct {
	RemoteID       int64              `json:"remote_id"`
	ParentRemoteID *int64             `json:"parent_remote_id,omitempty"`
	Kind           models.CatalogKind `json:"kind,omitempty"`
	Err            error              `json:"-"`
	Error          string             `json:"error,omitempty"`
}

type BatchResult struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message"`
	Synced        int           `json:"synced"`
	Errors        int           `json:"errors"`
	Total         int           `json:"total"`
	MarkedMissing int           `json:"marked_missing"`
	Outcomes      []ItemOutcome `json:"-"`
	RunID         string        `json:"run_id,omitempty"`
}

// Degraded reports a completed pass that still had per-item failures.
func (r *BatchResult) Degraded() bool {
	return r.Success && r.Errors > 0
}

// FailedItems returns only the outcomes carrying an error.
func (r *BatchResult) FailedItems() []ItemOutcome {
	out := []ItemOutcome{}
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

func (r *BatchResult) add(o ItemOutcome) {
	r.Total++
	if o.Err != nil {
		o.Error = o.Err.Error()
		r.Errors++
	} else {
		r.Synced++
	}
	r.Outcomes = append(r.Outcomes, o)
}

type SingleResult struct {
	Success  bool                `json:"success"`
	NotFound bool                `json:"not_found"`
	Message  string              `json:"message"`
	Item     *models.CatalogItem `json:"item,omitempty"`
}

type SyncService struct {
	store     Store
	remote    RemoteCatalog
	notifier  Notifier
	log       *zap.Logger
	tracer    trace.Tracer
	threshold int
}

func NewSyncService(store Store, remote RemoteCatalog, notifier Notifier, log *zap.Logger, missingThreshold int) *SyncService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if missingThreshold <= 0 {
		missingThreshold = DefaultMissingThreshold
	}
	return &SyncService{
		store:     store,
		remote:    remote,
		notifier:  notifier,
		log:       log.Named("catalog.sync"),
		tracer:    otel.Tracer("gudang_be/catalog"),
		threshold: missingThreshold,
	}
}

// SyncAll runs one full reconciliation pass. Per-item failures are counted and the pass
// continues; only a missing configuration or a failed catalog fetch fails the whole call.
func (s *SyncService) SyncAll(ctx context.Context) BatchResult {
	ctx, span := s.tracer.Start(ctx, "catalog.SyncAll")
	defer span.End()

	run := s.startRun(ctx, models.SyncRunFull, nil)
	res := BatchResult{Outcomes: []ItemOutcome{}, RunID: run.ID.String()}

	if s.remote == nil {
		res.Message = "Konfigurasi WooCommerce belum lengkap"
		s.finishRun(ctx, run, &res, woocommerce.ErrMissingCredentials)
		return res
	}

	products, err := s.remote.FetchAllProducts(ctx)
	if err != nil {
		s.log.Error("fetch catalog failed", zap.Error(err))
		res.Message = "Gagal mengambil produk dari WooCommerce: " + err.Error()
		s.finishRun(ctx, run, &res, err)
		return res
	}

	seen := make(map[int64]struct{}, len(products))
	skippedParents := map[int64]struct{}{}

	for _, p := range products {
		seen[p.ID] = struct{}{}

		out := s.upsert(ctx, p, nil)
		res.add(out)

		if p.Type != string(models.KindVariable) {
			continue
		}
		if out.Err != nil {
			// variasi dari parent yang gagal tidak diproses pada pass ini
			skippedParents[p.ID] = struct{}{}
			s.log.Warn("skip variations of failed parent", zap.Int64("remote_id", p.ID))
			continue
		}

		variations, err := s.remote.FetchVariations(ctx, p.ID)
		if err != nil {
			skippedParents[p.ID] = struct{}{}
			pid := p.ID
			res.add(ItemOutcome{
				RemoteID:       p.ID,
				ParentRemoteID: &pid,
				Kind:           models.KindVariation,
				Err:            fmt.Errorf("fetch variations: %w", err),
			})
			s.log.Warn("fetch variations failed", zap.Int64("remote_id", p.ID), zap.Error(err))
			continue
		}

		for _, v := range variations {
			seen[v.ID] = struct{}{}
			pid := p.ID
			res.add(s.upsert(ctx, v, &pid))
		}
	}

	if len(seen) > s.threshold {
		n, err := s.markAbsent(ctx, seen, skippedParents)
		if err != nil {
			s.log.Error("mark missing failed", zap.Error(err))
		}
		res.MarkedMissing = int(n)
	} else {
		s.log.Info("missing-mark skipped, fetch below threshold",
			zap.Int("seen", len(seen)),
			zap.Int("threshold", s.threshold),
		)
	}

	res.Success = true
	res.Message = fmt.Sprintf("Sinkronisasi selesai: %d berhasil, %d gagal dari %d item", res.Synced, res.Errors, res.Total)
	if res.MarkedMissing > 0 {
		res.Message += fmt.Sprintf(", %d ditandai hilang", res.MarkedMissing)
	}

	span.SetAttributes(
		attribute.Int("catalog.synced", res.Synced),
		attribute.Int("catalog.errors", res.Errors),
		attribute.Int("catalog.marked_missing", res.MarkedMissing),
	)
	s.log.Info("sync finished",
		zap.Int("synced", res.Synced),
		zap.Int("errors", res.Errors),
		zap.Int("total", res.Total),
		zap.Int("marked_missing", res.MarkedMissing),
	)

	s.finishRun(ctx, run, &res, nil)
	if res.Synced > 0 || res.MarkedMissing > 0 {
		s.notifier.ViewsStale(ctx, staleAll("sync", nil))
	}
	return res
}

// SyncOne re-syncs a single product, or a single variation when parentRemoteID is set.
// A remote 404 flags only this row as missing.
func (s *SyncService) SyncOne(ctx context.Context, remoteID int64, parentRemoteID *int64) SingleResult {
	ctx, span := s.tracer.Start(ctx, "catalog.SyncOne", trace.WithAttributes(attribute.Int64("catalog.remote_id", remoteID)))
	defer span.End()

	run := s.startRun(ctx, models.SyncRunSingle, &remoteID)
	batch := BatchResult{}

	if s.remote == nil {
		s.finishRun(ctx, run, &batch, woocommerce.ErrMissingCredentials)
		return SingleResult{Message: "Konfigurasi WooCommerce belum lengkap"}
	}

	var (
		p   *woocommerce.Product
		err error
	)
	if parentRemoteID != nil {
		p, err = s.remote.FetchVariation(ctx, *parentRemoteID, remoteID)
	} else {
		p, err = s.remote.FetchProduct(ctx, remoteID)
	}

	if errors.Is(err, woocommerce.ErrNotFound) {
		n, merr := s.store.MarkMissingOne(ctx, remoteID)
		if merr != nil {
			s.log.Error("mark missing failed", zap.Int64("remote_id", remoteID), zap.Error(merr))
		}
		batch.MarkedMissing = int(n)
		s.finishRun(ctx, run, &batch, err)
		if n > 0 {
			s.notifier.ViewsStale(ctx, staleAll("sync-item", &remoteID))
		}
		return SingleResult{NotFound: true, Message: "Produk tidak ditemukan di WooCommerce"}
	}
	if err != nil {
		s.log.Warn("fetch item failed", zap.Int64("remote_id", remoteID), zap.Error(err))
		s.finishRun(ctx, run, &batch, err)
		return SingleResult{Message: "Gagal mengambil produk dari WooCommerce"}
	}

	out := s.upsert(ctx, *p, parentRemoteID)
	batch.add(out)
	if out.Err != nil {
		s.finishRun(ctx, run, &batch, out.Err)
		return SingleResult{Message: "Gagal menyimpan produk"}
	}
	s.finishRun(ctx, run, &batch, nil)

	item, err := s.store.FindByRemoteID(ctx, p.ID)
	if err != nil {
		s.log.Warn("reload synced item failed", zap.Int64("remote_id", p.ID), zap.Error(err))
	}
	s.notifier.ViewsStale(ctx, staleAll("sync-item", &remoteID))
	return SingleResult{Success: true, Message: "Produk berhasil disinkronkan", Item: item}
}

func (s *SyncService) upsert(ctx context.Context, p woocommerce.Product, parentID *int64) ItemOutcome {
	out := ItemOutcome{RemoteID: p.ID, ParentRemoteID: parentID}

	if p.DecodeErr != nil {
		out.Err = p.DecodeErr
		s.log.Warn("undecodable remote item", zap.Int64("remote_id", p.ID), zap.Error(p.DecodeErr))
		return out
	}

	item, err := itemFromRemote(p, parentID)
	if err != nil {
		out.Err = err
		s.log.Warn("map remote item failed", zap.Int64("remote_id", p.ID), zap.Error(err))
		return out
	}
	out.Kind = item.Kind
	out.ParentRemoteID = item.ParentRemoteID

	if err := s.store.UpsertItem(ctx, item); err != nil {
		out.Err = err
		s.log.Warn("upsert failed", zap.Int64("remote_id", p.ID), zap.Error(err))
	}
	return out
}

// markAbsent flags every active row not seen in this pass. Variations of parents whose
// variations were not fetched are left alone.
func (s *SyncService) markAbsent(ctx context.Context, seen, skippedParents map[int64]struct{}) (int64, error) {
	refs, err := s.store.ActiveRefs(ctx)
	if err != nil {
		return 0, err
	}

	var absent []int64
	for _, ref := range refs {
		if _, ok := seen[ref.RemoteID]; ok {
			continue
		}
		if ref.ParentRemoteID != nil {
			if _, ok := skippedParents[*ref.ParentRemoteID]; ok {
				continue
			}
		}
		absent = append(absent, ref.RemoteID)
	}
	if len(absent) == 0 {
		return 0, nil
	}
	return s.store.MarkMissing(ctx, absent)
}

func (s *SyncService) startRun(ctx context.Context, kind models.SyncRunKind, remoteID *int64) *models.SyncRun {
	run := &models.SyncRun{
		Kind:      kind,
		Status:    models.SyncRunRunning,
		RemoteID:  remoteID,
		StartedAt: time.Now(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		s.log.Warn("create sync run failed", zap.Error(err))
	}
	return run
}

func (s *SyncService) finishRun(ctx context.Context, run *models.SyncRun, res *BatchResult, cause error) {
	now := time.Now()
	run.FinishedAt = &now
	run.Synced = res.Synced
	run.Errors = res.Errors
	run.Total = res.Total
	run.MarkedMissing = res.MarkedMissing
	run.Status = models.SyncRunCompleted
	if cause != nil {
		run.Status = models.SyncRunFailed
		run.LastError = cause.Error()
	} else if failed := res.FailedItems(); len(failed) > 0 {
		run.LastError = failed[len(failed)-1].Error
	}
	if err := s.store.FinishRun(ctx, run); err != nil {
		s.log.Warn("finish sync run failed", zap.Error(err))
	}
}

// Runs lists recent reconciliation calls, newest first.
func (s *SyncService) Runs(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return s.store.ListRuns(ctx, limit)
}
