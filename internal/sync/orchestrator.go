package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/chatlink/chatlink/internal/errors"
	"github.com/chatlink/chatlink/internal/logging"
	"github.com/chatlink/chatlink/internal/metrics"
	"github.com/chatlink/chatlink/internal/models"
	"github.com/chatlink/chatlink/internal/platform"
	"github.com/chatlink/chatlink/internal/store"
)

// Notifier receives sync failure alerts.
type Notifier interface {
	NotifySyncFailure(page, itemCount int, err error)
}

// StepResult is the outcome of one pagination step. The caller drives the
// loop: it calls Step with NextOffset until Complete is true.
type StepResult struct {
	Synced     int  `json:"synced"`
	Total      int  `json:"total"`
	NextOffset int  `json:"next_offset"`
	Complete   bool `json:"complete"`
}

// Orchestrator pushes local content into the selected knowledge source in
// client-driven pages.
type Orchestrator struct {
	store    store.Store
	client   *platform.Client
	logger   *logging.Logger
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithNotifier attaches a failure notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(s store.Store, client *platform.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  s,
		client: client,
		logger: logging.NewLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// selectedSource returns the knowledge source alias the content should be
// pushed to.
func (o *Orchestrator) selectedSource() (string, error) {
	alias, ok := o.store.Settings().Get(store.SettingKnowledgeSource)
	if !ok || alias == "" {
		return "", &errors.ErrValidation{Field: "knowledge_source_alias"}
	}
	return alias, nil
}

// contentTypes returns the configured content types, falling back to the
// given defaults.
func (o *Orchestrator) contentTypes(defaults []string) []string {
	var types []string
	if o.store.Settings().GetJSON(store.SettingSyncContentTypes, &types) && len(types) > 0 {
		return types
	}
	return defaults
}

// Step syncs one page of eligible content. A page either lands completely or
// not at all: on a push failure every item in the page is marked errored and
// the offset is left where it was, so the caller can retry the same page.
func (o *Orchestrator) Step(ctx context.Context, offset, pageSize int, defaultTypes []string) (*StepResult, error) {
	if offset < 0 {
		return nil, &errors.ErrValidation{Field: "offset"}
	}
	if pageSize <= 0 {
		return nil, &errors.ErrValidation{Field: "page_size"}
	}

	alias, err := o.selectedSource()
	if err != nil {
		return nil, err
	}

	types := o.contentTypes(defaultTypes)
	total, err := o.store.CountEligibleContent(types)
	if err != nil {
		return nil, err
	}

	if offset >= total {
		return &StepResult{Synced: total, Total: total, NextOffset: offset, Complete: true}, nil
	}

	page, err := o.store.ListEligibleContent(types, offset, pageSize)
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return &StepResult{Synced: offset, Total: total, NextOffset: offset, Complete: true}, nil
	}

	urls := make([]string, 0, len(page))
	for _, item := range page {
		urls = append(urls, item.URL)
	}

	if err := o.client.AddTrainingURLs(ctx, alias, urls); err != nil {
		o.recordPage("error")
		for _, item := range page {
			if markErr := o.store.MarkContentError(item.ID, err.Error()); markErr != nil {
				o.logger.ErrorWithContext(ctx, "failed to record sync error", "item_id", item.ID, "error", markErr.Error())
			}
			o.recordItem("error")
		}
		if o.notifier != nil {
			o.notifier.NotifySyncFailure(offset/pageSize+1, len(page), err)
		}
		o.logger.WarnWithContext(ctx, "sync page failed",
			"offset", offset, "items", len(page), "error", err.Error())
		return nil, err
	}

	now := o.now()
	for _, item := range page {
		if err := o.store.MarkContentSynced(item.ID, now); err != nil {
			o.logger.ErrorWithContext(ctx, "failed to record sync state", "item_id", item.ID, "error", err.Error())
		}
		o.recordItem("success")
	}
	o.recordPage("success")

	nextOffset := offset + len(page)
	result := &StepResult{
		Synced:     nextOffset,
		Total:      total,
		NextOffset: nextOffset,
		Complete:   nextOffset >= total,
	}

	if o.metrics != nil {
		o.metrics.SetSyncProgress("synced", float64(result.Synced))
		o.metrics.SetSyncProgress("total", float64(result.Total))
	}
	o.logger.InfoWithContext(ctx, "sync page complete",
		"offset", offset, "synced", result.Synced, "total", result.Total, "complete", result.Complete)
	return result, nil
}

// SyncItem pushes a single content item regardless of pagination state.
func (o *Orchestrator) SyncItem(ctx context.Context, id int64) error {
	item, ok := o.store.GetContent(id)
	if !ok {
		return &errors.ErrValidation{Field: "id"}
	}
	if !item.Eligible() {
		return fmt.Errorf("content %d is not eligible for sync", id)
	}

	alias, err := o.selectedSource()
	if err != nil {
		return err
	}

	if err := o.client.AddTrainingURLs(ctx, alias, []string{item.URL}); err != nil {
		o.recordItem("error")
		if markErr := o.store.MarkContentError(id, err.Error()); markErr != nil {
			o.logger.ErrorWithContext(ctx, "failed to record sync error", "item_id", id, "error", markErr.Error())
		}
		return err
	}
	o.recordItem("success")
	return o.store.MarkContentSynced(id, o.now())
}

// OnContentPublished is the auto-sync hook. When auto-sync is enabled and a
// session exists, a freshly published item is pushed immediately; failures
// only mark the item and never propagate to the publisher.
func (o *Orchestrator) OnContentPublished(ctx context.Context, item *models.ContentItem) {
	if !o.store.Settings().GetBool(store.SettingAutoSync, false) {
		return
	}
	if !item.Eligible() {
		return
	}
	if !o.client.IsAuthenticated(ctx) {
		return
	}
	if err := o.SyncItem(ctx, item.ID); err != nil {
		o.logger.WarnWithContext(ctx, "auto-sync failed", "item_id", item.ID, "error", err.Error())
	}
}

func (o *Orchestrator) recordPage(outcome string) {
	if o.metrics != nil {
		o.metrics.RecordSyncPage(outcome)
	}
}

func (o *Orchestrator) recordItem(outcome string) {
	if o.metrics != nil {
		o.metrics.RecordSyncItem(outcome)
	}
}
