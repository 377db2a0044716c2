package series

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bond-anton/nts.service/errors"
)

// StoreOption is a functional option for configuring the Store
type StoreOption func(*Store)

// WithLogger sets a custom logger for the store
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store manages the time-series channels of one service: naming, retention,
// aggregation-rule wiring, and data ingestion. It exclusively owns the set
// of labels and rules for its service; presence checks go through a cached
// label index refreshed after every membership change.
type Store struct {
	service string
	backend Backend
	logger  *slog.Logger

	mu     sync.Mutex
	labels []string
}

// NewStore creates a store for the given service name on top of a Backend.
// The index cache starts empty; call RefreshIndex (or any mutating
// operation) to populate it.
func NewStore(service string, backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		service: service,
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Service returns the owning service name.
func (s *Store) Service() string {
	return s.service
}

// Labels returns a copy of the cached label index.
func (s *Store) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.labels)
}

// RefreshIndex re-queries the backend for all source series owned by this
// service. The result is the authoritative cache behind every label
// presence check, so every mutating operation refreshes it after changing
// membership.
func (s *Store) RefreshIndex(ctx context.Context) error {
	filters := []string{
		fmt.Sprintf("%s=%s", LabelService, s.service),
		fmt.Sprintf("%s=%s", LabelType, TypeSource),
	}
	labels, err := s.backend.QueryIndex(ctx, filters)
	if err != nil {
		return errors.WrapTransient(err, "Store", "RefreshIndex", "query label index")
	}
	s.mu.Lock()
	s.labels = labels
	s.mu.Unlock()
	return nil
}

// hasLabel reports whether the label is present in the cached index.
func (s *Store) hasLabel(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.labels, label)
}

// sourceLabels returns the label set attached to a source series.
func (s *Store) sourceLabels() map[string]string {
	return map[string]string{LabelService: s.service, LabelType: TypeSource}
}

// AggregationKey returns the deterministic name of a derived series:
// "{label}_{function}_{period}s".
func AggregationKey(label, function string, periodSec int) string {
	return fmt.Sprintf("%s_%s_%ds", label, function, periodSec)
}

// CreateChannel creates the source series for label with the given retention
// in seconds, floored at zero. Creation is idempotent: an already existing
// series is left as is. When aggregation periods are given, avg and std.s
// aggregations are wired for each period in order.
func (s *Store) CreateChannel(ctx context.Context, label string, retentionSec int, periods []int) error {
	retentionMs := int64(max(0, retentionSec)) * 1000
	err := s.backend.CreateSeries(ctx, label, retentionMs, s.sourceLabels())
	if err != nil && !stderrors.Is(err, ErrAlreadyExists) {
		return errors.Wrap(err, "Store", "CreateChannel", "create series "+label)
	}
	if err := s.RefreshIndex(ctx); err != nil {
		return err
	}
	s.logger.Debug("channel created", "label", label, "retention_ms", retentionMs)

	for _, period := range periods {
		if err := s.AddAggregation(ctx, label, period, retentionSec); err != nil {
			return err
		}
	}
	return nil
}

// DeleteChannel removes a channel and every aggregation derived from it.
// Rule destinations are deleted before the source so no derived series can
// survive its source. Unknown labels are a no-op.
func (s *Store) DeleteChannel(ctx context.Context, label string) error {
	if !s.hasLabel(label) {
		return nil
	}

	rules, err := s.backend.Rules(ctx, label)
	if err != nil {
		return errors.Wrap(err, "Store", "DeleteChannel", "read rules of "+label)
	}
	for _, rule := range rules {
		if err := s.backend.DeleteSeries(ctx, rule.DestKey); err != nil {
			return errors.Wrap(err, "Store", "DeleteChannel", "delete derived series "+rule.DestKey)
		}
	}
	if err := s.backend.DeleteSeries(ctx, label); err != nil {
		return errors.Wrap(err, "Store", "DeleteChannel", "delete series "+label)
	}
	s.logger.Debug("channel deleted", "label", label, "derived", len(rules))
	return s.RefreshIndex(ctx)
}

// AddAggregation wires avg and std.s aggregations over the given bucket
// period for an existing channel. The derived series keeps data at least as
// long as it takes to accumulate meaningful buckets: retention * max(1,
// period). Existing derived series and rules are left as is. Unknown labels
// are a no-op.
func (s *Store) AddAggregation(ctx context.Context, label string, periodSec, retentionSec int) error {
	if !s.hasLabel(label) {
		return nil
	}

	retentionMs := int64(max(0, retentionSec)) * 1000
	periodSec = max(0, periodSec)
	derivedRetentionMs := retentionMs * int64(max(1, periodSec))
	bucketMs := int64(periodSec) * 1000

	for _, function := range aggFunctions {
		destKey := AggregationKey(label, function, periodSec)
		destLabels := map[string]string{LabelService: s.service, LabelType: function}

		err := s.backend.CreateSeries(ctx, destKey, derivedRetentionMs, destLabels)
		if err != nil && !stderrors.Is(err, ErrAlreadyExists) {
			return errors.Wrap(err, "Store", "AddAggregation", "create derived series "+destKey)
		}
		err = s.backend.CreateRule(ctx, label, destKey, function, bucketMs)
		if err != nil && !stderrors.Is(err, ErrAlreadyExists) {
			return errors.Wrap(err, "Store", "AddAggregation", "create rule "+label+" -> "+destKey)
		}
	}
	s.logger.Debug("aggregation added",
		"label", label, "period_s", periodSec, "retention_ms", derivedRetentionMs)
	return nil
}

// DeleteAggregation removes both derived series for the given period,
// best-effort: missing series and dangling rules are ignored. Unknown
// labels are a no-op.
func (s *Store) DeleteAggregation(ctx context.Context, label string, periodSec int) error {
	if !s.hasLabel(label) {
		return nil
	}
	for _, function := range aggFunctions {
		destKey := AggregationKey(label, function, periodSec)
		if err := s.backend.DeleteSeries(ctx, destKey); err != nil {
			s.logger.Debug("derived series delete skipped", "key", destKey, "error", err)
		}
	}
	return nil
}

// PutData appends one sample to the source series at the current time.
func (s *Store) PutData(ctx context.Context, label string, value float64) error {
	return s.PutDataAt(ctx, label, value, time.Now().UnixMilli())
}

// PutDataAt appends one sample to the source series at an explicit
// timestamp in milliseconds.
func (s *Store) PutDataAt(ctx context.Context, label string, value float64, timestampMs int64) error {
	err := s.backend.Add(ctx, label, timestampMs, value, s.sourceLabels())
	if err != nil {
		return errors.Wrap(err, "Store", "PutDataAt", "append sample to "+label)
	}
	return nil
}
