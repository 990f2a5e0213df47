// Package lifecycle tracks fetched suggestions through acceptance and
// dismissal. It is the client-facing state machine over analysis results:
// Fetched → Accepted | DismissedForSession | DismissedPermanently.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloverfin/clover/internal/common"
	"github.com/cloverfin/clover/internal/dismiss"
	"github.com/cloverfin/clover/internal/learning"
	"github.com/cloverfin/clover/internal/model"
)

// SuggestionSource produces analysis reports. Satisfied by *learning.Analyzer.
type SuggestionSource interface {
	Analyze(ctx context.Context) (*learning.Report, error)
}

// Acceptor materialises accepted suggestions. Satisfied by *learning.Materializer.
type Acceptor interface {
	Accept(ctx context.Context, suggestion model.RuleSuggestion) (*model.CategoryRule, error)
}

// Manager holds the current suggestion list and applies user decisions to
// it. All methods are safe for concurrent use.
type Manager struct {
	source    SuggestionSource
	acceptor  Acceptor
	dismissed dismiss.Store

	mu                sync.Mutex
	suggestions       []model.RuleSuggestion
	recentCorrections []model.Correction
	totalCorrections  int

	// Fetch sequencing: a refresh that resolves after a newer one has
	// already installed its result is stale and gets discarded.
	nextSeq      uint64
	installedSeq uint64
}

// NewManager creates a lifecycle manager.
func NewManager(source SuggestionSource, acceptor Acceptor, dismissed dismiss.Store) *Manager {
	return &Manager{
		source:    source,
		acceptor:  acceptor,
		dismissed: dismissed,
	}
}

// Refresh fetches a fresh analysis and installs it, filtering permanently
// dismissed patterns before they ever become visible. Out-of-order
// completions are dropped.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.nextSeq++
	seq := m.nextSeq
	m.mu.Unlock()

	report, err := m.source.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch suggestions: %w", err)
	}

	filtered := make([]model.RuleSuggestion, 0, len(report.Suggestions))
	for _, s := range report.Suggestions {
		if m.dismissed.IsDismissed(s.Pattern) {
			continue
		}
		filtered = append(filtered, s)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq <= m.installedSeq {
		slog.Debug("discarding stale suggestion fetch", "seq", seq, "installed", m.installedSeq)
		return nil
	}
	m.installedSeq = seq

	m.suggestions = filtered
	m.totalCorrections = report.TotalCorrections
	m.recentCorrections = report.RecentCorrections

	return nil
}

// Suggestions returns a snapshot of the current suggestion list.
func (m *Manager) Suggestions() []model.RuleSuggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RuleSuggestion, len(m.suggestions))
	copy(out, m.suggestions)
	return out
}

// TotalCorrections returns the window-wide correction count from the last
// installed report.
func (m *Manager) TotalCorrections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalCorrections
}

// RecentCorrections returns the recent corrections from the last installed report.
func (m *Manager) RecentCorrections() []model.Correction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Correction, len(m.recentCorrections))
	copy(out, m.recentCorrections)
	return out
}

// Accept materialises the identified suggestion. On success it is removed
// from the list; on failure it stays visible and actionable so the user
// can retry.
func (m *Manager) Accept(ctx context.Context, key model.SuggestionKey) (*model.CategoryRule, error) {
	suggestion, ok := m.find(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrSuggestionExpired, key)
	}

	rule, err := m.acceptor.Accept(ctx, suggestion)
	if err != nil {
		return nil, err
	}

	m.remove(key)
	return rule, nil
}

// DismissForSession removes the suggestion from the current list only; it
// will reappear on the next fetch unless the evidence is consumed or ages
// out of the lookback window.
func (m *Manager) DismissForSession(key model.SuggestionKey) error {
	if !m.remove(key) {
		return fmt.Errorf("%w: %s", common.ErrSuggestionExpired, key)
	}
	return nil
}

// DismissPermanently removes the suggestion and records its pattern so no
// future fetch ever surfaces it again.
func (m *Manager) DismissPermanently(key model.SuggestionKey) error {
	if !m.remove(key) {
		return fmt.Errorf("%w: %s", common.ErrSuggestionExpired, key)
	}
	if err := m.dismissed.Dismiss(key.Pattern); err != nil {
		return fmt.Errorf("failed to persist dismissal: %w", err)
	}
	return nil
}

func (m *Manager) find(key model.SuggestionKey) (model.RuleSuggestion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.suggestions {
		if s.Key() == key {
			return s, true
		}
	}
	return model.RuleSuggestion{}, false
}

func (m *Manager) remove(key model.SuggestionKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.suggestions {
		if s.Key() == key {
			m.suggestions = append(m.suggestions[:i], m.suggestions[i+1:]...)
			return true
		}
	}
	return false
}
