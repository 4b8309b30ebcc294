package datasource

import (
	"context"
	"fmt"
	"sync"

	"trade-sim/src/interfaces"
	"trade-sim/src/logger"
	"trade-sim/src/models"
)

// MultiSourceManager aggregates multiple IPriceSource instances behind one
// lifecycle. Sources push tick batches into a shared channel owned by the
// caller; the manager only wires lifecycles together.
type MultiSourceManager struct {
	Sources    map[string]interfaces.IPriceSource
	Logger     *logger.Logger
	mu         sync.RWMutex
	outputChan chan<- []models.MStockTick // Send-only, managed by parent
	ctx        context.Context            // Lifecycle context (derived)
	cancelFunc context.CancelFunc         // To stop all sources
	wg         *sync.WaitGroup            // Shared WaitGroup (ptr)
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(sources []interfaces.IPriceSource, log *logger.Logger) *MultiSourceManager {
	m := &MultiSourceManager{
		Sources: make(map[string]interfaces.IPriceSource),
		Logger:  log,
	}

	for _, s := range sources {
		m.Sources[s.Name()] = s
	}

	return m
}

// -----------------------------------------------------------------------------

// AddSource adds a new source and starts it if the manager is running
func (m *MultiSourceManager) AddSource(source interfaces.IPriceSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.Name()
	if _, exists := m.Sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}

	m.Sources[name] = source
	m.Logger.Info("Added source: %s", name)

	// If Manager is already running, start the new source immediately
	if m.outputChan != nil && m.ctx != nil {
		if err := source.Start(m.ctx, m.outputChan, m.wg); err != nil {
			return fmt.Errorf("failed to start source %s: %v", name, err)
		}
		m.Logger.Info("Started source: %s", name)
	}

	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource stops and removes a source
func (m *MultiSourceManager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.Sources[name]
	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	if err := source.Stop(); err != nil {
		m.Logger.Error("Error stopping source %s: %v", name, err)
	}

	delete(m.Sources, name)
	m.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (m *MultiSourceManager) GetSource(name string) (interfaces.IPriceSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, exists := m.Sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}
	return source, nil
}

// -----------------------------------------------------------------------------

// GetAllSources returns a list of all sources
func (m *MultiSourceManager) GetAllSources() []interfaces.IPriceSource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]interfaces.IPriceSource, 0, len(m.Sources))
	for _, s := range m.Sources {
		list = append(list, s)
	}
	return list
}

// -----------------------------------------------------------------------------

// Start starts all sources
func (m *MultiSourceManager) Start(parentCtx context.Context, outputChan chan<- []models.MStockTick, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("MultiSourceManager is already running")
	}

	// Derive a context so we can stop the manager independently if needed
	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel

	m.outputChan = outputChan
	m.wg = wg

	for _, src := range m.Sources {
		if err := src.Start(m.ctx, m.outputChan, m.wg); err != nil {
			m.Logger.Error("Failed to start source %s: %v", src.Name(), err)
			return err
		}
	}
	return nil
}

// Stop stops all sources gracefully by cancelling the internal context
func (m *MultiSourceManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil // Already stopped
	}

	m.Logger.Info("Stopping MultiSourceManager...")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	m.cancelFunc = nil
	m.ctx = nil

	m.Logger.Info("MultiSourceManager Stopped.")
	return nil
}

// -----------------------------------------------------------------------------

// StartSource starts a specific source by name
func (m *MultiSourceManager) StartSource(name string) error {
	m.mu.RLock()
	source, exists := m.Sources[name]
	ctx := m.ctx
	outChan := m.outputChan
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("source %s not found", name)
	}
	if outChan == nil || ctx == nil {
		return fmt.Errorf("MultiSourceManager is not running")
	}

	return source.Start(ctx, outChan, m.wg)
}

// -----------------------------------------------------------------------------

// StopSource stops a specific source by name
func (m *MultiSourceManager) StopSource(name string) error {
	m.mu.RLock()
	source, exists := m.Sources[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	return source.Stop()
}

// -----------------------------------------------------------------------------

// UpdateSymbols replaces the symbol list of every source
func (m *MultiSourceManager) UpdateSymbols(symbols []string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, src := range m.Sources {
		if err := src.UpdateSymbols(symbols); err != nil {
			m.Logger.Error("Failed to update symbols for a source: %v", err)
			return err
		}
	}
	return nil
}
