package domain

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type SelectIntegrationParams struct {
	IntegrationType IntegrationType
}

type IntegrationSelector interface {
	RegisterConnector(connector SourceConnector)
	SelectConnector(ctx context.Context, params SelectIntegrationParams) (SourceConnector, error)
	// Connectors returns every registered connector ordered by type.
	Connectors() []SourceConnector
}

type integrationSelector struct {
	mu               sync.RWMutex
	connectorsByType map[IntegrationType]SourceConnector
}

func NewIntegrationSelector() IntegrationSelector {
	return &integrationSelector{
		connectorsByType: make(map[IntegrationType]SourceConnector),
	}
}

func (s *integrationSelector) RegisterConnector(connector SourceConnector) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connectorsByType[connector.Definition().Type] = connector
}

func (s *integrationSelector) SelectConnector(ctx context.Context, params SelectIntegrationParams) (SourceConnector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connector, ok := s.connectorsByType[params.IntegrationType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntegrationNotFound, params.IntegrationType)
	}

	return connector, nil
}

func (s *integrationSelector) Connectors() []SourceConnector {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connectors := make([]SourceConnector, 0, len(s.connectorsByType))
	for _, connector := range s.connectorsByType {
		connectors = append(connectors, connector)
	}

	sort.Slice(connectors, func(i, j int) bool {
		return connectors[i].Definition().Type < connectors[j].Definition().Type
	})

	return connectors
}
