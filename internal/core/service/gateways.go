// Package service implements the core business logic.
package service

import (
	"sort"

	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/ports"
)

// Gateways is the registry of processor capabilities, keyed by gateway id.
type Gateways struct {
	byID map[string]ports.Processor
}

// NewGateways registers the given processors under their brand ids.
func NewGateways(processors ...ports.Processor) *Gateways {
	g := &Gateways{byID: make(map[string]ports.Processor, len(processors))}
	for _, p := range processors {
		g.byID[p.Brand().ID] = p
	}
	return g
}

// Lookup returns the processor for gatewayID.
func (g *Gateways) Lookup(gatewayID string) (ports.Processor, error) {
	p, ok := g.byID[gatewayID]
	if !ok {
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrUnknownGateway,
			"gateway '"+gatewayID+"' is not registered", "UNKNOWN_GATEWAY")
	}
	return p, nil
}

// IDs returns the registered gateway ids in lexical order.
func (g *Gateways) IDs() []string {
	ids := make([]string, 0, len(g.byID))
	for id := range g.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
