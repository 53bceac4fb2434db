// Copyright 2023 The pulse-core Authors
// This file is part of the pulse-core library.
//
// The pulse-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The pulse-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the pulse-core library. If not, see <http://www.gnu.org/licenses/>.

package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"
)

const tokenCacheSize = 4096

// Config describes one upstream endpoint.
type Config struct {
	Chain     types.ChainID
	Kind      string  // builder kind; empty selects by the chain's ChainKind
	URL       string
	AuthToken string
	RateLimit float64
	Timeout   time.Duration
}

// Builder constructs a Provider from an endpoint config. Provider packages
// register themselves under a kind name in their init functions.
type Builder func(cfg Config) (Provider, error)

var (
	buildersMu sync.RWMutex
	builders   = make(map[string]Builder)
)

// RegisterBuilder makes a provider constructor available under the given
// kind name. It panics on duplicate registration.
func RegisterBuilder(kind string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if _, dup := builders[kind]; dup {
		panic("chain: duplicate builder registration for " + kind)
	}
	builders[kind] = b
}

func builderFor(kind string) (Builder, bool) {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	b, ok := builders[kind]
	return b, ok
}

// defaultKind maps a chain to its built-in provider kind. Chains whose
// kind has no built-in provider need an explicit kind override.
func defaultKind(c types.ChainID) string {
	switch c.Kind() {
	case types.KindEVM:
		return "evm"
	case types.KindUTXO:
		return "bitcoin"
	default:
		return ""
	}
}

// Registry holds the constructed provider set. Token metadata lookups are
// memoized in a shared LRU so repeated discoveries of the same token do
// not hit the upstream again.
type Registry struct {
	providers map[types.ChainID]Provider
	tokens    *lru.Cache
	log       logrus.FieldLogger
}

// NewRegistry builds one provider per config entry. Entries whose chain
// has no registered builder are skipped and logged; the chain stays
// disabled until an operator supplies a kind override. A config entry
// naming an unknown kind or an invalid chain is a hard error.
func NewRegistry(cfgs []Config, log logrus.FieldLogger) (*Registry, error) {
	tokens, err := lru.New(tokenCacheSize)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		providers: make(map[types.ChainID]Provider, len(cfgs)),
		tokens:    tokens,
		log:       log,
	}
	for _, cfg := range cfgs {
		if !cfg.Chain.Valid() {
			return nil, fmt.Errorf("chain: unknown chain %q", cfg.Chain)
		}
		if _, dup := r.providers[cfg.Chain]; dup {
			return nil, fmt.Errorf("chain: duplicate config for %s", cfg.Chain)
		}
		kind := cfg.Kind
		if kind == "" {
			kind = defaultKind(cfg.Chain)
		}
		if kind == "" {
			log.WithField("chain", cfg.Chain).Warn("No built-in provider, chain disabled")
			continue
		}
		build, ok := builderFor(kind)
		if !ok {
			return nil, fmt.Errorf("chain: no builder registered for kind %q (chain %s)", kind, cfg.Chain)
		}
		p, err := build(cfg)
		if err != nil {
			return nil, fmt.Errorf("chain: building %s provider: %w", cfg.Chain, err)
		}
		r.providers[cfg.Chain] = &cachedProvider{Provider: p, tokens: tokens}
	}
	return r, nil
}

// Provider returns the provider for the given chain, if one was built.
func (r *Registry) Provider(c types.ChainID) (Provider, bool) {
	p, ok := r.providers[c]
	return p, ok
}

// Chains returns the chains with a constructed provider, sorted.
func (r *Registry) Chains() []types.ChainID {
	out := make([]types.ChainID, 0, len(r.providers))
	for c := range r.providers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of constructed providers.
func (r *Registry) Len() int { return len(r.providers) }

// cachedProvider memoizes successful TokenData answers. Token metadata is
// immutable on every supported chain, so entries never expire.
type cachedProvider struct {
	Provider
	tokens *lru.Cache
}

func (p *cachedProvider) TokenData(ctx context.Context, tokenID string) (types.Asset, error) {
	key := types.TokenAsset(p.Chain(), tokenID).String()
	if v, ok := p.tokens.Get(key); ok {
		return v.(types.Asset), nil
	}
	asset, err := p.Provider.TokenData(ctx, tokenID)
	if err != nil {
		return types.Asset{}, err
	}
	p.tokens.Add(key, asset)
	return asset, nil
}
